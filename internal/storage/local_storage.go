package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/preprocess"

	"github.com/google/uuid"
)

// LocalImageFetcher loads photos from the local filesystem. It accepts bare
// paths and file:// URLs.
type LocalImageFetcher struct{}

// FetchImage implements ImageFetcher.
func (LocalImageFetcher) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := localPath(ref)
	if err != nil {
		return nil, err
	}
	return preprocess.Load(path)
}

func localPath(ref string) (string, error) {
	if Scheme(ref) != SchemeFile {
		return ref, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", apperrors.NewValidationError("invalid file reference", err)
	}
	return filepath.FromSlash(u.Path), nil
}

// LocalImageStore keeps uploads in a single directory.
type LocalImageStore struct {
	LocalImageFetcher
	dir string
	now func() time.Time
}

// NewLocalImageStore creates dir if needed.
func NewLocalImageStore(dir string) (*LocalImageStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, apperrors.NewValidationError("upload directory is required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewInternalError("failed to create upload directory", err)
	}
	return &LocalImageStore{dir: dir, now: time.Now}, nil
}

// Dir returns the upload directory.
func (s *LocalImageStore) Dir() string {
	return s.dir
}

// Save writes data to a new file and returns its path. Names never collide:
// shelf_<yyyymmdd_hhmmss>_<8 hex chars><ext>.
func (s *LocalImageStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, UploadName(name, s.now()))
	// O_EXCL so a name clash is an error instead of an overwrite
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperrors.NewInternalError("failed to store upload", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", apperrors.NewInternalError("failed to store upload", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", apperrors.NewInternalError("failed to store upload", err)
	}
	return path, nil
}

// Open implements ImageStore.
func (s *LocalImageStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := localPath(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("stored image %q not found", ref), err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to open stored image", err)
	}
	return f, nil
}

// Delete removes a stored upload. Deleting a missing file is not an error.
func (s *LocalImageStore) Delete(ctx context.Context, ref string) error {
	path, err := localPath(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.NewInternalError("failed to delete stored image", err)
	}
	return nil
}

// UploadName builds a collision-free object name for an upload, keeping the
// lower-cased extension of the client's file name.
func UploadName(original string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%s_%s%s", uploadPrefix, at.Format("20060102_150405"), id, ext)
}
