// Package storage loads shelf photos from references and keeps uploaded ones.
package storage

import (
	"context"
	"image"
	"io"
	"net/url"
	"strings"

	apperrors "go-shelf-inspector/internal/errors"

	"github.com/disintegration/imaging"
)

// Reference schemes understood by the fetchers.
const (
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
	SchemeAzure  = "azblob"
	SchemeFile   = "file"
	SchemeLocal  = "" // bare filesystem path
	uploadPrefix = "shelf_"
)

// ImageFetcher resolves a reference to a decoded image.
type ImageFetcher interface {
	FetchImage(ctx context.Context, ref string) (image.Image, error)
}

// ImageStore keeps uploaded photos and hands back a reference that an
// ImageFetcher for the same backend can resolve later.
type ImageStore interface {
	ImageFetcher
	// Save stores data under a fresh name derived from name's extension.
	Save(ctx context.Context, name string, data []byte) (string, error)
	// Open returns the raw stored bytes for ref.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// Scheme returns the lower-cased scheme of ref, or SchemeLocal for plain paths
// (including Windows drive letters, which url.Parse reports as a scheme).
func Scheme(ref string) string {
	i := strings.Index(ref, "://")
	if i <= 1 {
		return SchemeLocal
	}
	u, err := url.Parse(ref)
	if err != nil {
		return SchemeLocal
	}
	return strings.ToLower(u.Scheme)
}

func decodeImage(ref string, r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewImageLoadError(ref, err)
	}
	return img, nil
}
