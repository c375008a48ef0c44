package storage

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/url"
	"strings"
	"time"

	apperrors "go-shelf-inspector/internal/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// blobAPI is the subset of *azblob.Client the store uses.
type blobAPI interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
	DeleteBlob(ctx context.Context, containerName, blobName string, o *azblob.DeleteBlobOptions) (azblob.DeleteBlobResponse, error)
}

// AzureBlobStore reads and writes shelf photos in Azure Blob Storage. Blob
// references have the form azblob://<container>/<blob>.
type AzureBlobStore struct {
	client    blobAPI
	container string
	now       func() time.Time
}

// NewAzureBlobStore connects with a shared key. container is where uploads go;
// fetches may address any container.
func NewAzureBlobStore(accountName, accountKey, container string) (*AzureBlobStore, error) {
	if accountName == "" || accountKey == "" {
		return nil, apperrors.NewValidationError("azure account name and key are required", nil)
	}
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid azure credentials", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create azure client", err)
	}
	return newAzureBlobStore(client, container), nil
}

func newAzureBlobStore(client blobAPI, container string) *AzureBlobStore {
	return &AzureBlobStore{client: client, container: container, now: time.Now}
}

// BlobRef formats a blob reference.
func BlobRef(container, blob string) string {
	return fmt.Sprintf("%s://%s/%s", SchemeAzure, container, blob)
}

// ParseBlobRef splits azblob://container/blob.
func ParseBlobRef(ref string) (container, blob string, err error) {
	u, err := url.Parse(ref)
	if err != nil || !strings.EqualFold(u.Scheme, SchemeAzure) {
		return "", "", apperrors.NewValidationError(fmt.Sprintf("invalid blob reference %q", ref), err)
	}
	container = u.Host
	blob = strings.TrimPrefix(u.Path, "/")
	if container == "" || blob == "" {
		return "", "", apperrors.NewValidationError(fmt.Sprintf("blob reference %q needs a container and a blob name", ref), nil)
	}
	return container, blob, nil
}

// FetchImage implements ImageFetcher.
func (s *AzureBlobStore) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	body, err := s.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return decodeImage(ref, body)
}

// Open implements ImageStore.
func (s *AzureBlobStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	container, blob, err := ParseBlobRef(ref)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("blob %q not found", ref), err)
		}
		return nil, apperrors.NewNetworkError("blob download failed", err)
	}
	return resp.Body, nil
}

// Save implements ImageStore.
func (s *AzureBlobStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if s.container == "" {
		return "", apperrors.NewValidationError("azure upload container is not configured", nil)
	}
	blob := UploadName(name, s.now())
	if _, err := s.client.UploadBuffer(ctx, s.container, blob, data, nil); err != nil {
		return "", apperrors.NewNetworkError("blob upload failed", err)
	}
	return BlobRef(s.container, blob), nil
}

// Delete implements ImageStore. A missing blob is not an error.
func (s *AzureBlobStore) Delete(ctx context.Context, ref string) error {
	container, blob, err := ParseBlobRef(ref)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteBlob(ctx, container, blob, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return apperrors.NewNetworkError("blob delete failed", err)
	}
	return nil
}
