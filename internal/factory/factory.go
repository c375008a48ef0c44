// Package factory builds storage backends from configuration.
package factory

import (
	"context"
	"fmt"
	"image"
	"time"

	"go-shelf-inspector/internal/config"
	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/storage"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// StorageFactory creates storage implementations
type StorageFactory interface {
	// CreateStore returns the configured upload backend.
	CreateStore() (storage.ImageStore, error)
	// CreateFetcher returns a fetcher that resolves any supported reference.
	CreateFetcher(store storage.ImageStore) *CompositeFetcher
}

// storageFactory implements StorageFactory
type storageFactory struct {
	cfg          config.StorageConfig
	fetchTimeout time.Duration
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg config.StorageConfig, fetchTimeout time.Duration) StorageFactory {
	return &storageFactory{cfg: cfg, fetchTimeout: fetchTimeout}
}

// CreateStore creates the store selected by cfg.Backend.
func (f *storageFactory) CreateStore() (storage.ImageStore, error) {
	switch StorageType(f.cfg.Backend) {
	case LocalStorage, "":
		return storage.NewLocalImageStore(f.cfg.UploadDir)
	case AzureStorage:
		return storage.NewAzureBlobStore(f.cfg.AzureAccountName, f.cfg.AzureAccountKey, f.cfg.AzureContainer)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", f.cfg.Backend)
	}
}

// CreateFetcher routes http(s) to the HTTP fetcher and plain paths or file://
// to disk. azblob references go to store when it is an Azure store.
func (f *storageFactory) CreateFetcher(store storage.ImageStore) *CompositeFetcher {
	httpFetcher := storage.NewHTTPImageFetcher(f.fetchTimeout)
	c := NewCompositeFetcher().
		Register(storage.SchemeHTTP, httpFetcher).
		Register(storage.SchemeHTTPS, httpFetcher).
		Register(storage.SchemeFile, storage.LocalImageFetcher{}).
		Register(storage.SchemeLocal, storage.LocalImageFetcher{})
	if az, ok := store.(*storage.AzureBlobStore); ok {
		c.Register(storage.SchemeAzure, az)
	}
	return c
}

// CompositeFetcher dispatches FetchImage by reference scheme.
type CompositeFetcher struct {
	routes map[string]storage.ImageFetcher
}

// NewCompositeFetcher returns a fetcher with no routes.
func NewCompositeFetcher() *CompositeFetcher {
	return &CompositeFetcher{routes: make(map[string]storage.ImageFetcher)}
}

// Register routes scheme to fetcher. It is meant for setup only and is not
// safe to call concurrently with FetchImage.
func (c *CompositeFetcher) Register(scheme string, fetcher storage.ImageFetcher) *CompositeFetcher {
	c.routes[scheme] = fetcher
	return c
}

// Supports reports whether ref has a registered scheme.
func (c *CompositeFetcher) Supports(ref string) bool {
	_, ok := c.routes[storage.Scheme(ref)]
	return ok
}

// FetchImage implements storage.ImageFetcher.
func (c *CompositeFetcher) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	scheme := storage.Scheme(ref)
	fetcher, ok := c.routes[scheme]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported image reference scheme %q", scheme), nil)
	}
	return fetcher.FetchImage(ctx, ref)
}
