package container

import (
	"fmt"
	"net/http"
	"time"

	"go-shelf-inspector/internal/analyzer"
	"go-shelf-inspector/internal/config"
	"go-shelf-inspector/internal/extractor"
	"go-shelf-inspector/internal/factory"
	"go-shelf-inspector/internal/locator"
	"go-shelf-inspector/internal/logger"
	"go-shelf-inspector/internal/observer"
	"go-shelf-inspector/internal/ocr"
	"go-shelf-inspector/internal/ocr/tesseract"
	"go-shelf-inspector/internal/preprocess"
	"go-shelf-inspector/internal/repository"
	"go-shelf-inspector/internal/service"
	"go-shelf-inspector/internal/transport"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Option overrides a collaborator the container would otherwise build.
type Option func(*options)

type options struct {
	locator locator.Locator
	engine  ocr.Engine
}

// WithLocator replaces the configured object detector.
func WithLocator(l locator.Locator) Option {
	return func(o *options) { o.locator = l }
}

// WithOCREngine replaces the Tesseract engine.
func WithOCREngine(e ocr.Engine) Option {
	return func(o *options) { o.engine = e }
}

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	catalog   *config.Catalog
	db        *gorm.DB
	store     repository.Store
	analyzers []analyzer.ShelfAnalyzer
	publisher *observer.EventPublisher
	metrics   *observer.MetricsObserver
	redis     *redis.Client
	service   service.ShelfService
	handler   http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger.SetLevel(cfg.LogLevel)

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	c := &Container{config: cfg, catalog: catalog}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	c.db, err = repository.Open(cfg.Database, catalog.Paths().Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	c.store = repository.NewStore(c.db)

	storageFactory := factory.NewStorageFactory(cfg.Storage, cfg.ImageFetchTimeout)
	images, err := storageFactory.CreateStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create image store: %w", err)
	}
	fetcher := storageFactory.CreateFetcher(images)

	loc := o.locator
	if loc == nil {
		loc = newLocator(cfg, catalog)
	}
	engine := o.engine
	if engine == nil {
		engine = tesseract.New(cfg.OCR.Language)
	}
	ext := extractor.New(catalog, engine, preprocess.New(cfg.Analysis.DenoiseSigma))

	basicOpts := analyzer.DefaultOptions().WithWorkers(cfg.Analysis.MaxWorkers)
	basic, err := analyzer.NewShelfAnalyzer(catalog, loc, ext, basicOpts)
	if err != nil {
		return nil, err
	}
	c.analyzers = append(c.analyzers, basic)
	detailed, err := analyzer.NewShelfAnalyzer(catalog, loc, ext, basicOpts.WithDetail())
	if err != nil {
		return nil, err
	}
	c.analyzers = append(c.analyzers, detailed)

	c.publisher = observer.NewEventPublisher()
	c.metrics = observer.NewMetricsObserver()
	c.publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	c.publisher.Subscribe(c.metrics)
	if cfg.Redis.Addr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.publisher.Subscribe(observer.NewRedisObserver(c.redis, cfg.Redis.Channel))
	}

	c.service, err = service.NewShelfService(service.Dependencies{
		Catalog:  catalog,
		Store:    c.store,
		Images:   images,
		Fetcher:  fetcher,
		Analyzer: basic,
		Detailed: detailed,
		Events:   c.publisher,
		Metrics:  c.metrics,
		Matcher:  service.NewCodeMatcher(cfg.Analysis.MaxCodeDistance),
	})
	if err != nil {
		return nil, err
	}
	c.handler = transport.NewHandler(c.service, cfg)

	logger.WithFields(logrus.Fields{
		"db_driver":       cfg.Database.Driver,
		"storage_backend": cfg.Storage.Backend,
		"detector":        cfg.Detector.URL != "",
		"redis":           cfg.Redis.Addr != "",
		"expected":        catalog.ExpectedProducts(),
	}).Info("Container initialized")

	ok = true
	return c, nil
}

func newLocator(cfg *config.Config, catalog *config.Catalog) locator.Locator {
	if cfg.Detector.URL == "" {
		logger.Warn("DETECTOR_URL is not set; shelf analyses will fail until a detector is configured")
		return locator.Unavailable{Reason: "object detector is not configured (set DETECTOR_URL)"}
	}
	return locator.NewHTTPLocator(cfg.Detector.URL, catalog.Paths().Model, cfg.Detector.Timeout)
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Catalog returns the recognition catalog
func (c *Container) Catalog() *config.Catalog {
	return c.catalog
}

// Service returns the shelf service
func (c *Container) Service() service.ShelfService {
	return c.service
}

// Store returns the persistence store
func (c *Container) Store() repository.Store {
	return c.store
}

// DB returns the database handle
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Close waits briefly for pending events and releases resources.
func (c *Container) Close() {
	if c.publisher != nil {
		done := make(chan struct{})
		go func() {
			c.publisher.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			logger.Warn("Timed out waiting for event observers")
		}
	}
	for _, a := range c.analyzers {
		if err := a.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close analyzer")
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close redis client")
		}
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close database")
			}
		}
	}
}
