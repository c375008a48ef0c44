// Package service orchestrates shelf analysis, persistence and alerting.
package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"time"

	"go-shelf-inspector/internal/analyzer"
	"go-shelf-inspector/internal/config"
	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/logger"
	"go-shelf-inspector/internal/observer"
	"go-shelf-inspector/internal/repository"
	"go-shelf-inspector/internal/storage"
	"go-shelf-inspector/pkg/models"
	"go-shelf-inspector/pkg/validation"

	"github.com/disintegration/imaging"
)

// AnalysisReport is what an analysis call hands back to its caller.
type AnalysisReport = models.AnalysisResponse

// ShelfService defines the operations exposed by the dashboard, API and CLI.
type ShelfService interface {
	// AnalyzeUpload stores an uploaded photo, analyses it and records the
	// outcome.
	AnalyzeUpload(ctx context.Context, filename string, data []byte, detailed bool) (*AnalysisReport, error)
	// AnalyzeReference fetches a photo by reference and analyses it.
	AnalyzeReference(ctx context.Context, ref string, detailed bool) (*AnalysisReport, error)

	ListAlerts(ctx context.Context) ([]models.AlertView, error)
	ResolveAlert(ctx context.Context, id uint) error

	ListProducts(ctx context.Context) ([]repository.Product, error)
	CreateProduct(ctx context.Context, req models.ProductRequest) (*repository.Product, error)
	UpdateStock(ctx context.Context, productID uint, stock int) (*models.StockUpdateResponse, error)

	RecentAnalyses(ctx context.Context, limit int) ([]repository.ShelfImage, error)
	Categories() []string
	Stats(ctx context.Context) (*Stats, error)
}

// Stats combines stored counts with in-process event counters.
type Stats struct {
	repository.Counts
	Events observer.Metrics `json:"events"`
}

// MetricsSource exposes event counters.
type MetricsSource interface {
	GetMetrics() observer.Metrics
}

// Dependencies are the collaborators of the shelf service.
type Dependencies struct {
	Catalog  *config.Catalog
	Store    repository.Store
	Images   storage.ImageStore
	Fetcher  storage.ImageFetcher
	Analyzer analyzer.ShelfAnalyzer
	// Detailed keeps raw OCR text; it falls back to Analyzer when nil.
	Detailed  analyzer.ShelfAnalyzer
	Validator *validation.ReferenceValidator
	Events    observer.Subject
	Metrics   MetricsSource
	Matcher   CodeMatcher
}

type shelfService struct {
	deps Dependencies
}

// NewShelfService creates a new shelf service
func NewShelfService(deps Dependencies) (ShelfService, error) {
	if deps.Catalog == nil || deps.Store == nil || deps.Analyzer == nil {
		return nil, errors.New("service: catalog, store and analyzer are required")
	}
	if deps.Detailed == nil {
		deps.Detailed = deps.Analyzer
	}
	if deps.Validator == nil {
		deps.Validator = validation.NewReferenceValidator()
	}
	if deps.Events == nil {
		deps.Events = observer.NewEventPublisher()
	}
	return &shelfService{deps: deps}, nil
}

func (s *shelfService) AnalyzeUpload(ctx context.Context, filename string, data []byte, detailed bool) (*AnalysisReport, error) {
	if err := validation.ValidateUploadName(filename); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("uploaded file is empty", nil)
	}
	if s.deps.Images == nil {
		return nil, apperrors.NewInternalError("image storage is not configured", nil)
	}

	// Decode first so unreadable uploads are never stored
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewImageLoadError(filename, err)
	}

	ref, err := s.deps.Images.Save(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	report, err := s.analyze(ctx, ref, img, detailed)
	if err != nil {
		if derr := s.deps.Images.Delete(context.WithoutCancel(ctx), ref); derr != nil {
			logger.WithError(derr).WithField("image_ref", ref).Warn("Failed to remove upload of a failed analysis")
		}
		return nil, err
	}
	report.StoredRef = ref
	return report, nil
}

func (s *shelfService) AnalyzeReference(ctx context.Context, ref string, detailed bool) (*AnalysisReport, error) {
	if err := s.deps.Validator.ValidateReference(ref); err != nil {
		return nil, err
	}
	if s.deps.Fetcher == nil {
		return nil, apperrors.NewInternalError("image fetching is not configured", nil)
	}

	img, err := s.deps.Fetcher.FetchImage(ctx, ref)
	if err != nil {
		s.publish(ctx, observer.ShelfEvent{
			EventType:    observer.AnalysisFailed,
			ImageRef:     ref,
			ErrorMessage: err.Error(),
		})
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.NewNetworkError("failed to fetch image", err)
	}
	return s.analyze(ctx, ref, img, detailed)
}

func (s *shelfService) analyze(ctx context.Context, ref string, img image.Image, detailed bool) (*AnalysisReport, error) {
	s.publish(ctx, observer.ShelfEvent{EventType: observer.AnalysisStarted, ImageRef: ref})

	a := s.deps.Analyzer
	if detailed {
		a = s.deps.Detailed
	}
	result, err := a.AnalyzeImage(ctx, ref, img)
	if err != nil {
		s.publish(ctx, observer.ShelfEvent{
			EventType:    observer.AnalysisFailed,
			ImageRef:     ref,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	if err := s.matchProducts(ctx, result); err != nil {
		return nil, apperrors.NewInternalError("failed to match catalogue products", err)
	}

	shelfImage, alerts, err := s.deps.Store.SaveAnalysis(ctx, result, len(result.Alerts))
	if err != nil {
		s.publish(ctx, observer.ShelfEvent{
			EventType:    observer.AnalysisFailed,
			AnalysisID:   result.ID,
			ImageRef:     ref,
			ErrorMessage: err.Error(),
		})
		return nil, apperrors.NewInternalError("failed to save analysis", err)
	}

	for i, alert := range alerts {
		s.publish(ctx, observer.ShelfEvent{
			EventType:   observer.AlertRaised,
			AnalysisID:  result.ID,
			ImageRef:    ref,
			AlertID:     alert.ID,
			AlertType:   alert.AlertType,
			ProductType: result.Alerts[i].ProductType,
			ProductID:   alert.ProductID,
			Message:     alert.AlertMessage,
		})
	}
	s.publish(ctx, observer.ShelfEvent{
		EventType:      observer.AnalysisCompleted,
		AnalysisID:     result.ID,
		ImageRef:       ref,
		ProcessingTime: time.Duration(result.ProcessingTimeSec * float64(time.Second)),
		Success:        true,
		Metadata: map[string]interface{}{
			"boxes":          len(result.Products),
			"missing_types":  len(result.Alerts),
			"shelf_image_id": shelfImage.ID,
		},
	})

	report := &AnalysisReport{Result: result, ShelfImageID: shelfImage.ID}
	if detailed {
		report.Crops = renderCrops(img, result.Products)
		annotated, err := renderAnnotated(img, result.Products)
		if err != nil {
			logger.WithError(err).WithField("analysis_id", result.ID).Warn("Failed to render annotated image")
		} else {
			report.Annotated = annotated
		}
	}
	return report, nil
}

// matchProducts links detected boxes and missing-product alerts to catalogue
// rows: by code first, then by the first active product of the type.
func (s *shelfService) matchProducts(ctx context.Context, result *models.ShelfAnalysisResult) error {
	codes, err := s.deps.Store.ListProductCodes(ctx)
	if err != nil {
		return err
	}

	byType := make(map[string]*uint)
	lookupType := func(productType string) (*uint, error) {
		if id, ok := byType[productType]; ok {
			return id, nil
		}
		p, err := s.deps.Store.FindProductByType(ctx, productType)
		if err != nil {
			return nil, err
		}
		var id *uint
		if p != nil {
			id = &p.ID
		}
		byType[productType] = id
		return id, nil
	}

	for i := range result.Products {
		p := &result.Products[i]
		if p.Info.Code != nil {
			if id, ok := s.deps.Matcher.Match(*p.Info.Code, codes); ok {
				p.MatchedProductID = &id
				continue
			}
		}
		if p.Info.Type != nil {
			id, err := lookupType(*p.Info.Type)
			if err != nil {
				return err
			}
			p.MatchedProductID = id
		}
	}

	for i := range result.Alerts {
		id, err := lookupType(result.Alerts[i].ProductType)
		if err != nil {
			return err
		}
		result.Alerts[i].ProductID = id
	}
	return nil
}

func (s *shelfService) ListAlerts(ctx context.Context) ([]models.AlertView, error) {
	alerts, err := s.deps.Store.ListUnresolvedAlerts(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list alerts", err)
	}
	views := make([]models.AlertView, 0, len(alerts))
	for i := range alerts {
		views = append(views, alertView(&alerts[i]))
	}
	return views, nil
}

func alertView(a *repository.Alert) models.AlertView {
	return models.AlertView{
		ID:          a.ID,
		ProductID:   a.ProductID,
		ProductName: a.ProductName(),
		AlertType:   a.AlertType,
		Message:     a.AlertMessage,
		CreatedAt:   a.CreatedAt,
	}
}

func (s *shelfService) ResolveAlert(ctx context.Context, id uint) error {
	if err := s.deps.Store.ResolveAlert(ctx, id); err != nil {
		return storeError("failed to resolve alert", err)
	}
	s.publish(ctx, observer.ShelfEvent{EventType: observer.AlertResolved, AlertID: id, Success: true})
	return nil
}

func (s *shelfService) ListProducts(ctx context.Context) ([]repository.Product, error) {
	products, err := s.deps.Store.ListProducts(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list products", err)
	}
	return products, nil
}

func (s *shelfService) CreateProduct(ctx context.Context, req models.ProductRequest) (*repository.Product, error) {
	if !s.deps.Catalog.HasType(req.ProductType) {
		return nil, apperrors.NewValidationError("unknown product type", nil).WithDetails(req.ProductType)
	}
	p := &repository.Product{
		Name:          req.Name,
		ProductType:   req.ProductType,
		Code:          req.Code,
		Flavor:        req.Flavor,
		Variant:       req.Variant,
		TargetBenefit: req.TargetBenefit,
		CurrentStock:  req.CurrentStock,
		MinStock:      s.deps.Catalog.MinStockFor(req.ProductType),
		IsActive:      true,
	}
	if req.MinStock != nil {
		p.MinStock = *req.MinStock
	}
	if err := s.deps.Store.CreateProduct(ctx, p); err != nil {
		return nil, storeError("failed to create product", err)
	}
	return p, nil
}

func (s *shelfService) UpdateStock(ctx context.Context, productID uint, stock int) (*models.StockUpdateResponse, error) {
	alert, err := s.deps.Store.UpdateStock(ctx, productID, stock)
	if err != nil {
		return nil, storeError("failed to update stock", err)
	}

	resp := &models.StockUpdateResponse{ProductID: productID, Stock: stock}
	if alert != nil {
		view := alertView(alert)
		resp.Alert = &view
		s.publish(ctx, observer.ShelfEvent{
			EventType: observer.StockLow,
			AlertID:   alert.ID,
			AlertType: alert.AlertType,
			ProductID: alert.ProductID,
			Message:   alert.AlertMessage,
		})
	}
	return resp, nil
}

func (s *shelfService) RecentAnalyses(ctx context.Context, limit int) ([]repository.ShelfImage, error) {
	images, err := s.deps.Store.ListShelfImages(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list analyses", err)
	}
	return images, nil
}

func (s *shelfService) Categories() []string {
	return s.deps.Catalog.ProductCategories()
}

func (s *shelfService) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.deps.Store.Counts(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count records", err)
	}
	stats := &Stats{Counts: counts}
	if s.deps.Metrics != nil {
		stats.Events = s.deps.Metrics.GetMetrics()
	}
	return stats, nil
}

func (s *shelfService) publish(ctx context.Context, event observer.ShelfEvent) {
	s.deps.Events.NotifyObservers(ctx, event)
}

// storeError converts repository sentinels into typed application errors.
func storeError(message string, err error) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound), errors.Is(err, repository.ErrAlertNotFound):
		return apperrors.NewNotFoundError(err.Error(), err)
	case errors.Is(err, repository.ErrDuplicateProductCode):
		return apperrors.NewConflictError(err.Error(), err)
	case errors.Is(err, repository.ErrInvalidProduct),
		errors.Is(err, repository.ErrNegativeStock),
		errors.Is(err, repository.ErrInvalidAlertType):
		return apperrors.NewValidationError(err.Error(), err)
	}
	return apperrors.NewInternalError(message, err)
}
