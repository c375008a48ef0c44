// Package repository persists products, analysed shelf photos and alerts.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-shelf-inspector/pkg/models"

	"gorm.io/gorm"
)

// Store is the persistence boundary of the service.
type Store interface {
	CreateProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id uint) (*Product, error)
	// FindProductByType returns the first active product of productType, or
	// nil when there is none.
	FindProductByType(ctx context.Context, productType string) (*Product, error)
	// FindProductByCode returns the product with code, or nil.
	FindProductByCode(ctx context.Context, code string) (*Product, error)
	// ListProductCodes returns every non-null product code mapped to its id.
	ListProductCodes(ctx context.Context) (map[string]uint, error)

	// UpdateStock sets the stock of a product. When the new level is below the
	// product's minimum a low_stock alert is stored and returned.
	UpdateStock(ctx context.Context, productID uint, newStock int) (*Alert, error)

	CreateShelfImage(ctx context.Context, img *ShelfImage) error
	ListShelfImages(ctx context.Context, limit int) ([]ShelfImage, error)

	CreateAlert(ctx context.Context, a *Alert) error
	ListUnresolvedAlerts(ctx context.Context) ([]Alert, error)
	// ResolveAlert marks an alert resolved. Resolving twice is not an error.
	ResolveAlert(ctx context.Context, id uint) error

	TouchDetected(ctx context.Context, productIDs []uint, at time.Time) error
	// SaveAnalysis stores the photo record, its missing-product alerts and the
	// detection times of matched products in one transaction.
	SaveAnalysis(ctx context.Context, result *models.ShelfAnalysisResult, emptySpaces int) (*ShelfImage, []Alert, error)

	Counts(ctx context.Context) (Counts, error)
	SeedSampleProducts(ctx context.Context) (int, error)
}

// Counts summarises table sizes for the stats endpoint.
type Counts struct {
	Products         int64 `json:"products"`
	LowStockProducts int64 `json:"low_stock_products"`
	ShelfImages      int64 `json:"shelf_images"`
	UnresolvedAlerts int64 `json:"unresolved_alerts"`
}

type gormStore struct {
	db *gorm.DB
}

// NewStore wraps an open database.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateProduct(ctx context.Context, p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.ProductType = strings.TrimSpace(p.ProductType)
	if p.Name == "" || p.ProductType == "" {
		return fmt.Errorf("%w: name and product type are required", ErrInvalidProduct)
	}
	if p.CurrentStock < 0 || p.MinStock < 0 {
		return ErrNegativeStock
	}
	if p.Code != nil && strings.TrimSpace(*p.Code) == "" {
		p.Code = nil
	}

	err := s.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateProductCode
	}
	return err
}

func (s *gormStore) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := s.db.WithContext(ctx).Order("product_type, name, id").Find(&products).Error
	return products, err
}

func (s *gormStore) GetProduct(ctx context.Context, id uint) (*Product, error) {
	var p Product
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *gormStore) FindProductByType(ctx context.Context, productType string) (*Product, error) {
	var p Product
	err := s.db.WithContext(ctx).
		Where("product_type = ? AND is_active = ?", productType, true).
		Order("id").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *gormStore) FindProductByCode(ctx context.Context, code string) (*Product, error) {
	var p Product
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *gormStore) ListProductCodes(ctx context.Context) (map[string]uint, error) {
	var rows []struct {
		ID   uint
		Code string
	}
	err := s.db.WithContext(ctx).Model(&Product{}).
		Select("id, code").
		Where("code IS NOT NULL AND is_active = ?", true).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	codes := make(map[string]uint, len(rows))
	for _, r := range rows {
		codes[r.Code] = r.ID
	}
	return codes, nil
}

func (s *gormStore) UpdateStock(ctx context.Context, productID uint, newStock int) (*Alert, error) {
	if newStock < 0 {
		return nil, ErrNegativeStock
	}

	var alert *Alert
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Product
		if err := tx.First(&p, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}
		if err := tx.Model(&p).Update("current_stock", newStock).Error; err != nil {
			return err
		}
		if newStock >= p.MinStock {
			return nil
		}
		alert = &Alert{
			ProductID:    &p.ID,
			AlertType:    models.AlertLowStock,
			AlertMessage: LowStockMessage(p.Name, newStock, p.MinStock),
		}
		return tx.Create(alert).Error
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// LowStockMessage is the text of a low_stock alert.
func LowStockMessage(name string, stock, minimum int) string {
	return fmt.Sprintf("Stock for '%s' is low (%d left, minimum %d).", name, stock, minimum)
}

func (s *gormStore) CreateShelfImage(ctx context.Context, img *ShelfImage) error {
	if img.CaptureTime.IsZero() {
		img.CaptureTime = time.Now()
	}
	return s.db.WithContext(ctx).Create(img).Error
}

func (s *gormStore) ListShelfImages(ctx context.Context, limit int) ([]ShelfImage, error) {
	if limit <= 0 {
		limit = 20
	}
	var images []ShelfImage
	err := s.db.WithContext(ctx).Order("capture_time DESC, id DESC").Limit(limit).Find(&images).Error
	return images, err
}

func (s *gormStore) CreateAlert(ctx context.Context, a *Alert) error {
	if !a.AlertType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAlertType, a.AlertType)
	}
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *gormStore) ListUnresolvedAlerts(ctx context.Context) ([]Alert, error) {
	var alerts []Alert
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("resolved = ?", false).
		Order("created_at DESC, id DESC").
		Find(&alerts).Error
	return alerts, err
}

func (s *gormStore) ResolveAlert(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&Alert{}).
		Where("id = ?", id).
		Update("resolved", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// No row changed: either unknown or (on drivers that count only changed
	// rows) already resolved.
	var n int64
	if err := s.db.WithContext(ctx).Model(&Alert{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (s *gormStore) TouchDetected(ctx context.Context, productIDs []uint, at time.Time) error {
	return touchDetected(s.db.WithContext(ctx), productIDs, at)
}

func touchDetected(db *gorm.DB, productIDs []uint, at time.Time) error {
	if len(productIDs) == 0 {
		return nil
	}
	return db.Model(&Product{}).Where("id IN ?", productIDs).Update("last_detected", at).Error
}

func (s *gormStore) SaveAnalysis(ctx context.Context, result *models.ShelfAnalysisResult, emptySpaces int) (*ShelfImage, []Alert, error) {
	img := &ShelfImage{
		ImagePath:        result.ImageRef,
		AnalysisID:       result.ID,
		CaptureTime:      result.Timestamp,
		ProductsDetected: len(result.Products) - result.FailedBoxes(),
		EmptySpaces:      emptySpaces,
		Coverage:         result.Coverage,
	}
	if img.CaptureTime.IsZero() {
		img.CaptureTime = time.Now()
	}

	alerts := make([]Alert, 0, len(result.Alerts))
	for _, a := range result.Alerts {
		if !a.Type.Valid() {
			return nil, nil, fmt.Errorf("%w: %q", ErrInvalidAlertType, a.Type)
		}
		alerts = append(alerts, Alert{
			ProductID:    a.ProductID,
			AlertType:    a.Type,
			AlertMessage: a.Message,
		})
	}

	var matched []uint
	seen := make(map[uint]struct{})
	for _, p := range result.Products {
		if p.MatchedProductID == nil {
			continue
		}
		if _, ok := seen[*p.MatchedProductID]; ok {
			continue
		}
		seen[*p.MatchedProductID] = struct{}{}
		matched = append(matched, *p.MatchedProductID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(img).Error; err != nil {
			return err
		}
		if len(alerts) > 0 {
			if err := tx.Create(&alerts).Error; err != nil {
				return err
			}
		}
		return touchDetected(tx, matched, img.CaptureTime)
	})
	if err != nil {
		return nil, nil, err
	}
	return img, alerts, nil
}

func (s *gormStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	if err := db.Model(&Product{}).Count(&c.Products).Error; err != nil {
		return c, err
	}
	if err := db.Model(&Product{}).Where("current_stock < min_stock").Count(&c.LowStockProducts).Error; err != nil {
		return c, err
	}
	if err := db.Model(&ShelfImage{}).Count(&c.ShelfImages).Error; err != nil {
		return c, err
	}
	if err := db.Model(&Alert{}).Where("resolved = ?", false).Count(&c.UnresolvedAlerts).Error; err != nil {
		return c, err
	}
	return c, nil
}
