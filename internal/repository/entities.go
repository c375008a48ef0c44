package repository

import (
	"time"

	"go-shelf-inspector/pkg/models"
)

// Product is a catalogued SKU with its stock levels.
type Product struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"size:255;not null" json:"name"`
	ProductType   string     `gorm:"size:64;not null;index" json:"product_type"`
	Code          *string    `gorm:"size:64;uniqueIndex" json:"code,omitempty"`
	Flavor        *string    `gorm:"size:64" json:"flavor,omitempty"`
	Variant       *string    `gorm:"size:64" json:"variant,omitempty"`
	TargetBenefit *string    `gorm:"size:255" json:"target_benefit,omitempty"`
	CurrentStock  int        `gorm:"not null;default:0" json:"current_stock"`
	MinStock      int        `gorm:"not null;default:0" json:"min_stock"`
	LastDetected  *time.Time `json:"last_detected,omitempty"`
	ImagePath     string     `gorm:"size:512" json:"image_path,omitempty"`
	IsActive      bool       `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// LowStock reports whether the product is below its minimum.
func (p *Product) LowStock() bool {
	return p.CurrentStock < p.MinStock
}

// ShelfImage records one analysed photo.
type ShelfImage struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ImagePath        string    `gorm:"size:512;not null" json:"image_path"`
	AnalysisID       string    `gorm:"size:36;index" json:"analysis_id"`
	CaptureTime      time.Time `gorm:"not null;index" json:"capture_time"`
	ProductsDetected int       `gorm:"not null;default:0" json:"products_detected"`
	EmptySpaces      int       `gorm:"not null;default:0" json:"empty_spaces"`
	Coverage         float64   `json:"coverage"`
}

// Alert is a persisted shelf or stock alert. Alerts are never deleted; they
// are only resolved.
type Alert struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	ProductID    *uint            `gorm:"index" json:"product_id,omitempty"`
	Product      *Product         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"product,omitempty"`
	AlertType    models.AlertType `gorm:"size:32;not null;check:chk_alerts_type,alert_type IN ('missing_product','low_stock','misplacement','expiry')" json:"alert_type"`
	AlertMessage string           `gorm:"type:text;not null" json:"alert_message"`
	CreatedAt    time.Time        `gorm:"index" json:"created_at"`
	Resolved     bool             `gorm:"not null;default:false;index" json:"resolved"`
}

// ProductName returns the linked product's name, or "" when the alert has none.
func (a *Alert) ProductName() string {
	if a.Product == nil {
		return ""
	}
	return a.Product.Name
}

// allModels lists the entities managed by AutoMigrate, parents first.
func allModels() []interface{} {
	return []interface{}{&Product{}, &ShelfImage{}, &Alert{}}
}
