package models

import "time"

// AnalyzeRequest asks the API to analyse a shelf photo by reference.
type AnalyzeRequest struct {
	URL      string `json:"url" binding:"required"`
	Detailed bool   `json:"detailed,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CropPreview is an in-memory rendering of one detected box.
type CropPreview struct {
	Index   int    `json:"index"`
	DataURI string `json:"data_uri"`
}

// AnalysisResponse is returned by the analyze endpoints and rendered by the dashboard.
type AnalysisResponse struct {
	Result       *ShelfAnalysisResult `json:"result"`
	ShelfImageID uint                 `json:"shelf_image_id"`
	StoredRef    string               `json:"stored_ref,omitempty"`
	Annotated    string               `json:"annotated,omitempty"`
	Crops        []CropPreview        `json:"crops,omitempty"`
}

// AlertView is an unresolved alert joined with its product name.
type AlertView struct {
	ID          uint      `json:"id"`
	ProductID   *uint     `json:"product_id,omitempty"`
	ProductName string    `json:"product_name,omitempty"`
	AlertType   AlertType `json:"alert_type"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductRequest creates a catalog product.
type ProductRequest struct {
	Name          string  `json:"name" binding:"required"`
	ProductType   string  `json:"product_type" binding:"required"`
	Code          *string `json:"code,omitempty"`
	Flavor        *string `json:"flavor,omitempty"`
	Variant       *string `json:"variant,omitempty"`
	TargetBenefit *string `json:"target_benefit,omitempty"`
	CurrentStock  int     `json:"current_stock"`
	MinStock      *int    `json:"min_stock,omitempty"`
}

// StockUpdateRequest sets a product's current stock.
type StockUpdateRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

// StockUpdateResponse reports the alert raised by a stock change, if any.
type StockUpdateResponse struct {
	ProductID uint       `json:"product_id"`
	Stock     int        `json:"stock"`
	Alert     *AlertView `json:"alert,omitempty"`
}
