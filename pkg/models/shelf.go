package models

import (
	"fmt"
	"image"
	"time"
)

// BoundingBox is an axis-aligned detection box in image pixel coordinates.
// (X1, Y1) is the top-left corner, (X2, Y2) the exclusive bottom-right.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Area returns the box area in pixels, zero for degenerate boxes.
func (b BoundingBox) Area() int {
	if !b.Valid() {
		return 0
	}
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Valid reports whether the box has positive width and height.
func (b BoundingBox) Valid() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}

// ProductInfo holds the fields resolved from a crop's OCR text.
// A nil field means no configured rule matched.
type ProductInfo struct {
	Type    *string `json:"type"`
	Code    *string `json:"code"`
	Flavor  *string `json:"flavor"`
	Variant *string `json:"variant"`
}

// DetectedProduct is one located object with its extracted info.
type DetectedProduct struct {
	Index            int         `json:"index"`
	BBox             BoundingBox `json:"bbox"`
	Info             ProductInfo `json:"info"`
	RawText          string      `json:"raw_text,omitempty"`
	MatchedProductID *uint       `json:"matched_product_id,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// Failed reports whether this box could not be read.
func (d DetectedProduct) Failed() bool {
	return d.Error != ""
}

// AlertType enumerates alert categories.
type AlertType string

const (
	AlertMissingProduct AlertType = "missing_product"
	AlertLowStock       AlertType = "low_stock"
	AlertMisplacement   AlertType = "misplacement"
	AlertExpiry         AlertType = "expiry"
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertMissingProduct, AlertLowStock, AlertMisplacement, AlertExpiry:
		return true
	}
	return false
}

// AnalysisAlert is an alert raised by a shelf analysis.
type AnalysisAlert struct {
	Type        AlertType `json:"type"`
	Message     string    `json:"message"`
	ProductType string    `json:"product_type,omitempty"`
	ProductID   *uint     `json:"product_id,omitempty"`
}

// MissingProductMessage formats the alert text for an absent product type.
func MissingProductMessage(productType string) string {
	return fmt.Sprintf("Product '%s' is missing from the shelf.", productType)
}

// PhotoQuality summarises whether a shelf photo is usable for OCR.
type PhotoQuality struct {
	LaplacianVariance float64  `json:"laplacian_variance"`
	Brightness        float64  `json:"brightness"`
	Blurry            bool     `json:"blurry"`
	TooDark           bool     `json:"too_dark"`
	TooBright         bool     `json:"too_bright"`
	Warnings          []string `json:"warnings,omitempty"`
}

// ShelfAnalysisResult is the outcome of analysing one shelf photo.
type ShelfAnalysisResult struct {
	ID                string            `json:"id"`
	ImageRef          string            `json:"image_ref"`
	Width             int               `json:"width"`
	Height            int               `json:"height"`
	Products          []DetectedProduct `json:"products"`
	DetectedTypes     []string          `json:"detected_types"`
	Alerts            []AnalysisAlert   `json:"alerts"`
	Coverage          float64           `json:"coverage"`
	Quality           PhotoQuality      `json:"quality"`
	Timestamp         time.Time         `json:"timestamp"`
	ProcessingTimeSec float64           `json:"processing_time_sec"`
}

// FailedBoxes counts products whose extraction failed.
func (r *ShelfAnalysisResult) FailedBoxes() int {
	n := 0
	for _, p := range r.Products {
		if p.Failed() {
			n++
		}
	}
	return n
}

// EmptySpace reports whether shelf coverage falls below the given ratio.
func (r *ShelfAnalysisResult) EmptySpace(threshold float64) bool {
	return r.Coverage < 1-threshold
}
