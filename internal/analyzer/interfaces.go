package analyzer

import (
	"context"
	"image"

	"go-shelf-inspector/pkg/models"
)

// ShelfAnalyzer detects products on a shelf photo and reports missing ones.
type ShelfAnalyzer interface {
	// AnalyzeImage analyses an already decoded photo. ref identifies the
	// photo in the result and in logs.
	AnalyzeImage(ctx context.Context, ref string, img image.Image) (*models.ShelfAnalysisResult, error)

	// AnalyzeFile loads the photo at path and analyses it. A photo that cannot
	// be loaded yields an image_load error and no result.
	AnalyzeFile(ctx context.Context, path string) (*models.ShelfAnalysisResult, error)

	// Lifecycle management
	Close() error
}

// ProductExtractor reads product fields from a single crop.
type ProductExtractor interface {
	Extract(ctx context.Context, region image.Image) (models.ProductInfo, string, error)
}
