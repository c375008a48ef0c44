// Package tesseract implements ocr.Engine on top of gosseract.
package tesseract

import (
	"context"
	"image"
	"strings"

	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/ocr"

	"github.com/otiai10/gosseract/v2"
)

// Engine runs Tesseract on in-memory images. A client is created per call
// because gosseract clients are not safe for concurrent use.
type Engine struct {
	language string
	psm      gosseract.PageSegMode
}

// New returns an Engine for the given language ("eng" when empty). Pages are
// segmented as a single uniform block of text.
func New(language string) *Engine {
	if strings.TrimSpace(language) == "" {
		language = "eng"
	}
	return &Engine{language: language, psm: gosseract.PSM_SINGLE_BLOCK}
}

// Text implements ocr.Engine.
func (e *Engine) Text(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, release, err := ocr.EncodePNG(img)
	if err != nil {
		return "", apperrors.NewExtractionError("encode region for OCR", err)
	}
	defer release()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return "", apperrors.NewExtractionError("set OCR language", err)
	}
	if err := client.SetPageSegMode(e.psm); err != nil {
		return "", apperrors.NewExtractionError("set page segmentation mode", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", apperrors.NewExtractionError("load region into OCR engine", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", apperrors.NewExtractionError("OCR failed", err)
	}
	return text, nil
}

// Version reports the linked Tesseract version.
func Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}
