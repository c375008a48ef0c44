// Package extractor turns OCR text from a product crop into product fields.
package extractor

import (
	"context"
	"image"
	"strings"

	"go-shelf-inspector/internal/config"
	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/ocr"
	"go-shelf-inspector/internal/preprocess"
	"go-shelf-inspector/pkg/models"
)

// Extractor resolves product type, code and flavor from a product crop.
type Extractor struct {
	catalog *config.Catalog
	engine  ocr.Engine
	prep    *preprocess.Preprocessor
	groups  config.KeywordGroups
	flavors []flavorRule
}

type flavorRule struct {
	name  string
	lower string
}

// New builds an Extractor around an immutable catalog and an OCR engine.
func New(catalog *config.Catalog, engine ocr.Engine, prep *preprocess.Preprocessor) *Extractor {
	if prep == nil {
		prep = preprocess.Default()
	}
	flavors := catalog.Flavors()
	rules := make([]flavorRule, 0, len(flavors))
	for _, f := range flavors {
		rules = append(rules, flavorRule{name: f, lower: strings.ToLower(strings.TrimSpace(f))})
	}
	return &Extractor{
		catalog: catalog,
		engine:  engine,
		prep:    prep,
		groups:  catalog.KeywordGroups(),
		flavors: rules,
	}
}

// Extract preprocesses region, runs OCR and resolves the text. It returns the
// raw OCR text alongside the fields. A region with no recognisable text is not
// an error; only an OCR engine failure is.
func (e *Extractor) Extract(ctx context.Context, region image.Image) (models.ProductInfo, string, error) {
	gray := e.prep.Preprocess(region)
	text, err := e.engine.Text(ctx, gray)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return models.ProductInfo{}, "", err
		}
		return models.ProductInfo{}, "", apperrors.NewExtractionError("OCR failed", err)
	}
	return e.Resolve(text), text, nil
}

// Resolve applies the catalog rules to raw OCR text.
//
// Type: first keyword group (in catalog order) with a keyword contained in the
// text, case-insensitively. Code: leftmost match of the code pattern. Flavor:
// first configured flavor contained in the text, returned in its configured
// spelling. Variant is never resolved.
func (e *Extractor) Resolve(text string) models.ProductInfo {
	lower := strings.ToLower(text)
	var info models.ProductInfo

	for _, g := range e.groups {
		if containsAny(lower, g.Keywords) {
			t := g.Type
			info.Type = &t
			break
		}
	}

	if code := e.catalog.CodePattern().FindString(text); code != "" {
		info.Code = &code
	}

	for _, f := range e.flavors {
		if f.lower != "" && strings.Contains(lower, f.lower) {
			name := f.name
			info.Flavor = &name
			break
		}
	}

	return info
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
