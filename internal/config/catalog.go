package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeywordGroup maps one product type to the keywords that identify it in OCR text.
type KeywordGroup struct {
	Type     string
	Keywords []string
}

// KeywordGroups keeps the order in which groups appear in the document;
// the first group with a matching keyword wins.
type KeywordGroups []KeywordGroup

// UnmarshalYAML decodes a mapping of type -> [keywords] preserving key order.
func (g *KeywordGroups) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: product_types must be a mapping", node.Line)
	}
	groups := make(KeywordGroups, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var keywords []string
		if err := node.Content[i+1].Decode(&keywords); err != nil {
			return fmt.Errorf("product type %q: %w", node.Content[i].Value, err)
		}
		groups = append(groups, KeywordGroup{Type: node.Content[i].Value, Keywords: keywords})
	}
	*g = groups
	return nil
}

// Thresholds holds the alert thresholds. The document stores them as one flat
// mapping; keys other than empty_space and low_stock are per-type minimum stock.
type Thresholds struct {
	EmptySpace float64
	LowStock   int
	PerType    map[string]int
}

func (t *Thresholds) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]float64
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("alert_thresholds: %w", err)
	}
	if t.PerType == nil {
		t.PerType = map[string]int{}
	}
	for k, v := range raw {
		switch k {
		case "empty_space":
			t.EmptySpace = v
		case "low_stock":
			t.LowStock = int(v)
		default:
			t.PerType[k] = int(v)
		}
	}
	return nil
}

type Paths struct {
	Model    string `yaml:"model"`
	Database string `yaml:"database"`
}

// CatalogDocument is the on-disk form of the recognition catalog.
type CatalogDocument struct {
	AlertThresholds Thresholds `yaml:"alert_thresholds"`
	Paths           Paths      `yaml:"paths"`
	Recognition     struct {
		ProductTypes KeywordGroups `yaml:"product_types"`
		ProductCodes struct {
			Pattern string `yaml:"pattern"`
		} `yaml:"product_codes"`
		Flavors []string `yaml:"flavors"`
	} `yaml:"recognition"`
	ExpectedProducts  []string `yaml:"expected_products"`
	ProductCategories []string `yaml:"product_categories"`
}

// Catalog is the immutable recognition configuration handed to the extractor
// and analyzer at construction. Accessors return copies.
type Catalog struct {
	thresholds  Thresholds
	paths       Paths
	groups      KeywordGroups
	codePattern *regexp.Regexp
	flavors     []string
	expected    []string
	categories  []string
}

// DefaultCatalogDocument returns the built-in catalog used when no catalog
// file is present.
func DefaultCatalogDocument() CatalogDocument {
	var doc CatalogDocument
	doc.AlertThresholds = Thresholds{
		EmptySpace: 0.2,
		LowStock:   3,
		PerType: map[string]int{
			"skin_booster":    5,
			"formula_1":       10,
			"vitamin_complex": 7,
			"collagen_mix":    4,
			"specialty_blend": 3,
		},
	}
	doc.Paths = Paths{Model: "models/best.pt", Database: "data/shelf.db"}
	doc.Recognition.ProductTypes = KeywordGroups{
		{Type: "skin_booster", Keywords: []string{"skin booster", "hn - skin", "hn skin"}},
		{Type: "formula_1", Keywords: []string{"formula 1", "formula1", "shake mix"}},
		{Type: "vitamin_complex", Keywords: []string{"vitilife", "brain solution", "vitamin"}},
		{Type: "collagen_mix", Keywords: []string{"collagen booster", "collagen"}},
		{Type: "specialty_blend", Keywords: []string{"fiber blend", "specialty", "fiber"}},
	}
	doc.Recognition.ProductCodes.Pattern = `\d{3,4}[-/]\d{3,4}`
	doc.Recognition.Flavors = []string{"vanilla", "chocolate", "strawberry", "orange", "mango", "cookies and cream", "berry"}
	doc.ExpectedProducts = []string{"skin_booster", "formula_1", "vitamin_complex", "collagen_mix", "specialty_blend"}
	doc.ProductCategories = []string{"Meal Replacement", "Collagen Powder", "Capsules", "Liquid", "Powder"}
	return doc
}

// NewCatalog validates doc and freezes it.
func NewCatalog(doc CatalogDocument) (*Catalog, error) {
	pattern := doc.Recognition.ProductCodes.Pattern
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("recognition.product_codes.pattern must not be empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid product code pattern %q: %w", pattern, err)
	}

	seen := make(map[string]struct{}, len(doc.Recognition.ProductTypes))
	groups := make(KeywordGroups, 0, len(doc.Recognition.ProductTypes))
	for _, g := range doc.Recognition.ProductTypes {
		if g.Type == "" {
			return nil, fmt.Errorf("product type name must not be empty")
		}
		if _, dup := seen[g.Type]; dup {
			return nil, fmt.Errorf("duplicate product type %q", g.Type)
		}
		seen[g.Type] = struct{}{}
		groups = append(groups, KeywordGroup{Type: g.Type, Keywords: lowerNonEmpty(g.Keywords)})
	}

	perType := make(map[string]int, len(doc.AlertThresholds.PerType))
	for k, v := range doc.AlertThresholds.PerType {
		perType[k] = v
	}

	return &Catalog{
		thresholds: Thresholds{
			EmptySpace: doc.AlertThresholds.EmptySpace,
			LowStock:   doc.AlertThresholds.LowStock,
			PerType:    perType,
		},
		paths:       doc.Paths,
		groups:      groups,
		codePattern: re,
		flavors:     nonEmpty(doc.Recognition.Flavors),
		expected:    dedupe(doc.ExpectedProducts),
		categories:  append([]string(nil), doc.ProductCategories...),
	}, nil
}

// ParseCatalog decodes a YAML catalog document. Sections missing from the
// document keep their built-in defaults.
func ParseCatalog(data []byte) (*Catalog, error) {
	doc := DefaultCatalogDocument()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(doc)
}

// LoadCatalog reads the catalog at path, falling back to the defaults when
// the file does not exist.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewCatalog(DefaultCatalogDocument())
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// KeywordGroups returns the type groups in priority order. Keywords are lower-cased.
func (c *Catalog) KeywordGroups() KeywordGroups {
	out := make(KeywordGroups, len(c.groups))
	for i, g := range c.groups {
		out[i] = KeywordGroup{Type: g.Type, Keywords: append([]string(nil), g.Keywords...)}
	}
	return out
}

// CodePattern returns the compiled product code regex. Callers must not call
// Longest on it.
func (c *Catalog) CodePattern() *regexp.Regexp { return c.codePattern }

func (c *Catalog) Flavors() []string { return append([]string(nil), c.flavors...) }

// ExpectedProducts returns the expected type set in configured order.
func (c *Catalog) ExpectedProducts() []string { return append([]string(nil), c.expected...) }

func (c *Catalog) ProductCategories() []string { return append([]string(nil), c.categories...) }

func (c *Catalog) Paths() Paths { return c.paths }

func (c *Catalog) EmptySpaceThreshold() float64 { return c.thresholds.EmptySpace }

// MinStockFor returns the minimum stock for a product type, falling back to
// the global low_stock threshold.
func (c *Catalog) MinStockFor(productType string) int {
	if v, ok := c.thresholds.PerType[productType]; ok {
		return v
	}
	return c.thresholds.LowStock
}

// HasType reports whether productType is one of the configured keyword groups.
func (c *Catalog) HasType(productType string) bool {
	for _, g := range c.groups {
		if g.Type == productType {
			return true
		}
	}
	return false
}

func lowerNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
