package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseCatalog_PreservesGroupOrder(t *testing.T) {
	doc := `
recognition:
  product_types:
    zeta: ["z"]
    alpha: ["A", "  ", "aa"]
    mid: ["m"]
  product_codes:
    pattern: '[A-Z]{2}\d+'
  flavors: ["lime", "", "mint"]
expected_products: [alpha, zeta, alpha]
`
	cat, err := ParseCatalog([]byte(doc))
	if err != nil {
		t.Fatalf("ParseCatalog returned error: %v", err)
	}

	groups := cat.KeywordGroups()
	wantOrder := []string{"zeta", "alpha", "mid"}
	if len(groups) != len(wantOrder) {
		t.Fatalf("Expected %d groups, got %d", len(wantOrder), len(groups))
	}
	for i, want := range wantOrder {
		if groups[i].Type != want {
			t.Errorf("group %d: expected %s, got %s", i, want, groups[i].Type)
		}
	}
	if got := groups[1].Keywords; len(got) != 2 || got[0] != "a" || got[1] != "aa" {
		t.Errorf("Expected blank keywords dropped and lower-cased, got %v", got)
	}
	if got := cat.Flavors(); len(got) != 2 {
		t.Errorf("Expected 2 flavors, got %v", got)
	}
	if got := cat.ExpectedProducts(); len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Errorf("Expected deduplicated expected products, got %v", got)
	}
	if !cat.CodePattern().MatchString("AB123") {
		t.Error("Expected code pattern from document")
	}
}

func TestParseCatalog_Thresholds(t *testing.T) {
	doc := `
alert_thresholds:
  empty_space: 0.35
  low_stock: 2
  formula_1: 12
  new_type: 6
`
	cat, err := ParseCatalog([]byte(doc))
	if err != nil {
		t.Fatalf("ParseCatalog returned error: %v", err)
	}
	if cat.EmptySpaceThreshold() != 0.35 {
		t.Errorf("Expected empty space 0.35, got %v", cat.EmptySpaceThreshold())
	}
	tests := map[string]int{
		"formula_1":    12,
		"new_type":     6,
		"skin_booster": 5, // kept from defaults
		"unknown":      2, // global low_stock
	}
	for productType, want := range tests {
		if got := cat.MinStockFor(productType); got != want {
			t.Errorf("MinStockFor(%s) = %d, want %d", productType, got, want)
		}
	}
}

func TestNewCatalog_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CatalogDocument)
	}{
		{"empty pattern", func(d *CatalogDocument) { d.Recognition.ProductCodes.Pattern = "" }},
		{"bad pattern", func(d *CatalogDocument) { d.Recognition.ProductCodes.Pattern = "([" }},
		{"duplicate type", func(d *CatalogDocument) {
			d.Recognition.ProductTypes = append(d.Recognition.ProductTypes, KeywordGroup{Type: "formula_1"})
		}},
		{"empty type", func(d *CatalogDocument) {
			d.Recognition.ProductTypes = append(d.Recognition.ProductTypes, KeywordGroup{})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := DefaultCatalogDocument()
			tt.mutate(&doc)
			if _, err := NewCatalog(doc); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestCatalog_AccessorsReturnCopies(t *testing.T) {
	cat, err := NewCatalog(DefaultCatalogDocument())
	if err != nil {
		t.Fatal(err)
	}

	expected := cat.ExpectedProducts()
	expected[0] = "tampered"
	groups := cat.KeywordGroups()
	groups[0].Keywords[0] = "tampered"

	if cat.ExpectedProducts()[0] == "tampered" {
		t.Error("ExpectedProducts leaked internal slice")
	}
	if cat.KeywordGroups()[0].Keywords[0] == "tampered" {
		t.Error("KeywordGroups leaked internal slice")
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()

	cat, err := LoadCatalog(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for a missing file, got %v", err)
	}
	if len(cat.ExpectedProducts()) != 5 {
		t.Errorf("Expected 5 default products, got %d", len(cat.ExpectedProducts()))
	}
	if !cat.HasType("collagen_mix") || cat.HasType("nope") {
		t.Error("HasType mismatch on defaults")
	}

	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte("expected_products: [formula_1]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cat, err = LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog returned error: %v", err)
	}
	if got := cat.ExpectedProducts(); len(got) != 1 || got[0] != "formula_1" {
		t.Errorf("Unexpected expected products %v", got)
	}

	if err := os.WriteFile(path, []byte("recognition: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Error("Expected parse error")
	}
}
