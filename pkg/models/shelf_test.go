package models

import "testing"

func TestBoundingBox(t *testing.T) {
	tests := []struct {
		name  string
		box   BoundingBox
		valid bool
		area  int
	}{
		{"regular", BoundingBox{10, 20, 30, 60}, true, 800},
		{"zero width", BoundingBox{10, 20, 10, 60}, false, 0},
		{"inverted", BoundingBox{30, 60, 10, 20}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.box.Valid() != tt.valid {
				t.Errorf("Valid() = %v, want %v", tt.box.Valid(), tt.valid)
			}
			if tt.box.Area() != tt.area {
				t.Errorf("Area() = %d, want %d", tt.box.Area(), tt.area)
			}
		})
	}
}

func TestAlertTypeValid(t *testing.T) {
	for _, at := range []AlertType{AlertMissingProduct, AlertLowStock, AlertMisplacement, AlertExpiry} {
		if !at.Valid() {
			t.Errorf("Expected %s to be valid", at)
		}
	}
	if AlertType("extra_product").Valid() {
		t.Error("Did not expect extra_product to be valid")
	}
}

func TestMissingProductMessage(t *testing.T) {
	want := "Product 'skin_booster' is missing from the shelf."
	if got := MissingProductMessage("skin_booster"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestShelfAnalysisResultHelpers(t *testing.T) {
	r := &ShelfAnalysisResult{
		Products: []DetectedProduct{{Index: 0}, {Index: 1, Error: "ocr failed"}, {Index: 2}},
		Coverage: 0.7,
	}
	if r.FailedBoxes() != 1 {
		t.Errorf("Expected 1 failed box, got %d", r.FailedBoxes())
	}
	if !r.EmptySpace(0.2) {
		t.Error("Expected 30% empty shelf to exceed a 0.2 threshold")
	}
	if r.EmptySpace(0.4) {
		t.Error("Did not expect 30% empty shelf to exceed a 0.4 threshold")
	}
}
