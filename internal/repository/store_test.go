package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go-shelf-inspector/internal/config"
	"go-shelf-inspector/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "shelf.db")
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", AutoMigrate: true}, path)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewStore(db)
}

func uintPtr(v uint) *uint { return &v }

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, "")
	assert.Error(t, err)
}

func TestCreateProduct(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &Product{Name: "Formula 1 Shake Mix", ProductType: "formula_1", Code: strPtr("3433-3132"), MinStock: 10, IsActive: true}
	require.NoError(t, store.CreateProduct(ctx, p))
	assert.NotZero(t, p.ID)

	dup := &Product{Name: "Copy", ProductType: "formula_1", Code: strPtr("3433-3132"), IsActive: true}
	assert.ErrorIs(t, store.CreateProduct(ctx, dup), ErrDuplicateProductCode)

	assert.ErrorIs(t, store.CreateProduct(ctx, &Product{Name: " ", ProductType: "x"}), ErrInvalidProduct)
	assert.ErrorIs(t, store.CreateProduct(ctx, &Product{Name: "n", ProductType: "x", MinStock: -1}), ErrNegativeStock)

	// Blank codes become NULL, so several products may have none
	require.NoError(t, store.CreateProduct(ctx, &Product{Name: "A", ProductType: "x", Code: strPtr(""), IsActive: true}))
	require.NoError(t, store.CreateProduct(ctx, &Product{Name: "B", ProductType: "x", IsActive: true}))

	byCode, err := store.FindProductByCode(ctx, "3433-3132")
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, p.ID, byCode.ID)

	missing, err := store.FindProductByCode(ctx, "000-000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	codes, err := store.ListProductCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint{"3433-3132": p.ID}, codes)
}

func TestFindProductByType_SkipsInactive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateProduct(ctx, &Product{Name: "Old", ProductType: "collagen_mix", IsActive: false}))
	active := &Product{Name: "New", ProductType: "collagen_mix", IsActive: true}
	require.NoError(t, store.CreateProduct(ctx, active))

	got, err := store.FindProductByType(ctx, "collagen_mix")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, active.ID, got.ID)

	none, err := store.FindProductByType(ctx, "formula_1")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUpdateStock_LowStockAlert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &Product{Name: "Collagen Booster", ProductType: "collagen_mix", CurrentStock: 10, MinStock: 4, IsActive: true}
	require.NoError(t, store.CreateProduct(ctx, p))

	alert, err := store.UpdateStock(ctx, p.ID, 6)
	require.NoError(t, err)
	assert.Nil(t, alert, "stock above minimum raises nothing")

	alert, err = store.UpdateStock(ctx, p.ID, 4)
	require.NoError(t, err)
	assert.Nil(t, alert, "stock equal to minimum raises nothing")

	alert, err = store.UpdateStock(ctx, p.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, models.AlertLowStock, alert.AlertType)
	assert.Equal(t, "Stock for 'Collagen Booster' is low (2 left, minimum 4).", alert.AlertMessage)
	require.NotNil(t, alert.ProductID)
	assert.Equal(t, p.ID, *alert.ProductID)

	alerts, err := store.ListUnresolvedAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Collagen Booster", alerts[0].ProductName())

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStock)
	assert.True(t, got.LowStock())
}

func TestUpdateStock_Errors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpdateStock(ctx, 999, 3)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = store.UpdateStock(ctx, 1, -1)
	assert.ErrorIs(t, err, ErrNegativeStock)

	_, err = store.GetProduct(ctx, 999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestAlerts_CreateListResolve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &Alert{AlertType: models.AlertMissingProduct, AlertMessage: models.MissingProductMessage("formula_1")}
	require.NoError(t, store.CreateAlert(ctx, first))
	second := &Alert{AlertType: models.AlertMisplacement, AlertMessage: "Product on the wrong shelf"}
	require.NoError(t, store.CreateAlert(ctx, second))

	assert.ErrorIs(t, store.CreateAlert(ctx, &Alert{AlertType: "broken_shelf", AlertMessage: "x"}), ErrInvalidAlertType)

	alerts, err := store.ListUnresolvedAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, second.ID, alerts[0].ID, "newest first")
	assert.Nil(t, alerts[0].Product)
	assert.Equal(t, "", alerts[0].ProductName())

	require.NoError(t, store.ResolveAlert(ctx, first.ID))
	require.NoError(t, store.ResolveAlert(ctx, first.ID), "resolving twice is a no-op")
	assert.ErrorIs(t, store.ResolveAlert(ctx, 12345), ErrAlertNotFound)

	alerts, err = store.ListUnresolvedAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, second.ID, alerts[0].ID)
}

func TestSaveAnalysis(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	skin := &Product{Name: "HN - Skin Booster", ProductType: "skin_booster", IsActive: true}
	formula := &Product{Name: "Formula 1 Shake Mix", ProductType: "formula_1", IsActive: true}
	require.NoError(t, store.CreateProduct(ctx, skin))
	require.NoError(t, store.CreateProduct(ctx, formula))

	formulaType := "formula_1"
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	result := &models.ShelfAnalysisResult{
		ID:       "c0ffee00-0000-4000-8000-000000000000",
		ImageRef: "data/uploads/shelf_20240601_090000_abcd1234.jpg",
		Products: []models.DetectedProduct{
			{Index: 0, Info: models.ProductInfo{Type: &formulaType}, MatchedProductID: uintPtr(formula.ID)},
			{Index: 1, Info: models.ProductInfo{Type: &formulaType}, MatchedProductID: uintPtr(formula.ID)},
			{Index: 2, Error: "bounding box is empty or outside the image"},
		},
		Alerts: []models.AnalysisAlert{{
			Type:        models.AlertMissingProduct,
			Message:     models.MissingProductMessage("skin_booster"),
			ProductType: "skin_booster",
			ProductID:   uintPtr(skin.ID),
		}},
		Coverage:  0.42,
		Timestamp: at,
	}

	img, alerts, err := store.SaveAnalysis(ctx, result, 1)
	require.NoError(t, err)
	assert.NotZero(t, img.ID)
	assert.Equal(t, 2, img.ProductsDetected)
	assert.Equal(t, 1, img.EmptySpaces)
	require.Len(t, alerts, 1)
	assert.NotZero(t, alerts[0].ID)

	unresolved, err := store.ListUnresolvedAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	require.NotNil(t, unresolved[0].Product)
	assert.Equal(t, "HN - Skin Booster", unresolved[0].Product.Name)

	got, err := store.GetProduct(ctx, formula.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastDetected)
	assert.True(t, got.LastDetected.Equal(at))

	images, err := store.ListShelfImages(ctx, 5)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, result.ID, images[0].AnalysisID)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Products: 2, ShelfImages: 1, UnresolvedAlerts: 1}, counts)
}

func TestSaveAnalysis_RejectsUnknownAlertType(t *testing.T) {
	store := newTestStore(t)
	result := &models.ShelfAnalysisResult{
		ImageRef: "x.jpg",
		Alerts:   []models.AnalysisAlert{{Type: "smoke", Message: "?"}},
	}
	_, _, err := store.SaveAnalysis(context.Background(), result, 0)
	assert.ErrorIs(t, err, ErrInvalidAlertType)

	images, err := store.ListShelfImages(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestSeedSampleProducts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.SeedSampleProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = store.SeedSampleProducts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding a non-empty table is a no-op")

	products, err := store.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 5)

	vitamin, err := store.FindProductByType(ctx, "vitamin_complex")
	require.NoError(t, err)
	require.NotNil(t, vitamin)
	assert.Nil(t, vitamin.Code)
	assert.Equal(t, 7, vitamin.MinStock)
}
