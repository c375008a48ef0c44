package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-shelf-inspector/internal/config"
	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/repository"
	"go-shelf-inspector/internal/service"
	"go-shelf-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

type analyzeCall struct {
	source   string
	name     string
	size     int
	detailed bool
}

type fakeService struct {
	calls    []analyzeCall
	report   *models.AnalysisResponse
	err      error
	alerts   []models.AlertView
	resolved []uint
	products []repository.Product
	created  *models.ProductRequest
	stock    map[uint]int
}

func (f *fakeService) AnalyzeUpload(ctx context.Context, filename string, data []byte, detailed bool) (*service.AnalysisReport, error) {
	f.calls = append(f.calls, analyzeCall{source: "upload", name: filename, size: len(data), detailed: detailed})
	if _, ok := ctx.Deadline(); !ok {
		return nil, apperrors.NewInternalError("analysis context has no deadline", nil)
	}
	return f.report, f.err
}

func (f *fakeService) AnalyzeReference(ctx context.Context, ref string, detailed bool) (*service.AnalysisReport, error) {
	f.calls = append(f.calls, analyzeCall{source: "reference", name: ref, detailed: detailed})
	return f.report, f.err
}

func (f *fakeService) ListAlerts(ctx context.Context) ([]models.AlertView, error) {
	return f.alerts, nil
}

func (f *fakeService) ResolveAlert(ctx context.Context, id uint) error {
	for i, a := range f.alerts {
		if a.ID == id {
			f.alerts = append(f.alerts[:i], f.alerts[i+1:]...)
			f.resolved = append(f.resolved, id)
			return nil
		}
	}
	return apperrors.NewNotFoundError("alert not found", nil)
}

func (f *fakeService) ListProducts(ctx context.Context) ([]repository.Product, error) {
	return f.products, nil
}

func (f *fakeService) CreateProduct(ctx context.Context, req models.ProductRequest) (*repository.Product, error) {
	if req.ProductType == "unknown" {
		return nil, apperrors.NewValidationError("unknown product type", nil)
	}
	f.created = &req
	return &repository.Product{ID: 42, Name: req.Name, ProductType: req.ProductType, IsActive: true}, nil
}

func (f *fakeService) UpdateStock(ctx context.Context, productID uint, stock int) (*models.StockUpdateResponse, error) {
	if productID != 1 {
		return nil, apperrors.NewNotFoundError("product not found", nil)
	}
	if f.stock == nil {
		f.stock = map[uint]int{}
	}
	f.stock[productID] = stock
	resp := &models.StockUpdateResponse{ProductID: productID, Stock: stock}
	if stock < 5 {
		resp.Alert = &models.AlertView{ID: 9, AlertType: models.AlertLowStock, Message: "low"}
	}
	return resp, nil
}

func (f *fakeService) RecentAnalyses(ctx context.Context, limit int) ([]repository.ShelfImage, error) {
	return []repository.ShelfImage{{ID: 1, ImagePath: "data/uploads/shelf_a.jpg", CaptureTime: time.Now(), ProductsDetected: 3}}, nil
}

func (f *fakeService) Categories() []string {
	return []string{"Weight Management", "Skin Care"}
}

func (f *fakeService) Stats(ctx context.Context) (*service.Stats, error) {
	return &service.Stats{Counts: repository.Counts{Products: 5, UnresolvedAlerts: 2}}, nil
}

func sampleReport() *models.AnalysisResponse {
	return &models.AnalysisResponse{
		ShelfImageID: 7,
		Result: &models.ShelfAnalysisResult{
			ID: "analysis-1",
			Products: []models.DetectedProduct{
				{Index: 0, Info: models.ProductInfo{Type: strPtr("formula_1"), Code: strPtr("3433-3132"), Flavor: strPtr("vanilla")}},
				{Index: 1, Error: "extraction: OCR failed"},
			},
			DetectedTypes: []string{"formula_1"},
			Alerts: []models.AnalysisAlert{
				{Type: models.AlertMissingProduct, ProductType: "skin_booster", Message: models.MissingProductMessage("skin_booster")},
			},
			Coverage: 0.5,
		},
		Annotated: "data:image/jpeg;base64,AAAA",
		Crops:     []models.CropPreview{{Index: 0, DataURI: "data:image/png;base64,BBBB"}},
	}
}

func newTestServer(t *testing.T, svc *fakeService) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		MaxRequestBodySize: 1 << 20,
		AnalysisTimeout:    5 * time.Second,
	}
	return NewHandler(svc, cfg)
}

// helper to perform requests
func performRequest(r http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	w, err := mw.CreateFormFile(uploadField, filename)
	require.NoError(t, err)
	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	r := newTestServer(t, &fakeService{})
	rec := performRequest(r, http.MethodGet, "/health", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "available", body["status"])
	assert.Equal(t, version, body["version"])
}

func TestAPIAnalyze_Upload(t *testing.T) {
	svc := &fakeService{report: sampleReport()}
	r := newTestServer(t, svc)

	body, ct := multipartUpload(t, "shelf.jpg", []byte("jpeg bytes"), map[string]string{"detailed": "true"})
	rec := performRequest(r, http.MethodPost, "/api/v1/analyze", body, ct)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.calls, 1)
	assert.Equal(t, analyzeCall{source: "upload", name: "shelf.jpg", size: 10, detailed: true}, svc.calls[0])

	var got models.AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint(7), got.ShelfImageID)
	assert.Len(t, got.Result.Products, 2)
	assert.Equal(t, "skin_booster", got.Result.Alerts[0].ProductType)
}

func TestAPIAnalyze_ReferenceWithQueryOverride(t *testing.T) {
	svc := &fakeService{report: sampleReport()}
	r := newTestServer(t, svc)

	payload := `{"url":"https://cdn.example.com/shelf.jpg","detailed":true}`
	rec := performRequest(r, http.MethodPost, "/api/v1/analyze?detailed=false", strings.NewReader(payload), "application/json")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.calls, 1)
	assert.Equal(t, "reference", svc.calls[0].source)
	assert.Equal(t, "https://cdn.example.com/shelf.jpg", svc.calls[0].name)
	assert.False(t, svc.calls[0].detailed)
}

func TestAPIAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        func(t *testing.T) (io.Reader, string)
		serviceErr  error
		wantStatus  int
		wantMessage string
	}{
		{
			name: "missing url",
			body: func(t *testing.T) (io.Reader, string) {
				return strings.NewReader(`{}`), "application/json"
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "invalid request format",
		},
		{
			name: "malformed json",
			body: func(t *testing.T) (io.Reader, string) {
				return strings.NewReader(`{"url":`), "application/json"
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "invalid request format",
		},
		{
			name: "multipart without image",
			body: func(t *testing.T) (io.Reader, string) {
				buf := &bytes.Buffer{}
				mw := multipart.NewWriter(buf)
				require.NoError(t, mw.WriteField("detailed", "true"))
				require.NoError(t, mw.Close())
				return buf, mw.FormDataContentType()
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "no image uploaded",
		},
		{
			name: "image load error",
			body: func(t *testing.T) (io.Reader, string) {
				return multipartUpload(t, "shelf.png", []byte("not a png"), nil)
			},
			serviceErr:  apperrors.NewImageLoadError("shelf.png", nil),
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "analysis failed",
		},
		{
			name: "analysis timeout",
			body: func(t *testing.T) (io.Reader, string) {
				return strings.NewReader(`{"url":"https://cdn.example.com/a.jpg"}`), "application/json"
			},
			serviceErr:  apperrors.NewTimeoutError("analysis timed out", context.DeadlineExceeded),
			wantStatus:  http.StatusGatewayTimeout,
			wantMessage: "analysis failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestServer(t, &fakeService{err: tt.serviceErr})
			body, ct := tt.body(t)
			rec := performRequest(r, http.MethodPost, "/api/v1/analyze", body, ct)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, http.StatusText(tt.wantStatus), resp.Error)
			assert.Contains(t, resp.Message, tt.wantMessage)
		})
	}
}

func TestAPIAnalyze_BodyTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewHandler(&fakeService{}, &config.Config{MaxRequestBodySize: 64, AnalysisTimeout: time.Second})

	body, ct := multipartUpload(t, "shelf.jpg", bytes.Repeat([]byte{0xff}, 4096), nil)
	rec := performRequest(r, http.MethodPost, "/api/v1/analyze", body, ct)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestAPIAlerts(t *testing.T) {
	svc := &fakeService{alerts: []models.AlertView{
		{ID: 1, AlertType: models.AlertMissingProduct, Message: "Product 'skin_booster' is missing from the shelf."},
		{ID: 2, AlertType: models.AlertLowStock, Message: "low"},
	}}
	r := newTestServer(t, svc)

	rec := performRequest(r, http.MethodGet, "/api/v1/alerts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Alerts []models.AlertView `json:"alerts"`
		Count  int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)

	rec = performRequest(r, http.MethodPost, "/api/v1/alerts/1/resolve", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []uint{1}, svc.resolved)

	rec = performRequest(r, http.MethodPost, "/api/v1/alerts/1/resolve", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = performRequest(r, http.MethodPost, "/api/v1/alerts/abc/resolve", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIProducts(t *testing.T) {
	svc := &fakeService{products: []repository.Product{{ID: 1, Name: "Formula 1 Vanilla", ProductType: "formula_1"}}}
	r := newTestServer(t, svc)

	rec := performRequest(r, http.MethodGet, "/api/v1/products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Formula 1 Vanilla")

	rec = performRequest(r, http.MethodPost, "/api/v1/products",
		strings.NewReader(`{"name":"Herbal Tea","product_type":"specialty_blend","code":"T-100","current_stock":4}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.created)
	assert.Equal(t, "T-100", *svc.created.Code)
	assert.Equal(t, 4, svc.created.CurrentStock)
	assert.Nil(t, svc.created.MinStock)

	rec = performRequest(r, http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"x"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = performRequest(r, http.MethodPost, "/api/v1/products",
		strings.NewReader(`{"name":"x","product_type":"unknown"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIUpdateStock(t *testing.T) {
	svc := &fakeService{}
	r := newTestServer(t, svc)

	rec := performRequest(r, http.MethodPut, "/api/v1/products/1/stock", strings.NewReader(`{"stock":2}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.StockUpdateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Alert)
	assert.Equal(t, models.AlertLowStock, resp.Alert.AlertType)

	// zero is a valid stock level
	rec = performRequest(r, http.MethodPut, "/api/v1/products/1/stock", strings.NewReader(`{"stock":0}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, svc.stock[1])

	rec = performRequest(r, http.MethodPut, "/api/v1/products/1/stock", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = performRequest(r, http.MethodPut, "/api/v1/products/99/stock", strings.NewReader(`{"stock":20}`), "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPICategoriesAndStats(t *testing.T) {
	r := newTestServer(t, &fakeService{})

	rec := performRequest(r, http.MethodGet, "/api/v1/categories", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"categories":["Weight Management","Skin Care"]}`, rec.Body.String())

	rec = performRequest(r, http.MethodGet, "/api/v1/stats", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Contains(t, stats, "events")
}

func TestDashboard_IndexRendersForm(t *testing.T) {
	r := newTestServer(t, &fakeService{})
	rec := performRequest(r, http.MethodGet, "/", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `enctype="multipart/form-data"`)
	assert.Contains(t, body, "shelf_a.jpg")
	assert.NotContains(t, body, "Summary")
}

func TestDashboard_AnalyzeSummary(t *testing.T) {
	svc := &fakeService{report: sampleReport()}
	r := newTestServer(t, svc)

	body, ct := multipartUpload(t, "shelf.jpg", []byte("jpeg"), nil)
	rec := performRequest(r, http.MethodPost, "/", body, ct)

	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "Detected products: 2")
	assert.Contains(t, page, "3433-3132")
	assert.Contains(t, page, "N/A")
	assert.Contains(t, page, "extraction: OCR failed")
	assert.Contains(t, page, "Product &#39;skin_booster&#39; is missing from the shelf.")
	assert.False(t, svc.calls[0].detailed)
}

func TestDashboard_NoProductsDetected(t *testing.T) {
	report := &models.AnalysisResponse{Result: &models.ShelfAnalysisResult{ID: "empty"}}
	r := newTestServer(t, &fakeService{report: report})

	body, ct := multipartUpload(t, "shelf.jpg", []byte("jpeg"), nil)
	rec := performRequest(r, http.MethodPost, "/", body, ct)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No products detected")
}

func TestDashboard_ErrorShownInline(t *testing.T) {
	svc := &fakeService{err: apperrors.NewImageLoadError("shelf.jpg", nil)}
	r := newTestServer(t, svc)

	body, ct := multipartUpload(t, "shelf.jpg", []byte("jpeg"), nil)
	rec := performRequest(r, http.MethodPost, "/", body, ct)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `class="error"`)
	assert.Contains(t, rec.Body.String(), "could not load image")
}

func TestDashboard_DetailedAnalysis(t *testing.T) {
	svc := &fakeService{report: sampleReport()}
	r := newTestServer(t, svc)

	rec := performRequest(r, http.MethodGet, "/analysis", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body, ct := multipartUpload(t, "shelf.png", []byte("png"), nil)
	rec = performRequest(r, http.MethodPost, "/analysis", body, ct)

	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, `src="data:image/jpeg;base64,AAAA"`)
	assert.Contains(t, page, `src="data:image/png;base64,BBBB"`)
	assert.Contains(t, page, "&#34;code&#34;: &#34;3433-3132&#34;")
	assert.True(t, svc.calls[0].detailed)
}

func TestDashboard_Alerts(t *testing.T) {
	svc := &fakeService{alerts: []models.AlertView{
		{ID: 3, ProductName: "Skin Booster", AlertType: models.AlertMissingProduct, Message: "missing", CreatedAt: time.Now()},
	}}
	r := newTestServer(t, svc)

	rec := performRequest(r, http.MethodGet, "/alerts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Skin Booster")
	assert.Contains(t, rec.Body.String(), `action="/alerts/3/resolve"`)

	rec = performRequest(r, http.MethodPost, "/alerts/3/resolve", nil, "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/alerts", rec.Header().Get("Location"))

	rec = performRequest(r, http.MethodGet, "/alerts", nil, "")
	assert.Contains(t, rec.Body.String(), "No active alerts")

	rec = performRequest(r, http.MethodPost, "/alerts/3/resolve", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "alert not found")
}

func TestDetermineStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", apperrors.NewConflictError("dup", nil), http.StatusConflict},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, http.StatusTooManyRequests},
		{"too large", apperrors.NewValidationError("upload", &http.MaxBytesError{Limit: 1}), http.StatusRequestEntityTooLarge},
		{"plain", io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineStatusCode(tt.err))
		})
	}
}
