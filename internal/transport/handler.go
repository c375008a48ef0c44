// Package transport serves the shelf dashboard and the JSON API over gin.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"go-shelf-inspector/internal/config"
	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/logger"
	"go-shelf-inspector/internal/service"
	"go-shelf-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const version = "1.0.0"

// uploadField is the multipart field carrying the shelf photo.
const uploadField = "image"

type handler struct {
	svc             service.ShelfService
	analysisTimeout time.Duration
}

// NewHandler builds the gin engine serving the dashboard, the JSON API and
// the health check.
func NewHandler(svc service.ShelfService, cfg *config.Config) http.Handler {
	r := gin.Default()
	r.SetHTMLTemplate(pageTemplates)

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	h := &handler{svc: svc, analysisTimeout: cfg.AnalysisTimeout}

	r.GET("/health", healthCheck)

	// Dashboard
	r.GET("/", h.indexPage)
	r.POST("/", h.analyzePage)
	r.GET("/analysis", h.detailedPage)
	r.POST("/analysis", h.analyzeDetailedPage)
	r.GET("/alerts", h.alertsPage)
	r.POST("/alerts/:id/resolve", h.resolveAlertPage)

	api := r.Group("/api/v1")
	api.POST("/analyze", h.analyze)
	api.GET("/alerts", h.listAlerts)
	api.POST("/alerts/:id/resolve", h.resolveAlert)
	api.GET("/products", h.listProducts)
	api.POST("/products", h.createProduct)
	api.PUT("/products/:id/stock", h.updateStock)
	api.GET("/categories", h.categories)
	api.GET("/stats", h.stats)

	return r
}

// analysisContext bounds one analysis by the configured timeout.
func (h *handler) analysisContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.analysisTimeout)
}

// readUpload returns the name and content of the uploaded photo.
func readUpload(c *gin.Context) (string, []byte, error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, apperrors.NewValidationError("no image uploaded", err)
		}
		return "", nil, apperrors.NewValidationError("invalid upload", err)
	}
	data, err := readFileHeader(fh)
	if err != nil {
		return "", nil, apperrors.NewValidationError("failed to read upload", err)
	}
	return fh.Filename, data, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError("invalid id", err).WithDetails(c.Param("id"))
	}
	return uint(id), nil
}

func logAnalysis(c *gin.Context, report *models.AnalysisResponse, started time.Time) {
	logger.WithFields(logrus.Fields{
		"analysis_id":        report.Result.ID,
		"image_ref":          report.Result.ImageRef,
		"products":           len(report.Result.Products),
		"missing_types":      len(report.Result.Alerts),
		"failed_boxes":       report.Result.FailedBoxes(),
		"processing_time_ms": time.Since(started).Milliseconds(),
		"ip":                 c.ClientIP(),
	}).Info("Shelf analysis completed successfully")
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	// Check if it's a custom app error first
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
