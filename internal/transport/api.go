package transport

import (
	"net/http"
	"strings"
	"time"

	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/logger"
	"go-shelf-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// analyze accepts either a multipart upload in field "image" or a JSON body
// referencing a photo.
func (h *handler) analyze(c *gin.Context) {
	startTime := time.Now()
	ctx, cancel := h.analysisContext(c)
	defer cancel()

	// Log request start
	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info("Processing shelf analysis request")

	var (
		report *models.AnalysisResponse
		err    error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		name, data, uerr := readUpload(c)
		if uerr != nil {
			respondError(c, determineStatusCode(uerr), "invalid upload", uerr)
			return
		}
		detailed := c.PostForm("detailed") == "true"
		if q := c.Query("detailed"); q != "" {
			detailed = q == "true"
		}
		report, err = h.svc.AnalyzeUpload(ctx, name, data, detailed)
	} else {
		var req models.AnalyzeRequest
		if berr := c.ShouldBindJSON(&req); berr != nil {
			verr := apperrors.NewValidationError("invalid request body", berr)
			respondError(c, determineStatusCode(verr), "invalid request format", verr)
			return
		}
		// Query parameter takes precedence over the JSON body
		if q := c.Query("detailed"); q != "" {
			req.Detailed = q == "true"
		}
		report, err = h.svc.AnalyzeReference(ctx, req.URL, req.Detailed)
	}
	if err != nil {
		respondError(c, determineStatusCode(err), "analysis failed", err)
		return
	}

	logAnalysis(c, report, startTime)
	c.JSON(http.StatusOK, report)
}

func (h *handler) listAlerts(c *gin.Context) {
	alerts, err := h.svc.ListAlerts(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (h *handler) resolveAlert(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.svc.ResolveAlert(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "resolved": true})
}

func (h *handler) listProducts(c *gin.Context) {
	products, err := h.svc.ListProducts(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *handler) createProduct(c *gin.Context) {
	var req models.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		verr := apperrors.NewValidationError("invalid product", err)
		respondError(c, determineStatusCode(verr), "invalid request format", verr)
		return
	}
	product, err := h.svc.CreateProduct(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *handler) updateStock(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.StockUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	resp, err := h.svc.UpdateStock(c.Request.Context(), id, *req.Stock)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.svc.Categories()})
}

func (h *handler) stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
