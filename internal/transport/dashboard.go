package transport

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/logger"
	"go-shelf-inspector/internal/repository"
	"go-shelf-inspector/pkg/models"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").Funcs(template.FuncMap{
	"percent": func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"when":    func(t time.Time) string { return t.Local().Format("2006-01-02 15:04:05") },
}).ParseFS(templateFS, "templates/*.html"))

const recentAnalyses = 5

// notAvailable is shown for fields no rule matched.
const notAvailable = "N/A"

type productRow struct {
	Index   int
	Type    string
	Code    string
	Flavor  string
	Variant string
	Error   string
	RawText string
	Info    string
	Crop    template.URL
}

type pageData struct {
	Title     string
	Active    string
	Error     string
	Report    *models.AnalysisResponse
	Rows      []productRow
	Annotated template.URL
	Alerts    []models.AlertView
	Recent    []repository.ShelfImage
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return notAvailable
	}
	return *s
}

// userMessage is the text shown inline for a failed dashboard action.
func userMessage(err error) string {
	appErr, ok := apperrors.As(err)
	if !ok {
		return err.Error()
	}
	if appErr.Details != "" {
		return appErr.Message + ": " + appErr.Details
	}
	return appErr.Message
}

// rows flattens a report for the templates. Crop previews are matched by box
// index since unreadable boxes have none.
func rows(report *models.AnalysisResponse) []productRow {
	crops := make(map[int]string, len(report.Crops))
	for _, c := range report.Crops {
		crops[c.Index] = c.DataURI
	}
	out := make([]productRow, 0, len(report.Result.Products))
	for _, p := range report.Result.Products {
		info, _ := json.MarshalIndent(p.Info, "", "  ")
		out = append(out, productRow{
			Index:   p.Index,
			Type:    orNA(p.Info.Type),
			Code:    orNA(p.Info.Code),
			Flavor:  orNA(p.Info.Flavor),
			Variant: orNA(p.Info.Variant),
			Error:   p.Error,
			RawText: p.RawText,
			Info:    string(info),
			// data URIs are produced by the service, never by the client
			Crop: template.URL(crops[p.Index]),
		})
	}
	return out
}

func (h *handler) indexPage(c *gin.Context) {
	h.renderIndex(c, http.StatusOK, pageData{})
}

func (h *handler) analyzePage(c *gin.Context) {
	data, code := h.analyzeForm(c, false)
	h.renderIndex(c, code, data)
}

func (h *handler) renderIndex(c *gin.Context, code int, data pageData) {
	data.Title = "Shelf Analysis"
	data.Active = "index"
	recent, err := h.svc.RecentAnalyses(c.Request.Context(), recentAnalyses)
	if err != nil {
		logger.WithError(err).Warn("Failed to load recent analyses")
	}
	data.Recent = recent
	c.HTML(code, "index.html", data)
}

func (h *handler) detailedPage(c *gin.Context) {
	c.HTML(http.StatusOK, "analysis.html", pageData{Title: "Detailed Analysis", Active: "analysis"})
}

func (h *handler) analyzeDetailedPage(c *gin.Context) {
	data, code := h.analyzeForm(c, true)
	data.Title = "Detailed Analysis"
	data.Active = "analysis"
	c.HTML(code, "analysis.html", data)
}

// analyzeForm runs an upload from a dashboard form. Failures are reported
// inline on the page rather than as JSON.
func (h *handler) analyzeForm(c *gin.Context, detailed bool) (pageData, int) {
	started := time.Now()
	name, body, err := readUpload(c)
	if err != nil {
		return pageData{Error: userMessage(err)}, determineStatusCode(err)
	}

	ctx, cancel := h.analysisContext(c)
	defer cancel()
	report, err := h.svc.AnalyzeUpload(ctx, name, body, detailed)
	if err != nil {
		logger.WithError(err).WithField("filename", name).Error("Dashboard analysis failed")
		return pageData{Error: userMessage(err)}, determineStatusCode(err)
	}
	logAnalysis(c, report, started)

	return pageData{
		Report:    report,
		Rows:      rows(report),
		Annotated: template.URL(report.Annotated),
	}, http.StatusOK
}

func (h *handler) alertsPage(c *gin.Context) {
	h.renderAlerts(c, http.StatusOK, "")
}

func (h *handler) renderAlerts(c *gin.Context, code int, message string) {
	data := pageData{Title: "Active Alerts", Active: "alerts", Error: message}
	alerts, err := h.svc.ListAlerts(c.Request.Context())
	if err != nil {
		data.Error = userMessage(err)
		code = determineStatusCode(err)
	}
	data.Alerts = alerts
	c.HTML(code, "alerts.html", data)
}

func (h *handler) resolveAlertPage(c *gin.Context) {
	id, err := parseID(c)
	if err == nil {
		err = h.svc.ResolveAlert(c.Request.Context(), id)
	}
	if err != nil {
		h.renderAlerts(c, determineStatusCode(err), userMessage(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/alerts")
}
