package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/port"
	"github.com/garyjia/crop-guard/internal/application/service"
	"github.com/garyjia/crop-guard/internal/domain/crop"
	"github.com/garyjia/crop-guard/internal/domain/entity"
	"github.com/garyjia/crop-guard/internal/domain/recommendation"
	"github.com/garyjia/crop-guard/internal/infrastructure/external/predictapi"
	"github.com/garyjia/crop-guard/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	scans     *service.ScanService
	history   *service.HistoryStore
	deps      Dependencies
	maxUpload int64
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, maxUpload int64, logger *zap.Logger) *Handlers {
	return &Handlers{
		scans:     deps.Scans,
		history:   deps.Scans.History(),
		deps:      deps,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// ScanResponse is a scan as returned to the UI, with display helpers
type ScanResponse struct {
	entity.ScanResult
	ConfidenceBand string   `json:"confidenceBand"`
	Healthy        bool     `json:"healthy"`
	Steps          []string `json:"steps"`
	Saved          bool     `json:"saved"`
}

// RecommendationResponse is the advice resolved for a label
type RecommendationResponse struct {
	Label          string                `json:"label"`
	CropType       entity.CropType       `json:"cropType,omitempty"`
	Matched        bool                  `json:"matched"`
	Recommendation entity.Recommendation `json:"recommendation"`
	Steps          []string              `json:"steps"`
}

// ModelResponse describes one crop model
type ModelResponse struct {
	CropType entity.CropType `json:"cropType"`
	Model    string          `json:"model"`
	Labels   []string        `json:"labels"`
}

// HistoryQuery represents query parameters for listing history
type HistoryQuery struct {
	Query string `form:"q"`
	Crop  string `form:"crop"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.deps.Health != nil {
		healthy, details := h.deps.Health(c.Request.Context())
		response.Components = details
		if !healthy {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// CreateScan handles POST /api/v1/scans
func (h *Handlers) CreateScan(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	cropType, err := parseCrop(c.PostForm("crop_type"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	save := true
	if raw := c.DefaultPostForm("save", "true"); raw != "" {
		if save, err = strconv.ParseBool(raw); err != nil {
			h.respondError(c, fmt.Errorf("%w: invalid save flag %q", port.ErrValidation, raw))
			return
		}
	}

	image, fileName, err := h.readUpload(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	in := service.ScanInput{
		Image:    image,
		FileName: fileName,
		CropType: cropType,
	}

	if save {
		result, err := h.scans.Analyze(c.Request.Context(), in)
		if err != nil {
			h.respondScanError(c, toScanResponse(result, false), err)
			return
		}
		c.JSON(http.StatusCreated, Response{Success: true, Data: toScanResponse(result, true)})
		return
	}

	scan, err := h.scans.Predict(c.Request.Context(), in)
	if err != nil {
		failed := entity.FailedScan(scan.ImageURI, scan.CropType, scan.Date)
		h.respondScanError(c, toScanResponse(failed, false), err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toScanResponse(scan.WithID(""), false)})
}

func (h *Handlers) readUpload(c *gin.Context) ([]byte, string, error) {
	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", fmt.Errorf("%w: upload exceeds %d bytes", port.ErrValidation, maxErr.Limit)
		}
		return nil, "", fmt.Errorf("%w: multipart field \"file\" is required", port.ErrValidation)
	}
	if err := utils.ValidateUploadSize(header.Size, h.maxUpload); err != nil {
		return nil, "", fmt.Errorf("%w: %w", port.ErrValidation, err)
	}

	f, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	image, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	return image, utils.SanitizeFileName(header.Filename, predictapi.DefaultFileName), nil
}

// ListHistory handles GET /api/v1/history
func (h *Handlers) ListHistory(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondError(c, fmt.Errorf("%w: invalid query parameters", port.ErrValidation))
		return
	}
	cropType, err := parseCrop(q.Crop)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := h.history.Search(service.HistoryFilter{
		Query:    utils.SanitizeString(q.Query),
		CropType: cropType,
	})

	response := make([]ScanResponse, 0, len(items))
	for _, item := range items {
		response = append(response, toScanResponse(item, true))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: response})
}

// GetScan handles GET /api/v1/history/:id
func (h *Handlers) GetScan(c *gin.Context) {
	scan, err := h.scans.FromHistory(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toScanResponse(scan, true)})
}

// DeleteScan handles DELETE /api/v1/history/:id. Unknown ids succeed.
func (h *Handlers) DeleteScan(c *gin.Context) {
	removed := h.history.RemoveOne(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"removed": removed},
	})
}

// ClearHistory handles DELETE /api/v1/history
func (h *Handlers) ClearHistory(c *gin.Context) {
	h.history.Clear(c.Request.Context())
	c.JSON(http.StatusOK, Response{Success: true})
}

// ExportHistory handles GET /api/v1/history/export
func (h *Handlers) ExportHistory(c *gin.Context) {
	if h.deps.Exporter == nil {
		c.JSON(http.StatusNotImplemented, Response{Success: false, Error: "export is not configured"})
		return
	}

	var buf bytes.Buffer
	if err := h.deps.Exporter.Export(h.history.List(), &buf); err != nil {
		h.logger.Error("Failed to export history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to export history"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="scan-history.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetRecommendation handles GET /api/v1/recommendations
func (h *Handlers) GetRecommendation(c *gin.Context) {
	label := utils.SanitizeString(c.Query("label"))
	if label == "" {
		h.respondError(c, fmt.Errorf("%w: label is required", port.ErrValidation))
		return
	}
	cropType, err := parseCrop(c.Query("crop"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var (
		rec     entity.Recommendation
		matched bool
	)
	if cropType != "" {
		rec, matched = recommendation.LookupForCrop(label, cropType)
	} else {
		rec, matched = recommendation.Lookup(label)
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: RecommendationResponse{
			Label:          label,
			CropType:       cropType,
			Matched:        matched,
			Recommendation: rec,
			Steps:          rec.Steps(),
		},
	})
}

// ListModels handles GET /api/v1/models
func (h *Handlers) ListModels(c *gin.Context) {
	crops := entity.CropTypes()
	response := make([]ModelResponse, 0, len(crops))
	for _, ct := range crops {
		model := crop.ResolveModel(ct)
		response = append(response, ModelResponse{
			CropType: ct,
			Model:    model,
			Labels:   crop.Labels(model),
		})
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: response})
}

func (h *Handlers) respondScanError(c *gin.Context, fallback ScanResponse, err error) {
	status := statusForError(err)
	h.logger.Warn("Scan failed", zap.Int("status", status), zap.Error(err))
	c.JSON(status, Response{
		Success: false,
		Data:    fallback,
		Error:   err.Error(),
	})
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

// statusForError maps the error taxonomy onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, port.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, port.ErrNetwork),
		errors.Is(err, port.ErrServer),
		errors.Is(err, port.ErrParse):
		return http.StatusBadGateway
	case service.IsCanceled(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseCrop treats an empty value as "no crop given"
func parseCrop(raw string) (entity.CropType, error) {
	if raw == "" {
		return "", nil
	}
	ct, err := entity.ParseCropType(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", port.ErrValidation, err)
	}
	return ct, nil
}

func toScanResponse(scan entity.ScanResult, saved bool) ScanResponse {
	steps := scan.Recommendation.Steps()
	if scan.Failed() {
		steps = []string{}
	}
	return ScanResponse{
		ScanResult:     scan,
		ConfidenceBand: scan.ConfidenceBand(),
		Healthy:        !scan.Failed() && scan.IsHealthy(),
		Steps:          steps,
		Saved:          saved,
	}
}
