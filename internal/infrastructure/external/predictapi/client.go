// Package predictapi talks to the remote crop disease inference endpoint.
package predictapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/port"
	"github.com/garyjia/crop-guard/internal/domain/entity"
)

const (
	// DefaultPredictPath is appended to the base URL
	DefaultPredictPath = "/predict"
	// DefaultFileName is the multipart file name the server expects
	DefaultFileName = "plant_image.jpg"
	// DefaultMimeType is sent when the caller does not know the image type
	DefaultMimeType = "image/jpeg"

	maxErrorBody = 512
)

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the endpoint settings. BaseURL is resolved once by the caller.
type Config struct {
	BaseURL     string
	PredictPath string
	Timeout     time.Duration
}

// Client submits leaf images to the prediction endpoint
type Client struct {
	endpoint   string
	httpClient HTTPClient
	validate   *validator.Validate
	logger     *zap.Logger
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient swaps the transport
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a prediction client. A zero Timeout leaves the
// transport default in place.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("predict api base URL is required")
	}
	path := cfg.PredictPath
	if path == "" {
		path = DefaultPredictPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	c := &Client{
		endpoint:   base + path,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		validate:   validator.New(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the resolved prediction URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// predictResponse is the wire shape. Pointers let the validator tell a
// missing field from a zero value. Confidence is not range checked here;
// the scan service clamps it when scaling to a percentage.
type predictResponse struct {
	Model          string                  `json:"model"`
	Label          *string                 `json:"label" validate:"required,min=1"`
	Confidence     *float64                `json:"confidence" validate:"required"`
	Recommendation *recommendationResponse `json:"recommendation"`
}

type recommendationResponse struct {
	Description string   `json:"description" validate:"required"`
	Symptoms    []string `json:"symptoms"`
	Treatment   string   `json:"treatment"`
	Prevention  string   `json:"prevention"`
	Message     string   `json:"message"`
}

// Predict sends one multipart POST and decodes the diagnosis. It never retries.
func (c *Client) Predict(ctx context.Context, req port.PredictRequest) (*port.Prediction, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: image is required", port.ErrValidation)
	}
	if strings.TrimSpace(req.ModelName) == "" {
		return nil, fmt.Errorf("%w: model name is required", port.ErrValidation)
	}

	body, contentType, err := encodeForm(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", port.ErrValidation, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", port.ErrNetwork, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Prediction request failed",
			zap.String("endpoint", c.endpoint),
			zap.String("model", req.ModelName),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", port.ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", port.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Prediction endpoint returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("model", req.ModelName))
		return nil, &port.ServerError{StatusCode: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}

	prediction, err := c.decode(raw)
	if err != nil {
		c.logger.Error("Failed to decode prediction response", zap.Error(err))
		return nil, err
	}

	c.logger.Info("Prediction received",
		zap.String("model", req.ModelName),
		zap.String("label", prediction.Label),
		zap.Float64("confidence", prediction.Confidence),
		zap.Duration("latency", time.Since(start)))

	return prediction, nil
}

func (c *Client) decode(raw []byte) (*port.Prediction, error) {
	var wire predictResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrParse, err)
	}
	if err := c.validate.Struct(wire); err != nil {
		return nil, fmt.Errorf("%w: unexpected response shape: %w", port.ErrParse, err)
	}

	p := &port.Prediction{
		Model:      wire.Model,
		Label:      *wire.Label,
		Confidence: *wire.Confidence,
	}
	if r := wire.Recommendation; r != nil {
		p.Recommendation = &entity.Recommendation{
			Description: r.Description,
			Symptoms:    append([]string{}, r.Symptoms...),
			Treatment:   r.Treatment,
			Prevention:  r.Prevention,
			Message:     r.Message,
		}
	}
	return p, nil
}

func encodeForm(req port.PredictRequest) (io.Reader, string, error) {
	fileName := req.FileName
	if fileName == "" {
		fileName = DefaultFileName
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("model_name", req.ModelName); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
