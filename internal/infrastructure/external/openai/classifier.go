// Package openai classifies leaf photos with a vision-capable chat model.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/port"
	"github.com/garyjia/crop-guard/internal/domain/crop"
)

// Config holds the OpenAI connection settings
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Classifier implements port.Predictor on top of the chat completions API.
// It only answers with labels known for the requested model.
type Classifier struct {
	client   *openai.Client
	model    string
	prompts  *PromptConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewClassifier creates a classifier. A nil prompts value uses DefaultPrompts.
func NewClassifier(cfg Config, prompts *PromptConfig, logger *zap.Logger) (*Classifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Classifier{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		prompts:  prompts,
		validate: validator.New(),
		logger:   logger,
	}, nil
}

type classification struct {
	Label      string   `json:"label" validate:"required"`
	Confidence *float64 `json:"confidence" validate:"required"`
}

// Predict asks the chat model to pick one of the model's labels for the image
func (c *Classifier) Predict(ctx context.Context, req port.PredictRequest) (*port.Prediction, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: image is required", port.ErrValidation)
	}
	labels := crop.Labels(req.ModelName)
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: unknown model %q", port.ErrValidation, req.ModelName)
	}
	cropType, _ := crop.CropForModel(req.ModelName)

	prompt, err := renderTemplate(c.prompts.Classification.UserTemplate, promptData{
		Crop:   strings.ToLower(cropType.String()),
		Labels: labels,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrValidation, err)
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	c.logger.Debug("Classifying leaf with vision model",
		zap.String("model", req.ModelName),
		zap.String("llm", c.model),
		zap.Int("image_bytes", len(req.Image)))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.prompts.Classification.MaxTokens,
		Temperature: c.prompts.Classification.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: c.prompts.Classification.System,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(req.Image)),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Error("Vision API call failed", zap.Error(err))
		return nil, classifyAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response from vision model", port.ErrParse)
	}

	content := resp.Choices[0].Message.Content
	result, err := c.parseClassification(content)
	if err != nil {
		c.logger.Error("Failed to parse vision model response",
			zap.Error(err),
			zap.String("content", content))
		return nil, err
	}

	label, ok := matchLabel(result.Label, labels)
	if !ok {
		return nil, fmt.Errorf("%w: label %q is not known for model %s", port.ErrParse, result.Label, req.ModelName)
	}

	c.logger.Info("Leaf classified",
		zap.String("model", req.ModelName),
		zap.String("label", label),
		zap.Float64("confidence", *result.Confidence))

	return &port.Prediction{
		Model:      req.ModelName,
		Label:      label,
		Confidence: *result.Confidence,
	}, nil
}

func (c *Classifier) parseClassification(content string) (*classification, error) {
	var result classification
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		// Fallback: try to extract JSON from markdown code blocks
		jsonStr := extractJSON(content)
		if jsonStr == "" {
			return nil, fmt.Errorf("%w: %w", port.ErrParse, err)
		}
		if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
			return nil, fmt.Errorf("%w: %w", port.ErrParse, err)
		}
	}
	if err := c.validate.Struct(result); err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrParse, err)
	}
	return &result, nil
}

func matchLabel(label string, labels []string) (string, bool) {
	norm := strings.ToLower(strings.TrimSpace(label))
	for _, l := range labels {
		if l == norm {
			return l, true
		}
	}
	return "", false
}

var jsonBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSON pulls the first JSON object out of a markdown reply
func extractJSON(content string) string {
	if m := jsonBlock.FindStringSubmatch(content); len(m) == 2 {
		return m[1]
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return ""
}

func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &port.ServerError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &port.ServerError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return fmt.Errorf("%w: %w", port.ErrNetwork, err)
}
