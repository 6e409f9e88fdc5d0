package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/port"
)

var leaf = []byte{0xFF, 0xD8, 0xFF, 0xE0}

func chatServer(t *testing.T, status int, content string, seen *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests","code":"rate_limit"}}`))
			return
		}
		resp := map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClassifier(t *testing.T, srv *httptest.Server) *Classifier {
	t.Helper()
	c, err := NewClassifier(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "gpt-4o"}, nil, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClassifier_RequiresKey(t *testing.T) {
	_, err := NewClassifier(Config{}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestClassifier_Predict(t *testing.T) {
	var body map[string]interface{}
	srv := chatServer(t, http.StatusOK, `{"label": "Leaf Curl", "confidence": 0.91}`, &body)
	c := newClassifier(t, srv)

	p, err := c.Predict(context.Background(), port.PredictRequest{ModelName: "xception_tomato", Image: leaf, MimeType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "leaf curl", p.Label)
	assert.InDelta(t, 0.91, p.Confidence, 1e-9)
	assert.Equal(t, "xception_tomato", p.Model)
	assert.Nil(t, p.Recommendation)

	raw, _ := json.Marshal(body)
	assert.Contains(t, string(raw), "septoria leaf spot")
	assert.Contains(t, string(raw), "data:image/png;base64,")
}

func TestClassifier_MarkdownFallback(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "Here you go:\n```json\n{\"label\": \"mosaic\", \"confidence\": 0.6}\n```", nil)
	c := newClassifier(t, srv)

	p, err := c.Predict(context.Background(), port.PredictRequest{ModelName: "xception_cassava", Image: leaf})
	require.NoError(t, err)
	assert.Equal(t, "mosaic", p.Label)
}

func TestClassifier_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "label from another crop", content: `{"label": "red rust", "confidence": 0.8}`},
		{name: "missing confidence", content: `{"label": "healthy"}`},
		{name: "not json", content: "the leaf looks healthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, http.StatusOK, tt.content, nil)
			c := newClassifier(t, srv)
			_, err := c.Predict(context.Background(), port.PredictRequest{ModelName: "xception_maize", Image: leaf})
			assert.ErrorIs(t, err, port.ErrParse)
		})
	}
}

func TestClassifier_OutOfRangeConfidence(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"label": "healthy", "confidence": 1.0000001}`, nil)
	c := newClassifier(t, srv)

	p, err := c.Predict(context.Background(), port.PredictRequest{ModelName: "xception_maize", Image: leaf})
	require.NoError(t, err)
	assert.InDelta(t, 1.0000001, p.Confidence, 1e-9)
}

func TestClassifier_ServerError(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "", nil)
	c := newClassifier(t, srv)

	_, err := c.Predict(context.Background(), port.PredictRequest{ModelName: "xception_maize", Image: leaf})
	assert.ErrorIs(t, err, port.ErrServer)
}

func TestClassifier_Validation(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{}`, nil)
	c := newClassifier(t, srv)

	_, err := c.Predict(context.Background(), port.PredictRequest{ModelName: "xception_maize"})
	assert.ErrorIs(t, err, port.ErrValidation)

	_, err = c.Predict(context.Background(), port.PredictRequest{ModelName: "resnet_banana", Image: leaf})
	assert.ErrorIs(t, err, port.ErrValidation)
}

func TestLoadPrompts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classification:\n  temperature: 0.3\n  system: be brief\n"), 0644))

	p, err := LoadPrompts(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, p.Classification.Temperature, 1e-6)
	assert.Equal(t, "be brief", p.Classification.System)
	assert.Equal(t, defaultUserTemplate, p.Classification.UserTemplate)

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`noise {"a":1} trailing`))
	assert.Empty(t, extractJSON("nothing here"))
	assert.True(t, strings.HasPrefix(extractJSON("```\n{\"b\":2}\n```"), "{"))
}
