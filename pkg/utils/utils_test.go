package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "leaf blight", SanitizeString("  leaf\x00 blight\x7f\n"))
	assert.Equal(t, "", SanitizeString("\t\r\n"))
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "leaf.jpg", "leaf.jpg"},
		{"strips directories", "../../etc/passwd", "passwd"},
		{"windows path", `C:\photos\maize leaf.png`, "maize_leaf.png"},
		{"unsafe characters", "my photo (1).jpeg", "my_photo_1_.jpeg"},
		{"empty", "", "fallback.jpg"},
		{"only dots", "..", "fallback.jpg"},
		{"control characters", "a\x00b.jpg", "ab.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFileName(tt.input, "fallback.jpg"))
		})
	}
}

func TestSanitizeFileName_TruncatesKeepingExtension(t *testing.T) {
	got := SanitizeFileName(strings.Repeat("a", 300)+".png", "x")
	assert.Len(t, got, maxFileNameLen)
	assert.True(t, strings.HasSuffix(got, ".png"))
}

func TestValidateUploadSize(t *testing.T) {
	assert.Error(t, ValidateUploadSize(0, 10))
	assert.Error(t, ValidateUploadSize(11, 10))
	assert.NoError(t, ValidateUploadSize(10, 10))
	assert.NoError(t, ValidateUploadSize(1<<30, 0))
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, err := NewLogger(LoggerConfig{Level: "debug", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	logger.Info("scan recorded")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"scan recorded"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := NewLogger(LoggerConfig{Level: "loud", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}
