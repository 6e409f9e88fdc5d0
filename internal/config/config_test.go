package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MODE", "DEV_BASE_URL", "PROD_BASE_URL", "OPENAI_API_KEY",
		"LARK_APP_ID", "LARK_APP_SECRET", "LARK_CHAT_ID",
		"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"CROPGUARD_API_MODE", "CROPGUARD_PREDICTOR_BACKEND",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.API.Mode)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL())
	assert.Equal(t, "/predict", cfg.API.PredictPath)
	assert.Equal(t, time.Duration(0), cfg.API.Timeout)
	assert.Equal(t, PredictorRemote, cfg.Predictor.Backend)
	assert.Equal(t, "scanHistory", cfg.History.StorageKey)
	assert.Equal(t, ImagesLocal, cfg.Images.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.False(t, cfg.Alerts.Lark.Enabled)
}

func TestLoad_ModeSelectsBaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODE", "prod")
	t.Setenv("DEV_BASE_URL", "http://dev.local")
	t.Setenv("PROD_BASE_URL", "https://prod.example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://prod.example.com", cfg.API.BaseURL())

	t.Setenv("MODE", "dev")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://dev.local", cfg.API.BaseURL())
}

func TestLoad_ProdWithoutURLFails(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODE", "prod")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.prod_base_url")
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
api:
  mode: dev
  dev_base_url: http://from-file:9000
  timeout: 15s
predictor:
  backend: openai
openai:
  model: gpt-4o-mini
images:
  backend: s3
  s3:
    bucket: crop-images
    use_path_style: true
server:
  port: 9090
`)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-file:9000", cfg.API.BaseURL())
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, PredictorOpenAI, cfg.Predictor.Backend)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, ImagesS3, cfg.Images.Backend)
	assert.Equal(t, "crop-images", cfg.Images.S3.Bucket)
	assert.True(t, cfg.Images.S3.UsePathStyle)
	assert.Equal(t, "us-east-1", cfg.Images.S3.Region)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			API:       APIConfig{Mode: "dev", DevBaseURL: "http://localhost:8000"},
			Predictor: PredictorConfig{Backend: PredictorRemote},
			Database:  DatabaseConfig{Path: "data/test.db"},
			History:   HistoryConfig{StorageKey: "scanHistory"},
			Images:    ImagesConfig{Backend: ImagesLocal, Dir: "data/images"},
			Logger:    LoggerConfig{Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad mode", func(c *Config) { c.API.Mode = "staging" }, "api.mode"},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }, "api.timeout"},
		{"unknown backend", func(c *Config) { c.Predictor.Backend = "tflite" }, "predictor.backend"},
		{"openai without key", func(c *Config) { c.Predictor.Backend = PredictorOpenAI }, "openai.api_key"},
		{"no database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"no history key", func(c *Config) { c.History.StorageKey = "" }, "history.storage_key"},
		{"s3 without bucket", func(c *Config) { c.Images.Backend = ImagesS3 }, "images.s3.bucket"},
		{"lark without credentials", func(c *Config) { c.Alerts.Lark.Enabled = true }, "app_id"},
		{"lark without chat", func(c *Config) {
			c.Alerts.Lark = LarkConfig{Enabled: true, AppID: "a", AppSecret: "s"}
		}, "chat_id"},
		{"lark threshold out of range", func(c *Config) {
			c.Alerts.Lark = LarkConfig{Enabled: true, AppID: "a", AppSecret: "s", ChatID: "oc_1", MinConfidence: 101}
		}, "min_confidence"},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
