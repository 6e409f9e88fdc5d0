package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Predictor backends
const (
	PredictorRemote = "remote"
	PredictorOpenAI = "openai"
)

// Image store backends
const (
	ImagesLocal = "local"
	ImagesS3    = "s3"
)

// Config holds all application configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Predictor PredictorConfig `mapstructure:"predictor"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Database  DatabaseConfig  `mapstructure:"database"`
	History   HistoryConfig   `mapstructure:"history"`
	Images    ImagesConfig    `mapstructure:"images"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Server    ServerConfig    `mapstructure:"server"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// APIConfig selects the prediction endpoint. Mode picks one of the two
// base URLs once at startup.
type APIConfig struct {
	Mode        string        `mapstructure:"mode"`
	DevBaseURL  string        `mapstructure:"dev_base_url"`
	ProdBaseURL string        `mapstructure:"prod_base_url"`
	PredictPath string        `mapstructure:"predict_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// BaseURL returns the base URL for the configured mode
func (a APIConfig) BaseURL() string {
	if a.Mode == "dev" {
		return a.DevBaseURL
	}
	return a.ProdBaseURL
}

// PredictorConfig chooses the classification backend
type PredictorConfig struct {
	Backend string `mapstructure:"backend"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Model       string `mapstructure:"model"`
	PromptsPath string `mapstructure:"prompts_path"`
}

// DatabaseConfig holds database configuration. An empty MigrationsDir uses
// the migrations compiled into the binary.
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// HistoryConfig holds scan history settings
type HistoryConfig struct {
	StorageKey string `mapstructure:"storage_key"`
}

// ImagesConfig selects where uploaded images are kept
type ImagesConfig struct {
	Backend string   `mapstructure:"backend"`
	Dir     string   `mapstructure:"dir"`
	S3      S3Config `mapstructure:"s3"`
}

// S3Config holds object storage settings
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// AlertsConfig holds disease alert settings
type AlertsConfig struct {
	Lark LarkConfig `mapstructure:"lark"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	BaseURL       string `mapstructure:"base_url"`
	ChatID        string `mapstructure:"chat_id"`
	MinConfidence int    `mapstructure:"min_confidence"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads .env (if present), then the YAML file at configPath (skipped
// when empty), then environment variables, and validates the result.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CROPGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.mode", "dev")
	v.SetDefault("api.dev_base_url", "http://localhost:8000")
	v.SetDefault("api.prod_base_url", "")
	v.SetDefault("api.predict_path", "/predict")
	v.SetDefault("api.timeout", time.Duration(0))

	v.SetDefault("predictor.backend", PredictorRemote)

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.prompts_path", "")

	// Database defaults
	v.SetDefault("database.path", "data/cropguard.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", time.Duration(0))
	v.SetDefault("database.migrations_dir", "")

	v.SetDefault("history.storage_key", "scanHistory")

	// Image defaults
	v.SetDefault("images.backend", ImagesLocal)
	v.SetDefault("images.dir", "data/images")
	v.SetDefault("images.s3.endpoint", "")
	v.SetDefault("images.s3.region", "us-east-1")
	v.SetDefault("images.s3.bucket", "")
	v.SetDefault("images.s3.prefix", "scans")
	v.SetDefault("images.s3.use_path_style", false)

	// Alert defaults
	v.SetDefault("alerts.lark.enabled", false)
	v.SetDefault("alerts.lark.base_url", "")
	v.SetDefault("alerts.lark.min_confidence", 70)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(10<<20))

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional environment variable names
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"api.mode":                    {"CROPGUARD_API_MODE", "MODE"},
		"api.dev_base_url":            {"CROPGUARD_API_DEV_BASE_URL", "DEV_BASE_URL"},
		"api.prod_base_url":           {"CROPGUARD_API_PROD_BASE_URL", "PROD_BASE_URL"},
		"openai.api_key":              {"CROPGUARD_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"alerts.lark.app_id":          {"CROPGUARD_ALERTS_LARK_APP_ID", "LARK_APP_ID"},
		"alerts.lark.app_secret":      {"CROPGUARD_ALERTS_LARK_APP_SECRET", "LARK_APP_SECRET"},
		"alerts.lark.chat_id":         {"CROPGUARD_ALERTS_LARK_CHAT_ID", "LARK_CHAT_ID"},
		"images.s3.access_key_id":     {"CROPGUARD_IMAGES_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"},
		"images.s3.secret_access_key": {"CROPGUARD_IMAGES_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.API.Mode {
	case "dev", "prod":
	default:
		return fmt.Errorf("api.mode must be dev or prod, got %q", c.API.Mode)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}

	switch c.Predictor.Backend {
	case PredictorRemote:
		if c.API.BaseURL() == "" {
			return fmt.Errorf("api.%s_base_url is required", c.API.Mode)
		}
	case PredictorOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key is required for the openai predictor")
		}
	default:
		return fmt.Errorf("predictor.backend must be %s or %s, got %q", PredictorRemote, PredictorOpenAI, c.Predictor.Backend)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.History.StorageKey == "" {
		return fmt.Errorf("history.storage_key is required")
	}

	switch c.Images.Backend {
	case ImagesLocal:
		if c.Images.Dir == "" {
			return fmt.Errorf("images.dir is required")
		}
	case ImagesS3:
		if c.Images.S3.Bucket == "" {
			return fmt.Errorf("images.s3.bucket is required")
		}
	default:
		return fmt.Errorf("images.backend must be %s or %s, got %q", ImagesLocal, ImagesS3, c.Images.Backend)
	}

	if l := c.Alerts.Lark; l.Enabled {
		if l.AppID == "" || l.AppSecret == "" {
			return fmt.Errorf("alerts.lark.app_id and alerts.lark.app_secret are required")
		}
		if l.ChatID == "" {
			return fmt.Errorf("alerts.lark.chat_id is required")
		}
		if l.MinConfidence < 0 || l.MinConfidence > 100 {
			return fmt.Errorf("alerts.lark.min_confidence must be within 0-100")
		}
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	return nil
}
