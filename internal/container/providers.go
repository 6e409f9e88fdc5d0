// Package container wires the crop scanning components from configuration
// and owns their lifecycle.
package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/port"
	"github.com/garyjia/crop-guard/internal/config"
	"github.com/garyjia/crop-guard/internal/infrastructure/external/lark"
	"github.com/garyjia/crop-guard/internal/infrastructure/external/openai"
	"github.com/garyjia/crop-guard/internal/infrastructure/external/predictapi"
	"github.com/garyjia/crop-guard/internal/infrastructure/persistence/kvstore"
	"github.com/garyjia/crop-guard/internal/infrastructure/storage"
	"github.com/garyjia/crop-guard/migrations"
	"github.com/garyjia/crop-guard/pkg/database"
)

// ProvideDatabase opens the database and applies pending migrations.
// An empty MigrationsDir applies the migrations compiled into the binary.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*database.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrationsDir(ctx, cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrations(ctx, migrations.FS)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// ProvideKeyValueStore creates the SQLite-backed key-value store
func ProvideKeyValueStore(db *database.DB, logger *zap.Logger) (port.KeyValueStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return kvstore.NewSQLiteStore(db.DB, logger), nil
}

// ProvidePredictor creates the configured classification backend
func ProvidePredictor(cfg *config.Config, logger *zap.Logger) (port.Predictor, error) {
	switch cfg.Predictor.Backend {
	case config.PredictorRemote:
		client, err := predictapi.NewClient(predictapi.Config{
			BaseURL:     cfg.API.BaseURL(),
			PredictPath: cfg.API.PredictPath,
			Timeout:     cfg.API.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Using remote predictor",
			zap.String("mode", cfg.API.Mode),
			zap.String("endpoint", client.Endpoint()))
		return client, nil

	case config.PredictorOpenAI:
		prompts := openai.DefaultPrompts()
		if cfg.OpenAI.PromptsPath != "" {
			loaded, err := openai.LoadPrompts(cfg.OpenAI.PromptsPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load prompts: %w", err)
			}
			prompts = loaded
		}
		classifier, err := openai.NewClassifier(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}, prompts, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Using OpenAI predictor", zap.String("model", cfg.OpenAI.Model))
		return classifier, nil

	default:
		return nil, fmt.Errorf("unknown predictor backend: %s", cfg.Predictor.Backend)
	}
}

// ProvideImageStore creates the configured image store. The S3 store keeps
// a local store as fallback for file URIs recorded before the switch.
func ProvideImageStore(ctx context.Context, cfg *config.ImagesConfig, logger *zap.Logger) (port.ImageStore, error) {
	local, err := storage.NewLocalImageStore(cfg.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create local image store: %w", err)
	}

	if cfg.Backend != config.ImagesS3 {
		return local, nil
	}

	s3Store, err := storage.NewS3ImageStore(ctx, storage.S3Config{
		Endpoint:        cfg.S3.Endpoint,
		Region:          cfg.S3.Region,
		Bucket:          cfg.S3.Bucket,
		Prefix:          cfg.S3.Prefix,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		UsePathStyle:    cfg.S3.UsePathStyle,
	}, local, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 image store: %w", err)
	}
	return s3Store, nil
}

// ProvideNotifier creates the Lark alert notifier, or nil when alerts are disabled
func ProvideNotifier(cfg *config.LarkConfig, logger *zap.Logger) port.Notifier {
	if !cfg.Enabled {
		return nil
	}

	client := lark.NewSDKClient(lark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)

	return lark.NewScanAlertNotifier(lark.NewMessageAPI(client, logger), lark.NotifierConfig{
		ChatID:        cfg.ChatID,
		MinConfidence: cfg.MinConfidence,
	}, logger)
}
