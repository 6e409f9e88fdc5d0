package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/dispatcher"
	"github.com/garyjia/crop-guard/internal/application/port"
	"github.com/garyjia/crop-guard/internal/application/service"
	"github.com/garyjia/crop-guard/internal/config"
	"github.com/garyjia/crop-guard/internal/domain/event"
	"github.com/garyjia/crop-guard/internal/report"
	"github.com/garyjia/crop-guard/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	db        *database.DB
	kv        port.KeyValueStore
	predictor port.Predictor
	images    port.ImageStore
	notifier  port.Notifier

	// Application
	events   dispatcher.Dispatcher
	history  *service.HistoryStore
	scans    *service.ScanService
	exporter *report.HistoryExporter

	// Lifecycle
	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database and key-value store
// 2. Predictor, image store and notifier
// 3. Event dispatcher, history (loaded from storage) and scan service
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initStorage(ctx); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized")

	if err := c.initExternal(ctx); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	c.initServices(ctx)
	c.logger.Info("Application services initialized", zap.Int("history_size", c.history.Len()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) initStorage(ctx context.Context) error {
	db, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = db

	kv, err := ProvideKeyValueStore(db, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}
	c.kv = kv
	return nil
}

func (c *Container) initExternal(ctx context.Context) error {
	predictor, err := ProvidePredictor(c.config, c.logger)
	if err != nil {
		return err
	}
	c.predictor = predictor

	images, err := ProvideImageStore(ctx, &c.config.Images, c.logger)
	if err != nil {
		return err
	}
	c.images = images

	c.notifier = ProvideNotifier(&c.config.Alerts.Lark, c.logger)
	return nil
}

func (c *Container) initServices(ctx context.Context) {
	c.events = dispatcher.NewDispatcher(dispatcher.WithLogger(c.logger))
	c.events.SubscribeNamed(event.TypeScanRemoved, "image-cleanup",
		dispatcher.ImageCleanupHandler(c.images, c.logger))

	c.history = service.NewHistoryStore(c.kv, c.logger,
		service.WithHistoryKey(c.config.History.StorageKey),
		service.WithEventPublisher(c.events))
	c.history.Load(ctx)

	opts := []service.ScanServiceOption{service.WithImageStore(c.images)}
	if c.notifier != nil {
		c.events.SubscribeNamed(event.TypeScanRecorded, "lark-alert", dispatcher.NotifyHandler(c.notifier))
		opts = append(opts, service.WithNotifier(dispatcher.ScanNotifier{Publisher: c.events}))
	}
	c.scans = service.NewScanService(c.predictor, c.history, c.logger, opts...)
	c.exporter = report.NewHistoryExporter(c.logger)
}

// Close shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	// Pending alerts and cleanups finish before storage goes away
	if c.events != nil {
		if err := c.events.Close(); err != nil {
			c.logger.Warn("Failed to close dispatcher", zap.Error(err))
		}
	}

	var err error
	if c.db != nil {
		if err = c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			err = fmt.Errorf("close database: %w", err)
		} else {
			c.logger.Info("Database closed")
		}
		c.db = nil
	}

	c.closed.Store(true)
	c.ready.Store(false)
	return err
}

func (c *Container) closeDatabase() {
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	c.mu.Lock()
	db := c.db
	c.mu.Unlock()

	switch {
	case db == nil:
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	default:
		if err := db.PingContext(ctx); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	}

	if c.history != nil {
		status.Components["history"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("scans: %d", c.history.Len()),
		}
	} else {
		status.Components["history"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	alerts := "disabled"
	if c.notifier != nil {
		alerts = "enabled"
	}
	status.Components["alerts"] = ComponentHealth{Healthy: true, Message: alerts}

	return status
}

// ScanService returns the scan service.
func (c *Container) ScanService() *service.ScanService {
	return c.scans
}

// History returns the scan history store.
func (c *Container) History() *service.HistoryStore {
	return c.history
}

// Exporter returns the history workbook exporter.
func (c *Container) Exporter() *report.HistoryExporter {
	return c.exporter
}

// ImageStore returns the image store.
func (c *Container) ImageStore() port.ImageStore {
	return c.images
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
