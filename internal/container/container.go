package container

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smbgAlokk/bharatforce/internal/application/dispatcher"
	"github.com/smbgAlokk/bharatforce/internal/application/effects"
	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/application/workflow"
	"github.com/smbgAlokk/bharatforce/internal/domain/event"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/auth"
	httpapi "github.com/smbgAlokk/bharatforce/internal/interfaces/http"
	"github.com/smbgAlokk/bharatforce/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB *sql.DB
	store port.Store

	// Infrastructure - External
	external *ExternalBundle
	storage  *StorageBundle
	metrics  *MetricsBundle
	tokens   *auth.TokenManager

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine
	effects    *effects.Applier
	services   *ServiceBundle
	workers    *WorkerBundle

	// Lifecycle
	mu     sync.RWMutex
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
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
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

// Start initializes all components.
// Components are initialized in dependency order:
// 1. Database and store
// 2. External clients (Lark, OpenAI, Redis)
// 3. Document storage and metrics
// 4. Dispatcher, side effects and transition engine
// 5. Application services and observers
// 6. Background workers
func (c *Container) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	// Release whatever was opened when a later step fails
	defer func() {
		if err != nil {
			c.teardown()
		}
	}()

	// Step 1: Initialize database and store
	db, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.sqlDB, c.store = db.SqlDB, db.Store
	c.logger.Info("Database initialized")

	// Step 2: Initialize external clients
	if c.external, err = ProvideExternalClients(ctx, c.config, c.logger); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	// Step 3: Initialize storage and metrics
	if c.storage, err = ProvideStorage(&c.config.Documents, c.logger); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.metrics = ProvideMetrics()
	c.tokens = ProvideTokenManager(&c.config.Auth)
	c.logger.Info("Storage initialized")

	// Step 4: Initialize dispatcher and engine
	c.dispatcher = ProvideDispatcher(c.logger)
	engine, err := ProvideEngine(&EngineDeps{
		Store:      c.store,
		Dispatcher: c.dispatcher,
		Storage:    c.storage,
		Metrics:    c.metrics.Recorder,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	c.engine, c.effects = engine.Engine, engine.Effects
	c.logger.Info("Dispatcher and transition engine initialized")

	// Step 5: Initialize services and observers
	c.services = ProvideServices(&ServiceDeps{
		Engine:      c.engine,
		Store:       c.store,
		Storage:     c.storage,
		Drafter:     c.external.Drafter,
		CompanyName: c.config.Documents.CompanyName,
		Logger:      c.logger,
	})
	RegisterObservers(c.dispatcher, c.external, c.effects)
	c.logger.Info("Application services initialized")

	// Step 6: Start background workers
	c.workers = ProvideWorkers(&c.config.Workers, c.engine, c.dispatcher, c.logger)
	if err = c.workers.Manager.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Background workers started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases components in reverse order of Start
func (c *Container) teardown() []error {
	var errs []error

	if c.workers != nil {
		// Failures raised while shutting down are not queued on a stopped worker
		if c.dispatcher != nil {
			c.dispatcher.Unsubscribe(event.TypeEffectsFailed, ObserverEffectsRetry)
		}
		if err := c.workers.Manager.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// Dispatcher waits for in-flight observers, which may still use Redis
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	if c.external != nil && c.external.Redis != nil {
		if err := c.external.Redis.Close(); err != nil {
			c.logger.Error("Failed to close redis client", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		} else {
			c.logger.Info("Redis client closed")
		}
		c.external.Redis = nil
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.sqlDB = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, err error, notInitialized bool) {
		switch {
		case notInitialized:
			status.Components[name] = ComponentHealth{Healthy: false, Message: "not initialized"}
			status.Overall = false
		case err != nil:
			status.Components[name] = ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)}
			status.Overall = false
		default:
			status.Components[name] = ComponentHealth{Healthy: true}
		}
	}

	switch {
	case c.sqlDB != nil:
		set("database", c.sqlDB.PingContext(ctx), false)
	case c.store != nil:
		status.Components["database"] = ComponentHealth{Healthy: true, Message: "in-memory"}
	default:
		set("database", nil, true)
	}

	if c.config.Redis.Enabled {
		var client *goredis.Client
		if c.external != nil {
			client = c.external.Redis
		}
		if client == nil {
			set("redis", nil, true)
		} else {
			set("redis", client.Ping(ctx).Err(), false)
		}
	}

	set("dispatcher", nil, c.dispatcher == nil)
	set("engine", nil, c.engine == nil)
	set("workers", nil, c.workers == nil || !c.workers.Manager.IsRunning())
	if h := status.Components["workers"]; h.Healthy {
		h.Message = strings.Join(c.workers.Manager.Running(), ",")
		status.Components["workers"] = h
	}

	return status
}

// HTTPDependencies returns the handler dependencies for the HTTP server.
func (c *Container) HTTPDependencies() httpapi.Dependencies {
	return httpapi.Dependencies{
		Engine:      c.engine,
		Settlements: c.services.Settlements,
		Letters:     c.services.Letters,
		Leave:       c.services.Leave,
		Tokens:      c.tokens,
		Metrics:     c.metrics.Handler,
	}
}

// Store returns the backing store.
func (c *Container) Store() port.Store {
	return c.store
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the transition engine.
func (c *Container) Engine() workflow.Engine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the background workers.
func (c *Container) Workers() *WorkerBundle {
	return c.workers
}

// Tokens returns the bearer token manager.
func (c *Container) Tokens() *auth.TokenManager {
	return c.tokens
}

// MetricsHandler serves the Prometheus registry.
func (c *Container) MetricsHandler() http.Handler {
	return c.metrics.Handler
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// KeyValueLogger returns the logger in the form the application packages take.
func (c *Container) KeyValueLogger() *utils.KeyValueLogger {
	return utils.NewKeyValueLogger(c.logger)
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
