package container

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smbgAlokk/bharatforce/internal/application/dispatcher"
	"github.com/smbgAlokk/bharatforce/internal/application/effects"
	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/application/service"
	"github.com/smbgAlokk/bharatforce/internal/application/workflow"
	"github.com/smbgAlokk/bharatforce/internal/domain/event"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/auth"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/export"
	infraLark "github.com/smbgAlokk/bharatforce/internal/infrastructure/external/lark"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/external/openai"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/external/redis"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/metrics"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/persistence/memory"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/persistence/repository"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/persistence/sqlite"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/storage"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/worker"
	"github.com/smbgAlokk/bharatforce/pkg/database"
	"github.com/smbgAlokk/bharatforce/pkg/utils"
)

// DatabaseBundle holds the store and, for SQLite, the underlying connection.
type DatabaseBundle struct {
	SqlDB *sql.DB
	Store port.Store
}

// ExternalBundle holds the optional external clients. Disabled clients are nil.
type ExternalBundle struct {
	Notifier  port.Notifier
	Drafter   port.LetterDrafter
	Redis     *goredis.Client
	Publisher port.EventPublisher
}

// StorageBundle holds document components.
type StorageBundle struct {
	Documents port.DocumentStorage
	Exporter  port.StatementExporter
}

// MetricsBundle holds the Prometheus registry and the engine recorder.
type MetricsBundle struct {
	Registry *prometheus.Registry
	Recorder port.MetricsRecorder
	Handler  http.Handler
}

// ProvideDatabase opens the configured store. SQLite databases are migrated
// before the store is returned.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.InMemory {
		logger.Info("Using in-memory store")
		return &DatabaseBundle{Store: memory.NewStore()}, nil
	}

	db, err := database.New(database.Config{
		Driver:          sqlite.DriverName,
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(cfg.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB: db.DB,
		Store: repository.NewStore(sqlite.NewDB(db.DB, logger), logger),
	}, nil
}

// ProvideExternalClients creates the Lark notifier, the letter drafter and the
// Redis publisher for the enabled integrations.
func ProvideExternalClients(ctx context.Context, cfg *Config, logger *zap.Logger) (*ExternalBundle, error) {
	bundle := &ExternalBundle{}

	if cfg.Lark.Enabled {
		sdk := infraLark.NewSDKClient(infraLark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			BaseURL:   cfg.Lark.BaseURL,
		}, logger)
		messenger := infraLark.NewMessenger(infraLark.NewMessageAPI(sdk, logger), logger)
		bundle.Notifier = infraLark.NewTransitionNotifier(messenger, cfg.Lark.HRChatID, logger)
		logger.Info("Lark notifier enabled", zap.String("app_id", sdk.GetAppID()))
	}

	if cfg.OpenAI.Enabled {
		var prompts *openai.PromptConfig
		if cfg.OpenAI.PromptsPath != "" {
			loaded, err := openai.LoadPrompts(cfg.OpenAI.PromptsPath)
			if err != nil {
				return nil, err
			}
			prompts = loaded
		}
		bundle.Drafter = openai.NewLetterDrafter(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, prompts, logger)
		logger.Info("Letter drafter enabled", zap.String("model", cfg.OpenAI.Model))
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			return nil, err
		}
		bundle.Redis = client
		bundle.Publisher = redis.NewEventPublisher(client, cfg.Redis.Channel, logger)
		logger.Info("Redis event publisher enabled", zap.String("addr", cfg.Redis.Addr))
	}

	return bundle, nil
}

// ProvideStorage creates the document archive and the statement exporter.
func ProvideStorage(cfg *DocumentConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg.StorageDir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}

	return &StorageBundle{
		Documents: storage.NewLocalDocumentStorage(cfg.StorageDir, logger),
		Exporter:  export.NewStatementWriter(cfg.CompanyName, logger),
	}, nil
}

// ProvideMetrics creates a private registry with the process collectors and
// the engine recorder.
func ProvideMetrics() *MetricsBundle {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsBundle{
		Registry: reg,
		Recorder: metrics.NewRecorder(reg),
		Handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKeyValueLogger(logger)))
}

// EngineDeps holds the dependencies of the transition engine.
type EngineDeps struct {
	Store      port.Store
	Dispatcher dispatcher.Dispatcher
	Storage    *StorageBundle
	Metrics    port.MetricsRecorder
	Logger     *zap.Logger
}

// EngineBundle holds the transition engine and the side-effect applier it dispatches to.
type EngineBundle struct {
	Engine  workflow.Engine
	Effects *effects.Applier
}

// ProvideEngine registers the side effects on the dispatcher and creates the engine.
// Reporting managers of new records come from the employee directory in the store.
func ProvideEngine(deps *EngineDeps) (*EngineBundle, error) {
	if deps.Store == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("store and dispatcher are required")
	}

	applier := effects.NewApplier(deps.Store, utils.NewKeyValueLogger(deps.Logger),
		effects.WithMetrics(deps.Metrics),
		effects.WithStatementArchive(deps.Storage.Exporter, deps.Storage.Documents),
	)
	applier.Register(deps.Dispatcher)

	engine := workflow.NewEngine(deps.Store.Records(), workflow.DefaultRegistry(),
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithMetrics(deps.Metrics),
		workflow.WithProfiles(deps.Store.Profiles()),
	)
	return &EngineBundle{Engine: engine, Effects: applier}, nil
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Settlements service.SettlementService
	Letters     service.LetterService
	Leave       service.LeaveService
}

// ServiceDeps holds the dependencies of the application services.
type ServiceDeps struct {
	Engine      workflow.Engine
	Store       port.Store
	Storage     *StorageBundle
	Drafter     port.LetterDrafter
	CompanyName string
	Logger      *zap.Logger
}

// ProvideServices creates the application services.
func ProvideServices(deps *ServiceDeps) *ServiceBundle {
	logger := utils.NewKeyValueLogger(deps.Logger)
	return &ServiceBundle{
		Settlements: service.NewSettlementService(deps.Engine, deps.Storage.Exporter, deps.Storage.Documents, logger),
		Letters:     service.NewLetterService(deps.Engine, deps.Store, deps.Drafter, deps.Storage.Documents, deps.CompanyName, logger),
		Leave:       service.NewLeaveService(deps.Store.LeaveBalances(), logger),
	}
}

// RegisterObservers subscribes the notifier and the publisher to committed
// transitions and to effect failures. Each transition reaches them once, even
// when the retry worker replays it.
func RegisterObservers(d dispatcher.Dispatcher, ext *ExternalBundle, applier *effects.Applier) {
	for _, t := range []event.Type{event.TypeRecordTransitioned, event.TypeEffectsFailed} {
		if ext.Notifier != nil {
			d.SubscribeNamed(t, ObserverLark, applier.Once(ObserverLark, ext.Notifier.NotifyTransition))
		}
		if ext.Publisher != nil {
			d.SubscribeNamed(t, ObserverRedis, applier.Once(ObserverRedis, ext.Publisher.Publish))
		}
	}
}

// Observer names on the dispatcher
const (
	ObserverLark         = "lark.notify"
	ObserverRedis        = "redis.publish"
	ObserverEffectsRetry = "effects.retry"
)

// WorkerBundle holds the background workers and their manager.
type WorkerBundle struct {
	Manager *worker.WorkerManager
	Effects *worker.EffectsWorker
}

// ProvideWorkers creates the effects retry worker and subscribes it to effect failures.
func ProvideWorkers(cfg *WorkerConfig, engine workflow.Engine, d dispatcher.Dispatcher, logger *zap.Logger) *WorkerBundle {
	effectsWorker := worker.NewEffectsWorker(worker.EffectsWorkerConfig{
		PollInterval: cfg.EffectsRetryInterval,
		BatchSize:    cfg.EffectsRetryBatchSize,
		MaxAttempts:  cfg.EffectsRetryMaxAttempts,
	}, engine, logger)
	d.SubscribeNamed(event.TypeEffectsFailed, ObserverEffectsRetry, effectsWorker.Enqueue)

	manager := worker.NewWorkerManager(logger)
	manager.Register(effectsWorker)

	return &WorkerBundle{Manager: manager, Effects: effectsWorker}
}

// ProvideTokenManager creates the bearer token issuer and validator.
func ProvideTokenManager(cfg *AuthConfig) *auth.TokenManager {
	return auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.TokenTTL)
}
