package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/yungbote/powerlens-backend/internal/data/db"
	"github.com/yungbote/powerlens-backend/internal/http"
	"github.com/yungbote/powerlens-backend/internal/observability"
	"github.com/yungbote/powerlens-backend/internal/platform/envutil"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/taxonomy"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *http.Server
	Cfg      Config
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics

	store        *db.Service
	clients      Clients
	otelShutdown func(context.Context) error
}

// New loads configuration, opens and migrates the store and wires every layer.
func New(ctx context.Context) (*App, error) {
	LoadDotEnv()
	log, err := logger.New(
		envutil.String("LOG_MODE", "development", nil),
		logger.WithRedaction(envutil.Bool("LOG_REDACTION_ENABLED", true)),
		logger.WithHashSalt(envutil.String("LOG_HASH_SALT", "", nil)),
	)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	a, err := Build(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

// Build wires an App from an explicit config; used by New and the ingest CLI.
func Build(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	store, err := db.Open(log, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := store.AutoMigrateAll(cfg.System); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := store.DB()

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics, err = observability.NewMetrics(prometheus.NewRegistry())
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		if sqlDB, dbErr := theDB.DB(); dbErr == nil {
			if err := metrics.RegisterDB(sqlDB, store.Driver()); err != nil {
				log.Warn("db stats collector not registered", "error", err)
			}
		}
	}

	clientset, err := wireClients(log, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	tax := taxonomy.Default()
	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clientset, tax, metrics)
	handlerset := wireHandlers(theDB, log, reposet, serviceset, tax)
	middleware := wireMiddleware(log, serviceset)
	server := http.NewServer(log, wireRouterConfig(log, cfg, handlerset, middleware, metrics))

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       server,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		store:        store,
		clients:      clientset,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx, ":"+a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.clients.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.Log != nil {
			a.Log.Warn("db close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
