package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/rpattn/ecomdata/internal/analytics"
	"github.com/rpattn/ecomdata/internal/config"
	"github.com/rpattn/ecomdata/internal/db"
	"github.com/rpattn/ecomdata/internal/events"
	"github.com/rpattn/ecomdata/internal/export"
	"github.com/rpattn/ecomdata/internal/ingestion"
	"github.com/rpattn/ecomdata/internal/metrics"
	"github.com/rpattn/ecomdata/internal/repository"
	"github.com/rpattn/ecomdata/internal/repository/memory"
	"github.com/rpattn/ecomdata/internal/repository/mongostore"
	"github.com/rpattn/ecomdata/internal/telemetry"
)

// app holds everything built from configuration.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     repository.Store
	metrics   *metrics.Registry
	publisher *events.Publisher
	ingestion *ingestion.Service
	analytics *analytics.Service
	export    *export.Service
	shutdown  []func(context.Context) error
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, metrics: metrics.NewRegistry()}

	shutdownTracing, err := telemetry.Init(cfg.Tracing, os.Stderr)
	if err != nil {
		return nil, err
	}
	a.shutdown = append(a.shutdown, shutdownTracing)

	store, err := openStore(ctx, cfg)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.store = store
	a.shutdown = append(a.shutdown, store.Close)

	opts := []ingestion.Option{
		ingestion.WithLogger(logger),
		ingestion.WithObserver(a.metrics),
	}
	if cfg.Events.Enabled {
		publisher, err := events.Dial(cfg.Events)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.publisher = publisher
		a.shutdown = append(a.shutdown, func(context.Context) error { return publisher.Close() })
		opts = append(opts, ingestion.WithNotifier(publisher))
	}

	a.ingestion = ingestion.NewService(store.Orders, store.Logs, opts...)
	a.analytics = analytics.NewService(store.Orders)
	a.export = export.NewService(store.Orders,
		export.WithMaxRows(cfg.Export.MaxRows),
		export.WithSortKey(cfg.Export.SortKey),
	)
	return a, nil
}

// openStore connects the configured backend.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Storage.ConnectTimeout)
	defer cancel()

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if cfg.Storage.AutoMigrate {
			if err := db.RunMigrations(cfg.Database); err != nil {
				return repository.Store{}, err
			}
		}
		conn, err := db.NewConnection(connectCtx, cfg.Database)
		if err != nil {
			return repository.Store{}, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("connected to postgres", "host", cfg.Database.Host, "database", cfg.Database.DBName)
		return repository.NewPostgresStore(conn), nil
	case config.DriverMongo:
		client, err := mongostore.Connect(connectCtx, cfg.Mongo)
		if err != nil {
			return repository.Store{}, err
		}
		slog.Info("connected to mongo", "database", cfg.Mongo.Database)
		return mongostore.NewStore(client, cfg.Mongo.Database), nil
	case config.DriverMemory:
		slog.Warn("using in-memory storage; data is lost on exit")
		return memory.NewStore().Repositories(), nil
	default:
		return repository.Store{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func (a *app) close(ctx context.Context) {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			slog.Warn("shutdown step failed", "error", err)
		}
	}
	a.shutdown = nil
}
