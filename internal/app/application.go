package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/metrics"
	"github.com/raysh454/sift/internal/progress"
	"github.com/raysh454/sift/internal/registry"
	"github.com/raysh454/sift/internal/scanstore"
	"github.com/raysh454/sift/internal/tools"
	"github.com/raysh454/sift/internal/tracing"
	"github.com/raysh454/sift/internal/webclient"
)

// Version is stamped at build time.
var Version = "dev"

// Application is the global runtime state container. It owns the database,
// the outbound HTTP client, the progress hub and the orchestrator built on
// top of them. The server and CLI both run against an Application.
type Application struct {
	Config *Config
	Logger logging.Logger

	Registry *registry.Registry
	Store    *scanstore.SQLiteStore
	Hub      *progress.Hub
	Metrics  *metrics.Metrics
	Orch     *Orchestrator

	db            *sql.DB
	web           webclient.WebClient
	traceShutdown tracing.ShutdownFunc
}

// NewApplication opens storage under cfg.StorageRoot and wires every
// component. Call Shutdown to release them.
func NewApplication(ctx context.Context, cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("sift")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	a := &Application{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Shutdown(context.Background())
		}
	}()

	db, err := registry.OpenSQLite(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	a.db = db

	if a.Registry, err = registry.NewRegistry(db, logger); err != nil {
		return nil, fmt.Errorf("creating registry: %w", err)
	}
	if a.Store, err = scanstore.NewSQLiteStore(db, logger); err != nil {
		return nil, fmt.Errorf("creating scan store: %w", err)
	}

	if a.web, err = webclient.NewWebClient(cfg.WebClient, logger); err != nil {
		return nil, fmt.Errorf("creating webclient: %w", err)
	}
	toolReg, err := tools.NewDefaultRegistry(cfg.Tools, a.web, logger)
	if err != nil {
		return nil, fmt.Errorf("creating tool registry: %w", err)
	}

	tracer, shutdown, err := tracing.Setup(ctx, cfg.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.traceShutdown = shutdown

	a.Hub = progress.NewHub(cfg.Scan.EventBuffer)
	a.Metrics = metrics.New()

	a.Orch, err = NewOrchestrator(cfg.Scan, Deps{
		Tools:   toolReg,
		Ledger:  a.Registry,
		Members: a.Registry,
		Store:   a.Store,
		Events:  a.Hub,
		Metrics: a.Metrics,
		Tracer:  tracer,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	for _, info := range toolReg.Describe() {
		if !info.Configured {
			logger.Warn("tool not configured; requests for it will be skipped",
				logging.Field{Key: "tool", Value: info.Name})
		}
	}

	ok = true
	return a, nil
}

// Shutdown releases everything NewApplication opened. It is safe to call on a
// partially constructed Application.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	var errs []error

	// Canceled scans still persist their run, so the store must outlive them.
	if a.Orch != nil {
		a.Orch.CancelAll()
		if err := a.Orch.Wait(ctx); err != nil {
			a.Logger.Warn("running scans did not finish before shutdown", logging.Err(err))
			errs = append(errs, err)
		}
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.web != nil {
		errs = append(errs, a.web.Close())
	}
	if a.traceShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		errs = append(errs, a.traceShutdown(shutdownCtx))
		cancel()
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
