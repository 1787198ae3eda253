package main

import (
	"context"
	"fmt"

	_ "github.com/nerrad567/scanctl/migrations"

	"github.com/nerrad567/scanctl/internal/audit"
	"github.com/nerrad567/scanctl/internal/console"
	"github.com/nerrad567/scanctl/internal/dispatch"
	"github.com/nerrad567/scanctl/internal/history"
	"github.com/nerrad567/scanctl/internal/infrastructure/config"
	"github.com/nerrad567/scanctl/internal/infrastructure/database"
	"github.com/nerrad567/scanctl/internal/infrastructure/logging"
	"github.com/nerrad567/scanctl/internal/netif"
	"github.com/nerrad567/scanctl/internal/registry"
	"github.com/nerrad567/scanctl/internal/store"
	"github.com/nerrad567/scanctl/internal/transport/rawsock"
)

// app holds the components every command builds on: configuration,
// logger, database, registry and the dispatch engine. The console service
// is created separately so serve can attach its observers first.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	db      *database.DB
	storage registry.Storage
	reg     *registry.Registry
	sender  *rawsock.Sender
	engine  *dispatch.Engine
	svc     *console.Service

	closers []func()
}

// openApp loads configuration and opens the database and registry.
// CLI commands log to stderr so their stdout stays parseable.
func openApp(ctx context.Context, opts *rootOptions, logToStderr bool) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	if logToStderr {
		cfg.Logging.Output = "stderr"
	}

	a := &app{
		cfg: cfg,
		log: logging.New(cfg.Logging, version),
	}

	a.db, err = database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.onClose(func() {
		if closeErr := a.db.Close(); closeErr != nil {
			a.log.Error("error closing database", "error", closeErr)
		}
	})

	if err := a.db.Migrate(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		a.storage = store.NewSQLite(a.db.DB, cfg.Storage.Retain)
	default:
		a.storage = store.NewJSONFile(cfg.Storage.Path)
	}

	a.reg = registry.New(a.storage)
	a.reg.SetLogger(a.log)
	if err := a.reg.Load(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("loading registry: %w", err)
	}
	a.log.Debug("registry loaded",
		"backend", cfg.Storage.Backend,
		"controllers", len(a.reg.Controllers()),
	)

	a.sender = rawsock.New(a.log)
	a.onClose(func() {
		if closeErr := a.sender.Close(); closeErr != nil {
			a.log.Warn("error closing raw sockets", "error", closeErr)
		}
	})

	a.engine = dispatch.NewEngine(a.sender, dispatch.Options{
		Parallel:    cfg.Dispatch.Parallel,
		MaxParallel: cfg.Dispatch.MaxParallel,
		StopOnError: cfg.Dispatch.StopOnError,
	}, a.log)

	return a, nil
}

// openConsole opens the app and creates a console with the SQLite history
// and audit repositories. hub may be nil.
func openConsole(ctx context.Context, opts *rootOptions, hub console.WSHub) (*app, error) {
	a, err := openApp(ctx, opts, true)
	if err != nil {
		return nil, err
	}
	a.startConsole(console.Options{Hub: hub})
	return a, nil
}

// startConsole creates the console service. Repositories, interface,
// source resolution and logger are filled in from the app.
func (a *app) startConsole(opts console.Options) {
	opts.History = history.NewSQLiteRepository(a.db.DB)
	opts.Audit = audit.NewSQLiteRepository(a.db.DB)
	opts.Interface = a.cfg.Network.Interface
	opts.ResolveSource = netif.HardwareAddr
	opts.Logger = a.log
	a.svc = console.New(a.reg, a.engine, opts)
}

// adapterFilter returns the adapter filter configured under network.
func (a *app) adapterFilter() netif.Filter {
	return netif.Filter{
		ExcludePrefixes: a.cfg.Network.ExcludePrefixes,
		ExcludeKeywords: a.cfg.Network.ExcludeKeywords,
	}
}

// onClose registers fn to run on close, in reverse order.
func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
