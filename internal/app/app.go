// Package app wires the store, presets and services from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taxsyncpro/taxsync/internal/clients"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/export"
	"github.com/taxsyncpro/taxsync/internal/importer/classify"
	"github.com/taxsyncpro/taxsync/internal/importer/infer"
	"github.com/taxsyncpro/taxsync/internal/imports"
	"github.com/taxsyncpro/taxsync/internal/ingest"
	"github.com/taxsyncpro/taxsync/internal/presets"
	"github.com/taxsyncpro/taxsync/internal/receipts"
	"github.com/taxsyncpro/taxsync/internal/reports"
	"github.com/taxsyncpro/taxsync/internal/repository"
	"github.com/taxsyncpro/taxsync/internal/server"
	"github.com/taxsyncpro/taxsync/internal/store"
	"github.com/taxsyncpro/taxsync/internal/utils"
)

// App holds the long-lived components of one process.
type App struct {
	Config  *common.Config
	Logger  *slog.Logger
	Store   store.Store
	Presets *presets.Store

	Clients  *clients.Service
	Receipts *receipts.Service
	Imports  *imports.Service
	Reports  *reports.Service
	Export   *export.Service
	Ingestor *ingest.FSIngestor
}

// New opens the configured store and builds every service on top of it.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var rules []classify.Rule
	if cfg.Import.RulesPath != "" {
		loaded, err := classify.LoadRules(cfg.Import.RulesPath)
		if err != nil {
			return nil, common.NewAppError(common.CodeConfig, "invalid classification rules", err)
		}
		rules = loaded
		logger.Info("loaded classification rules", "path", cfg.Import.RulesPath, "rules", len(rules))
	}

	st, err := store.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ps, err := presets.Open(cfg.Import.PresetsPath, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open presets: %w", err)
	}

	ids := utils.NewIDGenerator()
	imp, err := imports.NewService(ctx, st, ps, ids, imports.Config{
		MaxFileSize: cfg.Import.MaxFileSize,
		Policy:      infer.ParsePolicy(cfg.Import.MappingPolicy),
		Rules:       rules,
		SessionTTL:  cfg.Import.SessionTTL,
	}, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Presets:  ps,
		Clients:  clients.NewService(st, ids, logger),
		Receipts: receipts.NewService(st, logger),
		Imports:  imp,
		Reports:  reports.NewService(st, logger),
		Export:   export.NewService(st, logger),
		Ingestor: ingest.NewFSIngestor(imp, logger),
	}, nil
}

// ServerDeps returns the services the HTTP API needs.
func (a *App) ServerDeps() server.Deps {
	return server.Deps{
		Store:    a.Store,
		Clients:  a.Clients,
		Receipts: a.Receipts,
		Imports:  a.Imports,
		Reports:  a.Reports,
		Export:   a.Export,
		Logger:   a.Logger,
	}
}

// Close releases the store.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
