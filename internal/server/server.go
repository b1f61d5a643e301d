// Package server exposes the import and receipt services over HTTP (fiber)
// and a gRPC health endpoint.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/taxsyncpro/taxsync/internal/clients"
	"github.com/taxsyncpro/taxsync/internal/export"
	"github.com/taxsyncpro/taxsync/internal/imports"
	"github.com/taxsyncpro/taxsync/internal/receipts"
	"github.com/taxsyncpro/taxsync/internal/reports"
)

// Pinger reports whether the receipt store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the HTTP API.
type Deps struct {
	Store    Pinger
	Clients  *clients.Service
	Receipts *receipts.Service
	Imports  *imports.Service
	Reports  *reports.Service
	Export   *export.Service
	Logger   *slog.Logger
}

// HTTPConfig tunes the fiber app.
type HTTPConfig struct {
	BodyLimit    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewHTTPServer builds the fiber app with every route registered.
func NewHTTPServer(deps Deps, cfg HTTPConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "taxsyncd",
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(),
	})

	app.Use(recover.New())
	app.Use(requestLogger(deps.Logger))

	h := &handlers{deps: deps}
	app.Get("/healthz", h.health)

	api := app.Group("/api/v1")
	api.Get("/categories", h.listCategories)

	api.Get("/clients", h.listClients)
	api.Post("/clients", h.createClient)

	api.Get("/receipts", h.listReceipts)

	api.Post("/imports", h.uploadImport)
	api.Get("/imports", h.listImports)
	api.Get("/imports/:id", h.getImport)
	api.Put("/imports/:id/mapping", h.setImportMapping)
	api.Post("/imports/:id/commit", h.commitImport)
	api.Delete("/imports/:id", h.discardImport)

	api.Get("/reports/summary", h.reportSummary)
	api.Get("/export.xlsx", h.exportXLSX)

	return app
}

type handlers struct {
	deps Deps
}
