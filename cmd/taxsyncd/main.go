package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/taxsyncpro/taxsync/internal/app"
	"github.com/taxsyncpro/taxsync/internal/async"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/ingest"
	"github.com/taxsyncpro/taxsync/internal/logger"
	"github.com/taxsyncpro/taxsync/internal/server"
)

func main() {
	common.LoadDotEnv()
	cfg := common.LoadConfig()
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var wg sync.WaitGroup
	background := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	background(func() { a.Imports.RunJanitor(ctx, time.Minute) })

	health := server.NewHealthServer(cfg.Server.GRPCAddr, a.Store, log)
	background(func() { health.Monitor(ctx, 15*time.Second) })
	go func() {
		if err := health.Start(); err != nil {
			log.Error("grpc health server stopped", "error", err)
		}
	}()

	if cfg.Import.InboxDir != "" {
		inbox := ingest.NewInbox(cfg.Import.InboxDir, cfg.Import.Debounce, a.Ingestor, ingest.Options{}, log,
			async.WithWorkers(cfg.Import.Workers),
			async.WithQueueSize(cfg.Import.QueueSize),
			async.WithProcessTimeout(cfg.Import.ProcessTimeout),
		)
		background(func() {
			if err := inbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("inbox stopped", "dir", cfg.Import.InboxDir, "error", err)
			}
		})
	}

	httpApp := server.NewHTTPServer(a.ServerDeps(), server.HTTPConfig{
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	go func() {
		log.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpApp.Listen(cfg.Server.HTTPAddr); err != nil {
			log.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	if err := httpApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	health.Stop()
	wg.Wait()
	log.Info("stopped")
}
