package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/taxsyncpro/taxsync/internal/async"
	"github.com/taxsyncpro/taxsync/internal/logger"
)

// Inbox imports every spreadsheet dropped into a directory and moves it to
// the processed subdirectory afterwards.
type Inbox struct {
	root     string
	debounce time.Duration
	ingestor *FSIngestor
	opts     Options
	queueOps []async.Option
	logger   *slog.Logger
}

func NewInbox(root string, debounce time.Duration, ingestor *FSIngestor, opts Options, logger *slog.Logger, queueOpts ...async.Option) *Inbox {
	opts.MoveProcessed = true
	opts.SkipHidden = true
	return &Inbox{
		root:     root,
		debounce: debounce,
		ingestor: ingestor,
		opts:     opts,
		queueOps: queueOpts,
		logger:   logger,
	}
}

// Run watches the inbox until ctx is done, then drains queued imports.
// Files already waiting in the inbox are imported first.
func (b *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return err
	}
	events, errs, err := StartWatcher(ctx, WatchConfig{Roots: []string{b.root}, InitialScan: true, Debounce: b.debounce}, b.logger)
	if err != nil {
		return err
	}

	q := async.NewImportQueue(b.handle, b.logger, b.queueOps...)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		q.Shutdown(shutdownCtx)
	}()

	b.logger.Info("watching inbox", "root", b.root, "debounce", b.debounce)
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return nil
			}
			job := async.Job{Path: path, ClientID: b.opts.ClientID, Force: b.opts.Force, TraceID: logger.GenerateRequestID()}
			if err := q.Enqueue(ctx, job); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				b.logger.Warn("failed to queue file", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			b.logger.Warn("inbox watcher reported an error", "error", err)
		}
	}
}

func (b *Inbox) handle(ctx context.Context, job async.Job) error {
	if _, err := os.Stat(job.Path); errors.Is(err, os.ErrNotExist) {
		// Already moved by an earlier event for the same file.
		return nil
	}
	opts := b.opts
	opts.ClientID, opts.Force = job.ClientID, job.Force
	ctx = logger.WithRequestID(ctx, job.TraceID)
	_, err := b.ingestor.IngestPath(ctx, job.Path, opts)
	return err
}
