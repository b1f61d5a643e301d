package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taxsyncpro/taxsync/internal/importer/decode"
	"github.com/taxsyncpro/taxsync/internal/imports"
)

// FSIngestor imports files from the local filesystem.
type FSIngestor struct {
	importer Importer
	logger   *slog.Logger
	now      func() time.Time
}

func NewFSIngestor(importer Importer, logger *slog.Logger) *FSIngestor {
	return &FSIngestor{importer: importer, logger: logger, now: time.Now}
}

// IngestPath imports one file. Files skipped as duplicates count as
// processed.
func (i *FSIngestor) IngestPath(ctx context.Context, path string, opts Options) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	src, err := decode.NewFileSource(abs)
	if err != nil {
		i.logger.Error("failed to stat file", "path", abs, "error", err)
		return out, err
	}
	res, err := i.importer.ImportFile(ctx, src, imports.ImportOptions{ClientID: opts.ClientID, Force: opts.Force})
	if res != nil && res.Batch != nil {
		out.BatchID = res.Batch.ID.String()
	}
	if err != nil {
		return out, err
	}
	out.Deduplicated = res.Skipped
	if res.Result != nil {
		out.Imported = res.Result.Count
	}

	if opts.MoveProcessed {
		dest, err := i.moveProcessed(abs)
		if err != nil {
			i.logger.Warn("imported file could not be moved", "path", abs, "error", err)
		} else {
			out.MovedTo = dest
		}
	}
	return out, nil
}

// moveProcessed renames path into the processed directory beside it. An
// existing file of the same name gets a timestamp suffix.
func (i *FSIngestor) moveProcessed(path string) (string, error) {
	dir := filepath.Join(filepath.Dir(path), ProcessedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	base := filepath.Base(path)
	dest := filepath.Join(dir, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		dest = filepath.Join(dir, fmt.Sprintf("%s-%s%s", stem, i.now().UTC().Format("20060102T150405.000"), ext))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}
