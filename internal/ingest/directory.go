package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/importer/decode"
)

// IngestDirectory walks root and imports every supported file. The
// processed directory is never descended into. Per-file failures are
// reported in the results; only a failed walk returns an error.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, opts Options) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if d.IsDir() {
			if path != root && (d.Name() == ProcessedDir || (opts.SkipHidden && isHidden(path))) {
				return filepath.SkipDir
			}
			return nil
		}
		stats.Scanned++
		if opts.SkipHidden && isHidden(path) {
			return nil
		}
		if !constants.IsAllowedExt(decode.Ext(path)) {
			return nil
		}
		stats.Matched++

		res, err := i.IngestPath(ctx, path, opts)
		if err != nil {
			res.Err = err.Error()
			results = append(results, res)
			stats.Failed++
			i.logger.Warn("file import failed", "path", path, "error", err)
			return nil
		}
		results = append(results, res)
		stats.Succeeded++
		stats.Receipts += res.Imported
		if res.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	i.logger.Info("directory ingest finished", "root", root, "scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
