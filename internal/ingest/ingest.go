package ingest

import (
	"context"

	"github.com/taxsyncpro/taxsync/internal/importer/decode"
	"github.com/taxsyncpro/taxsync/internal/imports"
)

// ProcessedDir is the subdirectory imported files are moved into.
const ProcessedDir = "processed"

// Importer is the import entry point the ingestor drives.
type Importer interface {
	ImportFile(ctx context.Context, src decode.Source, opts imports.ImportOptions) (*imports.Outcome, error)
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string `json:"source_path"`
	MovedTo      string `json:"moved_to,omitempty"`
	Imported     int    `json:"imported"`
	Deduplicated bool   `json:"deduplicated"`
	BatchID      string `json:"batch_id,omitempty"`
	Err          string `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
	Receipts     int    `json:"receipts"`
}

// Options applies to every file of an ingest run.
type Options struct {
	ClientID   *int64
	Force      bool
	SkipHidden bool
	// MoveProcessed moves imported and duplicate files into ProcessedDir
	// next to them.
	MoveProcessed bool
}
