// Package importer wires the bulk-import stages (decode, infer, analyze,
// materialize) together and tracks in-progress imports as sessions.
package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/importer/analyze"
	"github.com/taxsyncpro/taxsync/internal/importer/classify"
	"github.com/taxsyncpro/taxsync/internal/importer/decode"
	"github.com/taxsyncpro/taxsync/internal/importer/infer"
	"github.com/taxsyncpro/taxsync/internal/importer/materialize"
)

// Mapping origins reported on a Prepared upload.
const (
	MappingInferred = "inferred"
	MappingPreset   = "preset"
)

// PresetLookup returns a remembered mapping for a header layout.
type PresetLookup interface {
	Lookup(headers []string) (entity.ColumnMapping, bool)
}

// Prepared is a decoded and analysed upload awaiting review.
type Prepared struct {
	FileName      string
	Size          int64
	Table         *decode.Table
	Mapping       entity.ColumnMapping
	MappingSource string
	Analysis      *analyze.Analysis
}

// Pipeline runs the import stages against one receipt store.
type Pipeline struct {
	decoder      *decode.Decoder
	inferencer   *infer.Inferencer
	analyzer     *analyze.Analyzer
	materializer *materialize.Materializer
	store        materialize.Store
	presets      PresetLookup
	logger       *slog.Logger
}

type PipelineConfig struct {
	MaxFileSize  int64
	Policy       infer.Policy
	Rules        []classify.Rule
	Presets      PresetLookup
	Materializer []materialize.Option
}

func NewPipeline(store materialize.Store, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	classifier := classify.New(cfg.Rules)
	opts := append([]materialize.Option{materialize.WithLogger(logger)}, cfg.Materializer...)
	return &Pipeline{
		decoder:      decode.NewDecoder(cfg.MaxFileSize, logger),
		inferencer:   infer.New(cfg.Policy),
		analyzer:     analyze.New(classifier),
		materializer: materialize.New(store, classifier, opts...),
		store:        store,
		presets:      cfg.Presets,
		logger:       logger,
	}
}

// Decoder exposes the size and type gate for callers that stage uploads.
func (p *Pipeline) Decoder() *decode.Decoder { return p.decoder }

// Prepare decodes src, guesses a mapping (a stored preset wins over
// inference) and analyses the rows.
func (p *Pipeline) Prepare(ctx context.Context, src decode.Source) (*Prepared, error) {
	table, err := p.decoder.Decode(ctx, src)
	if err != nil {
		return nil, err
	}

	mapping := p.inferencer.Infer(table.Headers)
	origin := MappingInferred
	if p.presets != nil {
		if preset, ok := p.presets.Lookup(table.Headers); ok && presetFits(preset, table) {
			mapping, origin = preset, MappingPreset
		}
	}

	analysis, err := p.Analyze(ctx, table, mapping)
	if err != nil {
		return nil, err
	}

	p.logger.Info("import.prepare.ok", "file", src.Name(), "rows", table.Len(),
		"mapping_source", origin, "mapping_complete", mapping.Complete())
	return &Prepared{
		FileName:      src.Name(),
		Size:          src.Size(),
		Table:         table,
		Mapping:       mapping,
		MappingSource: origin,
		Analysis:      analysis,
	}, nil
}

// Analyze summarises table under mapping against the store's categories.
func (p *Pipeline) Analyze(ctx context.Context, table *decode.Table, mapping entity.ColumnMapping) (*analyze.Analysis, error) {
	categories, err := p.store.Categories(ctx)
	if err != nil {
		return nil, common.NewAppError(common.CodeAnalysisFailure, "Failed to load categories.", err)
	}
	return p.analyzer.Analyze(table, mapping, categories)
}

// Commit materializes rows into the store.
func (p *Pipeline) Commit(ctx context.Context, rows []decode.Row, mapping entity.ColumnMapping, clientID *int64) (*materialize.Result, error) {
	return p.materializer.Materialize(ctx, rows, mapping, clientID)
}

// CheckMapping verifies every mapped column exists in table.
func CheckMapping(mapping entity.ColumnMapping, table *decode.Table) error {
	for _, role := range entity.Roles {
		col := mapping.Get(role)
		if col != "" && !table.HasHeader(col) {
			return common.InvalidArgumentErrorf("column %q mapped to %s is not in the file", col, role)
		}
	}
	return nil
}

func presetFits(m entity.ColumnMapping, table *decode.Table) bool {
	return CheckMapping(m, table) == nil
}

// Run prepares src and commits it in one step, for unattended imports. The
// mapping must satisfy the required roles without review.
func (p *Pipeline) Run(ctx context.Context, src decode.Source, clientID *int64) (*Prepared, *materialize.Result, error) {
	prep, err := p.Prepare(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	if !prep.Mapping.Complete() {
		return prep, nil, common.NewAppError(common.CodeMissingMapping,
			fmt.Sprintf("Could not find columns for: %v. Map them manually and import again.", prep.Mapping.Missing()), nil)
	}
	res, err := p.Commit(ctx, prep.Table.Rows, prep.Mapping, clientID)
	return prep, res, err
}
