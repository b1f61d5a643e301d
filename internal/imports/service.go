// Package imports runs bulk imports against the receipt store: interactive
// upload/review/commit sessions and unattended one-shot imports, with
// duplicate detection and an import history.
package imports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/importer"
	"github.com/taxsyncpro/taxsync/internal/importer/classify"
	"github.com/taxsyncpro/taxsync/internal/importer/decode"
	"github.com/taxsyncpro/taxsync/internal/importer/infer"
	"github.com/taxsyncpro/taxsync/internal/importer/materialize"
	"github.com/taxsyncpro/taxsync/internal/utils"
)

// Store is the receipt store plus the import history.
type Store interface {
	materialize.Store
	MaxReceiptID(ctx context.Context) (int64, error)
	StartBatch(ctx context.Context, b entity.ImportBatch) (*entity.ImportBatch, error)
	FinishBatch(ctx context.Context, id uuid.UUID, status constants.BatchStatus, imported int, message string, at time.Time) error
	GetBatch(ctx context.Context, id uuid.UUID) (*entity.ImportBatch, error)
	FindImportedBatchByHash(ctx context.Context, hash string) (*entity.ImportBatch, bool, error)
	ListBatches(ctx context.Context, limit int) ([]entity.ImportBatch, error)
}

// Presets remembers approved mappings per header layout.
type Presets interface {
	importer.PresetLookup
	Save(headers []string, mapping entity.ColumnMapping, now time.Time) error
}

// Config tunes the pipeline behind the service.
type Config struct {
	MaxFileSize int64
	Policy      infer.Policy
	Rules       []classify.Rule
	SessionTTL  time.Duration
}

// Service coordinates import sessions and unattended imports.
type Service struct {
	store    Store
	presets  Presets
	pipeline *importer.Pipeline
	sessions *importer.Manager
	ids      *utils.IDGenerator
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	uploads map[uuid.UUID]fileInfo
}

type fileInfo struct {
	ext  string
	hash string
}

// Upload is a session snapshot plus what is known about the file itself.
type Upload struct {
	*importer.Snapshot
	ContentHash string              `json:"content_hash,omitempty"`
	DuplicateOf *entity.ImportBatch `json:"duplicate_of,omitempty"`
	Batch       *entity.ImportBatch `json:"batch,omitempty"`
}

// Outcome reports one unattended import.
type Outcome struct {
	FileName      string              `json:"file_name"`
	Skipped       bool                `json:"skipped"`
	DuplicateOf   *entity.ImportBatch `json:"duplicate_of,omitempty"`
	MappingSource string              `json:"mapping_source,omitempty"`
	Batch         *entity.ImportBatch `json:"batch,omitempty"`
	Result        *materialize.Result `json:"result,omitempty"`
}

// NewService builds the pipeline and seeds the id generator from the highest
// stored receipt id. presets and ids may be nil.
func NewService(ctx context.Context, store Store, presets Presets, ids *utils.IDGenerator, cfg Config, logger *slog.Logger) (*Service, error) {
	if ids == nil {
		ids = utils.NewIDGenerator()
	}
	maxID, err := store.MaxReceiptID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read max receipt id: %w", err)
	}
	ids.Observe(maxID)

	s := &Service{
		store:   store,
		presets: presets,
		ids:     ids,
		now:     time.Now,
		logger:  logger,
		uploads: make(map[uuid.UUID]fileInfo),
	}
	pcfg := importer.PipelineConfig{
		MaxFileSize: cfg.MaxFileSize,
		Policy:      cfg.Policy,
		Rules:       cfg.Rules,
		Presets:     presets,
		Materializer: []materialize.Option{
			materialize.WithIDGenerator(ids),
			materialize.WithClock(func() time.Time { return s.now() }),
		},
	}
	s.pipeline = importer.NewPipeline(store, pcfg, logger)
	s.sessions = importer.NewManager(s.pipeline, cfg.SessionTTL)
	return s, nil
}

// Pipeline exposes the underlying stages for read-only analysis.
func (s *Service) Pipeline() *importer.Pipeline { return s.pipeline }

// Analyze decodes and summarises src without touching the store.
func (s *Service) Analyze(ctx context.Context, src decode.Source) (*importer.Prepared, error) {
	return s.pipeline.Prepare(ctx, src)
}

// Upload opens a review session for src. A file whose content was imported
// before is still loaded; DuplicateOf names the earlier batch.
func (s *Service) Upload(ctx context.Context, src decode.Source) (*Upload, error) {
	hash, err := s.hash(src)
	if err != nil {
		return nil, err
	}
	prev, dup, err := s.store.FindImportedBatchByHash(ctx, hash)
	if err != nil {
		return nil, common.InternalErrorf("look up import history: %v", err)
	}

	sess := s.sessions.New()
	s.mu.Lock()
	s.uploads[sess.ID()] = fileInfo{ext: decode.Ext(src.Name()), hash: hash}
	s.mu.Unlock()

	snap, err := sess.Load(ctx, src)
	if err != nil {
		s.logger.Warn("import upload failed", "session_id", sess.ID(), "file", src.Name(), "error", err)
		s.Discard(sess.ID())
		return nil, err
	}
	up := &Upload{Snapshot: snap, ContentHash: hash}
	if dup {
		up.DuplicateOf = prev
		s.logger.Warn("uploaded file was imported before", "session_id", sess.ID(), "file", src.Name(), "batch_id", prev.ID)
	}
	s.logger.Info("import session opened", "session_id", sess.ID(), "file", src.Name(), "rows", snap.Analysis.TotalRows)
	return up, nil
}

// Get returns the current state of a session.
func (s *Service) Get(id uuid.UUID) (*Upload, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return &Upload{Snapshot: sess.Snapshot(), ContentHash: s.info(id).hash}, nil
}

// SetMapping replaces the reviewed mapping of a session.
func (s *Service) SetMapping(ctx context.Context, id uuid.UUID, mapping entity.ColumnMapping) (*Upload, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	snap, err := sess.SetMapping(ctx, mapping)
	if err != nil {
		return nil, err
	}
	return &Upload{Snapshot: snap, ContentHash: s.info(id).hash}, nil
}

// CommitRequest carries the final review choices. A nil Mapping keeps the
// session's current one.
type CommitRequest struct {
	Mapping  *entity.ColumnMapping `json:"mapping,omitempty"`
	ClientID *int64                `json:"client_id,omitempty"`
	Force    bool                  `json:"force"`
}

// Commit imports a reviewed session and records the batch.
func (s *Service) Commit(ctx context.Context, id uuid.UUID, req CommitRequest) (*Upload, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if req.Mapping != nil {
		if _, err := sess.SetMapping(ctx, *req.Mapping); err != nil {
			return nil, err
		}
	}
	sess.SetClient(req.ClientID)

	info := s.info(id)
	var (
		batch       *entity.ImportBatch
		duplicateOf *entity.ImportBatch
		committed   *importer.Prepared
	)
	snap, err := sess.Commit(ctx, func(prep *importer.Prepared) error {
		prev, dup, err := s.duplicate(ctx, info.hash, req.Force)
		if err != nil {
			return err
		}
		if dup {
			duplicateOf = prev
			return common.ErrDuplicate
		}
		batch, err = s.startBatch(ctx, prep, info, req.ClientID)
		committed = prep
		return err
	})
	if batch == nil {
		if duplicateOf != nil {
			return &Upload{Snapshot: sess.Snapshot(), ContentHash: info.hash, DuplicateOf: duplicateOf}, err
		}
		return nil, err
	}

	imported := 0
	if snap != nil && snap.Result != nil {
		imported = snap.Result.Count
	}
	batch = s.finishBatch(ctx, batch, imported, err)
	if err != nil {
		return &Upload{Snapshot: snap, ContentHash: info.hash, Batch: batch}, err
	}

	s.savePreset(committed.Table.Headers, committed.Mapping)
	s.logger.Info("import committed", "session_id", id, "batch_id", batch.ID, "imported", imported)
	return &Upload{Snapshot: snap, ContentHash: info.hash, Batch: batch}, nil
}

// Discard drops a session and cancels its parse.
func (s *Service) Discard(id uuid.UUID) {
	s.sessions.Delete(id)
	s.mu.Lock()
	delete(s.uploads, id)
	s.mu.Unlock()
}

// ImportOptions controls an unattended import.
type ImportOptions struct {
	ClientID *int64
	Force    bool
	// Mapping overrides the inferred or preset mapping.
	Mapping *entity.ColumnMapping
}

// ImportFile decodes and commits src in one step. Files imported before are
// skipped unless Force is set; the returned Outcome says so.
func (s *Service) ImportFile(ctx context.Context, src decode.Source, opts ImportOptions) (*Outcome, error) {
	out := &Outcome{FileName: src.Name()}
	hash, err := s.hash(src)
	if err != nil {
		return out, err
	}
	prev, dup, err := s.duplicate(ctx, hash, opts.Force)
	if err != nil {
		return out, err
	}
	if dup {
		s.logger.Warn("skipping file imported before", "file", src.Name(), "batch_id", prev.ID)
		out.Skipped, out.DuplicateOf = true, prev
		return out, nil
	}

	info := fileInfo{ext: decode.Ext(src.Name()), hash: hash}
	prep, err := s.pipeline.Prepare(ctx, src)
	if err != nil {
		s.recordFailure(ctx, src, info, opts.ClientID, err)
		return out, err
	}
	out.MappingSource = prep.MappingSource
	if opts.Mapping != nil {
		if err := importer.CheckMapping(*opts.Mapping, prep.Table); err != nil {
			s.recordFailure(ctx, src, info, opts.ClientID, err)
			return out, err
		}
		prep.Mapping = *opts.Mapping
		out.MappingSource = "manual"
	}
	if !prep.Mapping.Complete() {
		err := common.NewAppError(common.CodeMissingMapping,
			fmt.Sprintf("Could not find columns for: %v. Map them manually and import again.", prep.Mapping.Missing()), nil)
		s.recordFailure(ctx, src, info, opts.ClientID, err)
		return out, err
	}

	batch, err := s.startBatch(ctx, prep, info, opts.ClientID)
	if err != nil {
		return out, err
	}
	res, err := s.pipeline.Commit(ctx, prep.Table.Rows, prep.Mapping, opts.ClientID)
	imported := 0
	if res != nil {
		imported = res.Count
	}
	out.Result = res
	out.Batch = s.finishBatch(ctx, batch, imported, err)
	if err != nil {
		return out, err
	}
	s.savePreset(prep.Table.Headers, prep.Mapping)
	return out, nil
}

// History lists recent import batches, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]entity.ImportBatch, error) {
	list, err := s.store.ListBatches(ctx, limit)
	if err != nil {
		return nil, common.InternalErrorf("list import batches: %v", err)
	}
	return list, nil
}

// Batch returns one recorded import.
func (s *Service) Batch(ctx context.Context, id uuid.UUID) (*entity.ImportBatch, error) {
	b, err := s.store.GetBatch(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NotFoundError("import batch not found")
	}
	if err != nil {
		return nil, common.InternalErrorf("get import batch: %v", err)
	}
	return b, nil
}

// Sweep expires idle sessions.
func (s *Service) Sweep() int {
	n := s.sessions.Sweep(s.now())
	if n == 0 {
		return 0
	}
	s.mu.Lock()
	for id := range s.uploads {
		if _, err := s.sessions.Get(id); err != nil {
			delete(s.uploads, id)
		}
	}
	s.mu.Unlock()
	s.logger.Debug("expired import sessions", "count", n)
	return n
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Service) info(id uuid.UUID) fileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads[id]
}

// hash digests the content of src after the type and size gate.
func (s *Service) hash(src decode.Source) (string, error) {
	dec := s.pipeline.Decoder()
	if err := dec.Check(src); err != nil {
		return "", err
	}
	rc, err := src.Open()
	if err != nil {
		return "", common.ParseFailure(err)
	}
	defer rc.Close()
	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(rc, dec.MaxSize()+1)); err != nil {
		return "", common.ParseFailure(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Service) duplicate(ctx context.Context, hash string, force bool) (*entity.ImportBatch, bool, error) {
	if force || hash == "" {
		return nil, false, nil
	}
	prev, found, err := s.store.FindImportedBatchByHash(ctx, hash)
	if err != nil {
		return nil, false, common.InternalErrorf("look up import history: %v", err)
	}
	return prev, found, nil
}

func (s *Service) startBatch(ctx context.Context, prep *importer.Prepared, info fileInfo, clientID *int64) (*entity.ImportBatch, error) {
	b, err := s.store.StartBatch(ctx, entity.ImportBatch{
		ID:          uuid.New(),
		FileName:    prep.FileName,
		FileExt:     info.ext,
		FileSize:    prep.Size,
		ContentHash: info.hash,
		Status:      string(constants.BatchStatusRunning),
		RowCount:    prep.Table.Len(),
		ClientID:    clientID,
		Mapping:     prep.Mapping,
		StartedAt:   s.now(),
	})
	if err != nil {
		s.logger.Error("failed to record import batch", "file", prep.FileName, "error", err)
		return nil, common.ImportFailure(err)
	}
	return b, nil
}

// finishBatch closes batch with the commit outcome. A failure to record is
// logged and does not mask the import result.
func (s *Service) finishBatch(ctx context.Context, batch *entity.ImportBatch, imported int, importErr error) *entity.ImportBatch {
	status, message := constants.BatchStatusImported, ""
	if importErr != nil {
		status, message = constants.BatchStatusFailed, common.UserMessage(importErr)
	}
	at := s.now().UTC()
	if err := s.store.FinishBatch(context.WithoutCancel(ctx), batch.ID, status, imported, message, at); err != nil {
		s.logger.Error("failed to finish import batch", "batch_id", batch.ID, "error", err)
		return batch
	}
	batch.Status = string(status)
	batch.ImportedCount = imported
	batch.ErrorMessage = message
	batch.FinishedAt = &at
	return batch
}

// recordFailure keeps files that never reached the commit stage in the
// history.
func (s *Service) recordFailure(ctx context.Context, src decode.Source, info fileInfo, clientID *int64, cause error) {
	b, err := s.store.StartBatch(ctx, entity.ImportBatch{
		ID:          uuid.New(),
		FileName:    src.Name(),
		FileExt:     info.ext,
		FileSize:    src.Size(),
		ContentHash: info.hash,
		Status:      string(constants.BatchStatusRunning),
		ClientID:    clientID,
		StartedAt:   s.now(),
	})
	if err != nil {
		s.logger.Error("failed to record import batch", "file", src.Name(), "error", err)
		return
	}
	s.finishBatch(ctx, b, 0, cause)
}

func (s *Service) savePreset(headers []string, mapping entity.ColumnMapping) {
	if s.presets == nil {
		return
	}
	if err := s.presets.Save(headers, mapping, s.now()); err != nil {
		s.logger.Warn("failed to save mapping preset", "error", err)
	}
}
