package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/utils"
)

type ImportBatchRepository interface {
	Start(ctx context.Context, b entity.ImportBatch) (*entity.ImportBatch, error)
	Finish(ctx context.Context, id uuid.UUID, status constants.BatchStatus, imported int, message string, at time.Time) error
	Get(ctx context.Context, id uuid.UUID) (*entity.ImportBatch, error)
	FindImportedByHash(ctx context.Context, hash string) (*entity.ImportBatch, bool, error)
	List(ctx context.Context, limit int) ([]entity.ImportBatch, error)
}

type importBatchRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewImportBatchRepository(db *DB, logger *slog.Logger) ImportBatchRepository {
	return &importBatchRepository{db: db, logger: logger}
}

var batchColumns = []string{
	"id", "file_name", "file_ext", "file_size", "content_hash", "status",
	"row_count", "imported_count", "client_id", "mapping", "error_message",
	"started_at", "finished_at",
}

func (r *importBatchRepository) Start(ctx context.Context, b entity.ImportBatch) (*entity.ImportBatch, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = string(constants.BatchStatusRunning)
	}
	if b.StartedAt.IsZero() {
		b.StartedAt = time.Now()
	}
	b.StartedAt = b.StartedAt.UTC()

	mapping, err := json.Marshal(b.Mapping)
	if err != nil {
		return nil, err
	}
	q, args := r.db.builder().Insert("import_batches").
		Columns(batchColumns...).
		Values(b.ID.String(), b.FileName, b.FileExt, b.FileSize, b.ContentHash, b.Status,
			b.RowCount, b.ImportedCount, nullableInt(b.ClientID), string(mapping), b.ErrorMessage,
			utils.FormatTimestamp(b.StartedAt), nil).
		Query()
	if _, err := r.db.SQL().ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("import_batch start failed", "file", b.FileName, "error", err)
		return nil, err
	}
	r.logger.Info("import_batch started", "batch_id", b.ID, "file", b.FileName)
	return &b, nil
}

func (r *importBatchRepository) Finish(ctx context.Context, id uuid.UUID, status constants.BatchStatus, imported int, message string, at time.Time) error {
	q, args := r.db.builder().Update("import_batches").
		Set("status", string(status)).
		Set("imported_count", imported).
		Set("error_message", message).
		Set("finished_at", utils.FormatTimestamp(at)).
		Where(entsql.EQ("id", id.String())).
		Query()
	res, err := r.db.SQL().ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("import_batch finish failed", "batch_id", id, "error", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.WrapError(common.ErrNotFound, "import batch "+id.String())
	}
	r.logger.Info("import_batch finished", "batch_id", id, "status", status, "imported", imported)
	return nil
}

func (r *importBatchRepository) Get(ctx context.Context, id uuid.UUID) (*entity.ImportBatch, error) {
	q, args := r.db.builder().
		Select(batchColumns...).
		From(entsql.Table("import_batches")).
		Where(entsql.EQ("id", id.String())).
		Query()
	b, err := scanBatch(r.db.SQL().QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "import batch "+id.String())
	}
	return b, err
}

// FindImportedByHash returns the most recent successful batch with hash.
func (r *importBatchRepository) FindImportedByHash(ctx context.Context, hash string) (*entity.ImportBatch, bool, error) {
	q, args := r.db.builder().
		Select(batchColumns...).
		From(entsql.Table("import_batches")).
		Where(entsql.And(
			entsql.EQ("content_hash", hash),
			entsql.EQ("status", string(constants.BatchStatusImported)),
		)).
		OrderBy(entsql.Desc("started_at")).
		Limit(1).
		Query()
	b, err := scanBatch(r.db.SQL().QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *importBatchRepository) List(ctx context.Context, limit int) ([]entity.ImportBatch, error) {
	sel := r.db.builder().
		Select(batchColumns...).
		From(entsql.Table("import_batches")).
		OrderBy(entsql.Desc("started_at"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	q, args := sel.Query()
	rows, err := r.db.SQL().QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to list import batches", "error", err)
		return nil, err
	}
	defer rows.Close()

	var result []entity.ImportBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func scanBatch(s scanner) (*entity.ImportBatch, error) {
	var (
		b           entity.ImportBatch
		id, mapping string
		started     string
		finished    sql.NullString
		client      sql.NullInt64
	)
	if err := s.Scan(&id, &b.FileName, &b.FileExt, &b.FileSize, &b.ContentHash, &b.Status,
		&b.RowCount, &b.ImportedCount, &client, &mapping, &b.ErrorMessage,
		&started, &finished); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("import batch id %q: %w", id, err)
	}
	b.ID = parsed
	if client.Valid {
		v := client.Int64
		b.ClientID = &v
	}
	if err := json.Unmarshal([]byte(mapping), &b.Mapping); err != nil {
		return nil, fmt.Errorf("import batch %s mapping: %w", id, err)
	}
	if b.StartedAt, err = utils.ParseTimestamp(started); err != nil {
		return nil, err
	}
	if finished.Valid && finished.String != "" {
		t, err := utils.ParseTimestamp(finished.String)
		if err != nil {
			return nil, err
		}
		b.FinishedAt = &t
	}
	return &b, nil
}
