package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/utils"
)

type ReceiptRepository interface {
	Append(ctx context.Context, r entity.Receipt) error
	List(ctx context.Context, filter entity.ReceiptFilter) ([]entity.Receipt, error)
	MaxID(ctx context.Context) (int64, error)
}

type receiptRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptRepository(db *DB, logger *slog.Logger) ReceiptRepository {
	return &receiptRepository{
		db:     db,
		logger: logger,
	}
}

var receiptColumns = []string{
	"id", "vendor", "amount", "receipt_date", "description",
	"category_id", "client_id", "created_at", "status", "tags",
}

func (r *receiptRepository) Append(ctx context.Context, rec entity.Receipt) error {
	tags, err := json.Marshal(nonNilTags(rec.Tags))
	if err != nil {
		return err
	}
	q, args := r.db.builder().Insert("receipts").
		Columns(receiptColumns...).
		Values(rec.ID, rec.Vendor, rec.Amount, rec.Date, rec.Description,
			rec.CategoryID, nullableInt(rec.ClientID), utils.FormatTimestamp(rec.CreatedAt), rec.Status, string(tags)).
		Query()
	if _, err := r.db.SQL().ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("failed to append receipt", "receipt_id", rec.ID, "vendor", rec.Vendor, "error", err)
		return err
	}
	return nil
}

func (r *receiptRepository) List(ctx context.Context, filter entity.ReceiptFilter) ([]entity.Receipt, error) {
	sel := r.db.builder().
		Select(receiptColumns...).
		From(entsql.Table("receipts"))
	if filter.From != "" {
		sel = sel.Where(entsql.GTE("receipt_date", filter.From))
	}
	if filter.To != "" {
		sel = sel.Where(entsql.LTE("receipt_date", filter.To))
	}
	if filter.CategoryID != 0 {
		sel = sel.Where(entsql.EQ("category_id", filter.CategoryID))
	}
	if filter.ClientID != 0 {
		sel = sel.Where(entsql.EQ("client_id", filter.ClientID))
	}
	sel = sel.OrderBy("receipt_date", "id")
	if filter.Limit > 0 {
		sel = sel.Limit(filter.Limit)
	}

	q, args := sel.Query()
	rows, err := r.db.SQL().QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to list receipts", "error", err)
		return nil, err
	}
	defer rows.Close()

	var result []entity.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

func (r *receiptRepository) MaxID(ctx context.Context) (int64, error) {
	q, args := r.db.builder().
		Select(entsql.Max("id")).
		From(entsql.Table("receipts")).
		Query()
	var max sql.NullInt64
	if err := r.db.SQL().QueryRowContext(ctx, q, args...).Scan(&max); err != nil {
		return 0, err
	}
	return max.Int64, nil
}

func scanReceipt(s scanner) (*entity.Receipt, error) {
	var (
		rec     entity.Receipt
		client  sql.NullInt64
		created string
		tags    string
	)
	if err := s.Scan(&rec.ID, &rec.Vendor, &rec.Amount, &rec.Date, &rec.Description,
		&rec.CategoryID, &client, &created, &rec.Status, &tags); err != nil {
		return nil, err
	}
	if client.Valid {
		id := client.Int64
		rec.ClientID = &id
	}
	t, err := utils.ParseTimestamp(created)
	if err != nil {
		return nil, fmt.Errorf("receipt %d created_at: %w", rec.ID, err)
	}
	rec.CreatedAt = t
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("receipt %d tags: %w", rec.ID, err)
	}
	return &rec, nil
}

func nullableInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
