// Package store selects and defines the receipt store backends.
package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/repository"
)

// Store is the receipt store: categories, clients, receipts and the import
// history.
type Store interface {
	Categories(ctx context.Context) ([]entity.Category, error)
	Clients(ctx context.Context) ([]entity.Client, error)
	AppendReceipt(ctx context.Context, r entity.Receipt) error

	CreateClient(ctx context.Context, c entity.Client) (*entity.Client, error)
	GetClient(ctx context.Context, id int64) (*entity.Client, error)
	ListReceipts(ctx context.Context, filter entity.ReceiptFilter) ([]entity.Receipt, error)
	MaxReceiptID(ctx context.Context) (int64, error)

	StartBatch(ctx context.Context, b entity.ImportBatch) (*entity.ImportBatch, error)
	FinishBatch(ctx context.Context, id uuid.UUID, status constants.BatchStatus, imported int, message string, at time.Time) error
	GetBatch(ctx context.Context, id uuid.UUID) (*entity.ImportBatch, error)
	FindImportedBatchByHash(ctx context.Context, hash string) (*entity.ImportBatch, bool, error)
	ListBatches(ctx context.Context, limit int) ([]entity.ImportBatch, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*repository.Store)(nil)
	_ Store = (*JSONStore)(nil)
)

// IsJSONPath reports whether dsn names a JSON snapshot file.
func IsJSONPath(dsn string) bool {
	return strings.HasSuffix(strings.ToLower(dsn), ".json")
}

// Open returns the JSON file store for *.json DSNs and the SQL store
// otherwise.
func Open(ctx context.Context, cfg repository.Config, logger *slog.Logger) (Store, error) {
	if IsJSONPath(cfg.DSN) {
		return OpenJSON(cfg.DSN, logger)
	}
	db, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return repository.NewStore(db, logger), nil
}
