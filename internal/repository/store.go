package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/entity"
)

// Store bundles the repositories behind the receipt-store operations the
// services use.
type Store struct {
	db         *DB
	categories CategoryRepository
	clients    ClientRepository
	receipts   ReceiptRepository
	batches    ImportBatchRepository
	logger     *slog.Logger
}

func NewStore(db *DB, logger *slog.Logger) *Store {
	return &Store{
		db:         db,
		categories: NewCategoryRepository(db, logger),
		clients:    NewClientRepository(db, logger),
		receipts:   NewReceiptRepository(db, logger),
		batches:    NewImportBatchRepository(db, logger),
		logger:     logger,
	}
}

func (s *Store) Categories(ctx context.Context) ([]entity.Category, error) {
	return s.categories.ListCategories(ctx)
}

func (s *Store) Clients(ctx context.Context) ([]entity.Client, error) {
	return s.clients.List(ctx)
}

func (s *Store) AppendReceipt(ctx context.Context, r entity.Receipt) error {
	return s.receipts.Append(ctx, r)
}

func (s *Store) CreateClient(ctx context.Context, c entity.Client) (*entity.Client, error) {
	return s.clients.Create(ctx, c)
}

func (s *Store) GetClient(ctx context.Context, id int64) (*entity.Client, error) {
	return s.clients.Get(ctx, id)
}

func (s *Store) ListReceipts(ctx context.Context, filter entity.ReceiptFilter) ([]entity.Receipt, error) {
	return s.receipts.List(ctx, filter)
}

func (s *Store) MaxReceiptID(ctx context.Context) (int64, error) {
	return s.receipts.MaxID(ctx)
}

func (s *Store) StartBatch(ctx context.Context, b entity.ImportBatch) (*entity.ImportBatch, error) {
	return s.batches.Start(ctx, b)
}

func (s *Store) FinishBatch(ctx context.Context, id uuid.UUID, status constants.BatchStatus, imported int, message string, at time.Time) error {
	return s.batches.Finish(ctx, id, status, imported, message, at)
}

func (s *Store) GetBatch(ctx context.Context, id uuid.UUID) (*entity.ImportBatch, error) {
	return s.batches.Get(ctx, id)
}

func (s *Store) FindImportedBatchByHash(ctx context.Context, hash string) (*entity.ImportBatch, bool, error) {
	return s.batches.FindImportedByHash(ctx, hash)
}

func (s *Store) ListBatches(ctx context.Context, limit int) ([]entity.ImportBatch, error) {
	return s.batches.List(ctx, limit)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx, 2*time.Second)
}

func (s *Store) Close() error {
	s.db.Close(s.logger)
	return nil
}
