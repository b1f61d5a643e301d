package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
)

const snapshotVersion = 1

type snapshot struct {
	Version    int                  `json:"version"`
	Categories []entity.Category    `json:"categories"`
	Clients    []entity.Client      `json:"clients"`
	Receipts   []entity.Receipt     `json:"receipts"`
	Batches    []entity.ImportBatch `json:"batches"`
}

// JSONStore keeps the whole receipt store in memory and rewrites a single
// JSON file after every change. It suits one process and small data sets.
// Receipt appends made between BeginAppends and FlushAppends are written
// once, at the flush.
type JSONStore struct {
	path   string
	logger *slog.Logger

	// bulk is held from BeginAppends until FlushAppends.
	bulk sync.Mutex

	mu         sync.RWMutex
	data       snapshot
	receiptIDs map[int64]struct{}
	batching   bool
	// pending counts the receipts at the tail of data.Receipts that are not
	// on disk yet.
	pending int
}

// OpenJSON loads path, or starts a seeded store if the file does not exist.
func OpenJSON(path string, logger *slog.Logger) (*JSONStore, error) {
	s := &JSONStore{path: path, logger: logger, receiptIDs: make(map[int64]struct{})}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.data = snapshot{Version: snapshotVersion, Categories: seedCategories()}
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		logger.Info("json store created", "path", path)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read store: %w", err)
	}

	if err := validateJSONAgainstSchema(buildSnapshotSchema(), raw); err != nil {
		return nil, common.NewAppError(common.CodeConfig, "store file "+path+" is invalid", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	for _, r := range s.data.Receipts {
		s.receiptIDs[r.ID] = struct{}{}
	}
	logger.Info("json store loaded", "path", path,
		"receipts", len(s.data.Receipts), "clients", len(s.data.Clients))
	return s, nil
}

func seedCategories() []entity.Category {
	cats := make([]entity.Category, 0, len(constants.SeedCategories))
	for _, c := range constants.SeedCategories {
		cats = append(cats, entity.Category{ID: c.ID, Name: string(c.Name), Color: c.Color})
	}
	return cats
}

// persistLocked writes through a temp file so a crash never leaves a
// truncated store behind. Callers hold mu.
func (s *JSONStore) persistLocked() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.pending = 0
	return nil
}

func (s *JSONStore) Categories(context.Context) ([]entity.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.Category(nil), s.data.Categories...), nil
}

func (s *JSONStore) Clients(context.Context) ([]entity.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]entity.Client(nil), s.data.Clients...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *JSONStore) AppendReceipt(_ context.Context, r entity.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCategoryLocked(r.CategoryID) {
		return fmt.Errorf("receipt %d: unknown category %d", r.ID, r.CategoryID)
	}
	if r.ClientID != nil && entity.FindClientByID(s.data.Clients, *r.ClientID) == nil {
		return fmt.Errorf("receipt %d: unknown client %d", r.ID, *r.ClientID)
	}
	if _, dup := s.receiptIDs[r.ID]; dup {
		return fmt.Errorf("receipt %d already exists", r.ID)
	}
	s.data.Receipts = append(s.data.Receipts, r)
	s.receiptIDs[r.ID] = struct{}{}
	if s.batching {
		s.pending++
		return nil
	}
	if err := s.persistLocked(); err != nil {
		s.dropTailLocked(1)
		s.logger.Error("failed to append receipt", "receipt_id", r.ID, "error", err)
		return err
	}
	return nil
}

// BeginAppends holds back the file rewrite for receipt appends until
// FlushAppends. Only one batch is open at a time; a second caller blocks.
func (s *JSONStore) BeginAppends() {
	s.bulk.Lock()
	s.mu.Lock()
	s.batching = true
	s.mu.Unlock()
}

// FlushAppends writes the receipts appended since BeginAppends and closes
// the batch. If the write fails they are dropped from memory too, and the
// number dropped is returned with the error.
func (s *JSONStore) FlushAppends() (int, error) {
	defer s.bulk.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batching = false
	if s.pending == 0 {
		return 0, nil
	}
	if err := s.persistLocked(); err != nil {
		n := s.pending
		s.dropTailLocked(n)
		s.pending = 0
		s.logger.Error("failed to flush receipts", "dropped", n, "error", err)
		return n, err
	}
	return 0, nil
}

func (s *JSONStore) dropTailLocked(n int) {
	keep := len(s.data.Receipts) - n
	for _, r := range s.data.Receipts[keep:] {
		delete(s.receiptIDs, r.ID)
	}
	s.data.Receipts = s.data.Receipts[:keep]
}

func (s *JSONStore) hasCategoryLocked(id int64) bool {
	for _, c := range s.data.Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (s *JSONStore) CreateClient(_ context.Context, c entity.Client) (*entity.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entity.FindClientByID(s.data.Clients, c.ID) != nil {
		return nil, fmt.Errorf("client %d already exists", c.ID)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	s.data.Clients = append(s.data.Clients, c)
	if err := s.persistLocked(); err != nil {
		s.data.Clients = s.data.Clients[:len(s.data.Clients)-1]
		return nil, err
	}
	return &c, nil
}

func (s *JSONStore) GetClient(_ context.Context, id int64) (*entity.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := entity.FindClientByID(s.data.Clients, id)
	if c == nil {
		return nil, common.WrapError(common.ErrNotFound, fmt.Sprintf("client %d", id))
	}
	out := *c
	return &out, nil
}

func (s *JSONStore) ListReceipts(_ context.Context, f entity.ReceiptFilter) ([]entity.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.Receipt
	for _, r := range s.data.Receipts {
		switch {
		case f.From != "" && r.Date < f.From:
		case f.To != "" && r.Date > f.To:
		case f.CategoryID != 0 && r.CategoryID != f.CategoryID:
		case f.ClientID != 0 && (r.ClientID == nil || *r.ClientID != f.ClientID):
		default:
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *JSONStore) MaxReceiptID(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max int64
	for _, r := range s.data.Receipts {
		if r.ID > max {
			max = r.ID
		}
	}
	return max, nil
}

func (s *JSONStore) StartBatch(_ context.Context, b entity.ImportBatch) (*entity.ImportBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	s.data.Batches = append(s.data.Batches, b)
	if err := s.persistLocked(); err != nil {
		s.data.Batches = s.data.Batches[:len(s.data.Batches)-1]
		return nil, err
	}
	return &b, nil
}

func (s *JSONStore) FinishBatch(_ context.Context, id uuid.UUID, status constants.BatchStatus, imported int, message string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.Batches {
		b := &s.data.Batches[i]
		if b.ID != id {
			continue
		}
		prev := *b
		finished := at.UTC()
		b.Status = string(status)
		b.ImportedCount = imported
		b.ErrorMessage = message
		b.FinishedAt = &finished
		if err := s.persistLocked(); err != nil {
			*b = prev
			return err
		}
		return nil
	}
	return common.WrapError(common.ErrNotFound, "import batch "+id.String())
}

func (s *JSONStore) GetBatch(_ context.Context, id uuid.UUID) (*entity.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.data.Batches {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, common.WrapError(common.ErrNotFound, "import batch "+id.String())
}

func (s *JSONStore) FindImportedBatchByHash(_ context.Context, hash string) (*entity.ImportBatch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *entity.ImportBatch
	for i := range s.data.Batches {
		b := s.data.Batches[i]
		if b.ContentHash != hash || b.Status != string(constants.BatchStatusImported) {
			continue
		}
		if found == nil || b.StartedAt.After(found.StartedAt) {
			found = &b
		}
	}
	return found, found != nil, nil
}

func (s *JSONStore) ListBatches(_ context.Context, limit int) ([]entity.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]entity.ImportBatch(nil), s.data.Batches...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *JSONStore) Ping(context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func (s *JSONStore) Close() error {
	return nil
}
