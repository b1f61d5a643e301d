// Package materialize converts reviewed rows into receipts and appends them
// to the receipt store.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/importer/classify"
	"github.com/taxsyncpro/taxsync/internal/importer/coerce"
	"github.com/taxsyncpro/taxsync/internal/importer/decode"
	"github.com/taxsyncpro/taxsync/internal/utils"
)

// Store is the receipt store as seen by the importer.
type Store interface {
	Categories(ctx context.Context) ([]entity.Category, error)
	Clients(ctx context.Context) ([]entity.Client, error)
	AppendReceipt(ctx context.Context, r entity.Receipt) error
}

// Batcher is implemented by stores that can make a run of appends durable
// in one write. FlushAppends reports how many of the run's trailing appends
// it had to drop when that write failed.
type Batcher interface {
	BeginAppends()
	FlushAppends() (int, error)
}

var errNoOtherCategory = errors.New(`category set has no "Other" category`)

// Result describes a finished import.
type Result struct {
	Count    int              `json:"count"`
	Receipts []entity.Receipt `json:"receipts"`
	Client   *entity.Client   `json:"client,omitempty"`
	Summary  string           `json:"summary"`
}

type Materializer struct {
	store      Store
	classifier *classify.Classifier
	ids        *utils.IDGenerator
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Materializer)

// WithClock replaces time.Now; the clock supplies createdAt, ids and the
// fallback date.
func WithClock(now func() time.Time) Option {
	return func(m *Materializer) { m.now = now }
}

func WithIDGenerator(ids *utils.IDGenerator) Option {
	return func(m *Materializer) { m.ids = ids }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Materializer) { m.logger = logger }
}

func New(store Store, classifier *classify.Classifier, opts ...Option) *Materializer {
	m := &Materializer{
		store:      store,
		classifier: classifier,
		ids:        utils.NewIDGenerator(),
		now:        time.Now,
		logger:     slog.Default(),
	}
	if m.classifier == nil {
		m.classifier = classify.New(nil)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Materialize appends one receipt per row, in order. clientID, when set, is
// stamped on every receipt and must name an existing client. Appends are not
// rolled back: on a store failure the returned Result holds the receipts that
// were written before it. A store that implements Batcher gets the whole run
// between one BeginAppends and FlushAppends.
func (m *Materializer) Materialize(ctx context.Context, rows []decode.Row, mapping entity.ColumnMapping, clientID *int64) (*Result, error) {
	if missing := mapping.Missing(); len(missing) > 0 {
		m.logger.Warn("import.materialize.mapping_incomplete", "missing", missing)
		return nil, common.ErrMissingMapping
	}

	categories, err := m.store.Categories(ctx)
	if err != nil {
		return nil, common.ImportFailure(fmt.Errorf("load categories: %w", err))
	}

	res := &Result{Receipts: make([]entity.Receipt, 0, len(rows))}
	if clientID != nil {
		clients, err := m.store.Clients(ctx)
		if err != nil {
			return nil, common.ImportFailure(fmt.Errorf("load clients: %w", err))
		}
		res.Client = entity.FindClientByID(clients, *clientID)
		if res.Client == nil {
			return nil, common.ErrUnknownClient
		}
	}

	if b, ok := m.store.(Batcher); ok {
		b.BeginAppends()
		err = m.appendRows(ctx, res, rows, mapping, categories, clientID)
		if dropped, flushErr := b.FlushAppends(); flushErr != nil {
			m.logger.Error("import.materialize.flush_failed", "dropped", dropped, "error", flushErr)
			res.Receipts = res.Receipts[:len(res.Receipts)-min(dropped, len(res.Receipts))]
			if err == nil {
				err = common.ImportFailure(flushErr)
			}
		}
	} else {
		err = m.appendRows(ctx, res, rows, mapping, categories, clientID)
	}
	m.finish(res)
	if err != nil {
		return res, err
	}

	m.logger.Info("import.materialize.ok", "count", res.Count, "client_id", clientID)
	return res, nil
}

func (m *Materializer) appendRows(ctx context.Context, res *Result, rows []decode.Row, mapping entity.ColumnMapping, categories []entity.Category, clientID *int64) error {
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return common.ImportFailure(err)
		}

		receipt, err := m.receipt(row, mapping, categories, clientID)
		if err != nil {
			return common.ImportFailure(err)
		}
		if err := m.store.AppendReceipt(ctx, receipt); err != nil {
			m.logger.Error("import.materialize.append_failed", "row", i, "error", err)
			return common.ImportFailure(err)
		}
		res.Receipts = append(res.Receipts, receipt)
	}
	return nil
}

func (m *Materializer) receipt(row decode.Row, mapping entity.ColumnMapping, categories []entity.Category, clientID *int64) (entity.Receipt, error) {
	now := m.now()

	vendor := row[mapping.Vendor]
	if vendor == "" {
		vendor = constants.UnknownVendor
	}
	description := ""
	if mapping.Description != "" {
		description = row[mapping.Description]
	}

	cat := m.classifier.Classify(classify.Text(vendor, description), categories)
	if cat == nil {
		return entity.Receipt{}, errNoOtherCategory
	}

	var client *int64
	if clientID != nil {
		id := *clientID
		client = &id
	}

	return entity.Receipt{
		ID:          m.ids.Next(now),
		Vendor:      vendor,
		Amount:      coerce.Amount(row[mapping.Amount]),
		Date:        coerce.DateOr(row[mapping.Date], now),
		Description: description,
		CategoryID:  cat.ID,
		ClientID:    client,
		CreatedAt:   now.UTC(),
		Status:      string(constants.ReceiptStatusImported),
		Tags:        []string{constants.TagBulkImport},
	}, nil
}

func (m *Materializer) finish(res *Result) *Result {
	res.Count = len(res.Receipts)
	res.Summary = fmt.Sprintf("Imported %d receipts", res.Count)
	if res.Client != nil {
		res.Summary += " for " + res.Client.Name
	}
	return res
}
