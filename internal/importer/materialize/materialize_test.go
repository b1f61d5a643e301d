package materialize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/importer/decode"
	"github.com/taxsyncpro/taxsync/internal/logger"
)

type fakeStore struct {
	categories []entity.Category
	clients    []entity.Client
	receipts   []entity.Receipt
	failAfter  int
}

func newFakeStore() *fakeStore {
	s := &fakeStore{failAfter: -1}
	for _, c := range constants.SeedCategories {
		s.categories = append(s.categories, entity.Category{ID: c.ID, Name: string(c.Name), Color: c.Color})
	}
	s.clients = []entity.Client{{ID: 42, Name: "Acme Corp"}}
	return s
}

func (s *fakeStore) Categories(context.Context) ([]entity.Category, error) { return s.categories, nil }
func (s *fakeStore) Clients(context.Context) ([]entity.Client, error)      { return s.clients, nil }
func (s *fakeStore) AppendReceipt(_ context.Context, r entity.Receipt) error {
	if s.failAfter >= 0 && len(s.receipts) >= s.failAfter {
		return errors.New("disk full")
	}
	s.receipts = append(s.receipts, r)
	return nil
}

var (
	fullMapping = entity.ColumnMapping{Date: "Date", Amount: "Amount", Vendor: "Vendor", Description: "Description"}
	fixedNow    = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func newMaterializer(s Store) *Materializer {
	return New(s, nil, WithClock(func() time.Time { return fixedNow }), WithLogger(logger.Discard()))
}

func TestMaterializeEndToEnd(t *testing.T) {
	table, err := decode.NewDecoder(0, logger.Discard()).Decode(context.Background(), decode.BytesSource{
		FileName: "expenses.csv",
		Data: []byte("Date,Vendor,Amount,Description\n" +
			"2024-01-15,Shell Gas Station,45.67,Fuel for company car\n" +
			"2024-01-16,Office Depot,23.99,Printer paper for office\n"),
	})
	require.NoError(t, err)

	store := newFakeStore()
	res, err := newMaterializer(store).Materialize(context.Background(), table.Rows, fullMapping, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "Imported 2 receipts", res.Summary)
	require.Len(t, store.receipts, 2)

	first, second := store.receipts[0], store.receipts[1]
	assert.Equal(t, "Shell Gas Station", first.Vendor)
	assert.Equal(t, 45.67, first.Amount)
	assert.Equal(t, "2024-01-15", first.Date)
	assert.Equal(t, int64(9), first.CategoryID)
	assert.Nil(t, first.ClientID)
	assert.Equal(t, []string{"bulk-import"}, first.Tags)
	assert.Equal(t, "imported", first.Status)
	assert.Equal(t, fixedNow, first.CreatedAt)

	assert.Equal(t, "Office Depot", second.Vendor)
	assert.Equal(t, 23.99, second.Amount)
	assert.Equal(t, "2024-01-16", second.Date)
	assert.Equal(t, int64(1), second.CategoryID)
	assert.Greater(t, second.ID, first.ID)
}

func TestMaterializeCoercions(t *testing.T) {
	rows := []decode.Row{
		{"Date": "someday", "Vendor": "", "Amount": "$1,234.56", "Description": ""},
		{"Date": "2024-02-01", "Vendor": "Deli", "Amount": "n/a", "Description": "lunch"},
		{"Date": "", "Vendor": "Refund Co", "Amount": "-20.00", "Description": ""},
	}
	store := newFakeStore()
	res, err := newMaterializer(store).Materialize(context.Background(), rows, fullMapping, nil)
	require.NoError(t, err)
	require.Equal(t, 3, res.Count)

	assert.Equal(t, "Unknown Vendor", res.Receipts[0].Vendor)
	assert.Equal(t, 1234.56, res.Receipts[0].Amount)
	assert.Equal(t, "2025-06-01", res.Receipts[0].Date)
	assert.Equal(t, int64(10), res.Receipts[0].CategoryID)

	assert.Equal(t, 0.0, res.Receipts[1].Amount)
	assert.Equal(t, int64(3), res.Receipts[1].CategoryID)

	assert.Equal(t, 20.0, res.Receipts[2].Amount)
	assert.Equal(t, "2025-06-01", res.Receipts[2].Date)
}

func TestMaterializeDateFallbackUsesCallTime(t *testing.T) {
	store := newFakeStore()
	m := New(store, nil, WithLogger(logger.Discard()))
	before := time.Now().UTC().Format(time.DateOnly)
	res, err := m.Materialize(context.Background(), []decode.Row{{"Date": "32/13/2024", "Vendor": "X", "Amount": "1"}}, fullMapping, nil)
	after := time.Now().UTC().Format(time.DateOnly)
	require.NoError(t, err)
	assert.Contains(t, []string{before, after}, res.Receipts[0].Date)
}

func TestMaterializeBatchClient(t *testing.T) {
	rows := make([]decode.Row, 5)
	for i := range rows {
		rows[i] = decode.Row{"Date": "2024-01-01", "Vendor": "Staples", "Amount": "10"}
	}

	store := newFakeStore()
	client := int64(42)
	res, err := newMaterializer(store).Materialize(context.Background(), rows, fullMapping, &client)
	require.NoError(t, err)
	assert.Equal(t, "Imported 5 receipts for Acme Corp", res.Summary)
	require.Len(t, store.receipts, 5)
	for _, r := range store.receipts {
		require.NotNil(t, r.ClientID)
		assert.Equal(t, client, *r.ClientID)
	}

	store = newFakeStore()
	_, err = newMaterializer(store).Materialize(context.Background(), rows, fullMapping, nil)
	require.NoError(t, err)
	for _, r := range store.receipts {
		assert.Nil(t, r.ClientID)
	}
}

func TestMaterializeRequiresMapping(t *testing.T) {
	store := newFakeStore()
	_, err := newMaterializer(store).Materialize(context.Background(),
		[]decode.Row{{"Vendor": "x"}}, entity.ColumnMapping{Vendor: "Vendor", Amount: "Amount"}, nil)
	assert.ErrorIs(t, err, common.ErrMissingMapping)
	assert.ErrorIs(t, err, common.ErrImportFailure)
	assert.Empty(t, store.receipts)
}

func TestMaterializeUnknownClient(t *testing.T) {
	store := newFakeStore()
	missing := int64(7)
	_, err := newMaterializer(store).Materialize(context.Background(),
		[]decode.Row{{"Date": "2024-01-01", "Vendor": "x", "Amount": "1"}}, fullMapping, &missing)
	assert.ErrorIs(t, err, common.ErrUnknownClient)
	assert.Empty(t, store.receipts)
}

func TestMaterializeStoreFailureKeepsEarlierAppends(t *testing.T) {
	store := newFakeStore()
	store.failAfter = 1
	rows := []decode.Row{
		{"Date": "2024-01-01", "Vendor": "a", "Amount": "1"},
		{"Date": "2024-01-02", "Vendor": "b", "Amount": "2"},
	}
	res, err := newMaterializer(store).Materialize(context.Background(), rows, fullMapping, nil)
	assert.ErrorIs(t, err, common.ErrImportFailure)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Count)
	assert.Len(t, store.receipts, 1)
}

func TestMaterializeWithoutOtherCategory(t *testing.T) {
	store := newFakeStore()
	store.categories = []entity.Category{{ID: 1, Name: "Office Supplies"}}
	_, err := newMaterializer(store).Materialize(context.Background(),
		[]decode.Row{{"Date": "2024-01-01", "Vendor": "mystery", "Amount": "1"}}, fullMapping, nil)
	assert.ErrorIs(t, err, common.ErrImportFailure)
}

type batchingStore struct {
	*fakeStore
	begins, flushes int
	flushErr        error
	dropped         int
}

func (s *batchingStore) BeginAppends() { s.begins++ }

func (s *batchingStore) FlushAppends() (int, error) {
	s.flushes++
	if s.flushErr != nil {
		s.receipts = s.receipts[:len(s.receipts)-s.dropped]
		return s.dropped, s.flushErr
	}
	return 0, nil
}

func TestMaterializeBatchesAppendsOnce(t *testing.T) {
	rows := []decode.Row{
		{"Date": "2024-01-01", "Vendor": "a", "Amount": "1"},
		{"Date": "2024-01-02", "Vendor": "b", "Amount": "2"},
		{"Date": "2024-01-03", "Vendor": "c", "Amount": "3"},
	}
	store := &batchingStore{fakeStore: newFakeStore()}
	res, err := newMaterializer(store).Materialize(context.Background(), rows, fullMapping, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Len(t, store.receipts, 3)
	assert.Equal(t, 1, store.begins)
	assert.Equal(t, 1, store.flushes)

	store.fakeStore.failAfter = 4
	_, err = newMaterializer(store).Materialize(context.Background(), rows, fullMapping, nil)
	assert.ErrorIs(t, err, common.ErrImportFailure)
	assert.Equal(t, 2, store.flushes, "a failed append still closes the batch")
}

func TestMaterializeFlushFailureDropsUnwrittenReceipts(t *testing.T) {
	rows := []decode.Row{
		{"Date": "2024-01-01", "Vendor": "a", "Amount": "1"},
		{"Date": "2024-01-02", "Vendor": "b", "Amount": "2"},
	}
	store := &batchingStore{fakeStore: newFakeStore(), flushErr: errors.New("disk full"), dropped: 2}
	res, err := newMaterializer(store).Materialize(context.Background(), rows, fullMapping, nil)
	assert.ErrorIs(t, err, common.ErrImportFailure)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, res.Receipts)
	assert.Equal(t, "Imported 0 receipts", res.Summary)
	assert.Empty(t, store.receipts)
}
