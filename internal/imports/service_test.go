package imports

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/importer"
	"github.com/taxsyncpro/taxsync/internal/importer/decode"
	"github.com/taxsyncpro/taxsync/internal/logger"
	"github.com/taxsyncpro/taxsync/internal/presets"
	"github.com/taxsyncpro/taxsync/internal/store"
	"github.com/taxsyncpro/taxsync/internal/utils"
)

const expenses = "Date,Vendor,Amount,Description\n" +
	"2024-01-15,Shell Gas Station,45.67,Fuel for company car\n" +
	"2024-01-16,Office Depot,23.99,Printer paper for office\n"

// bankExport has no header the inferencer recognises as a vendor.
const bankExport = "Posted,Debit,Payee\n" +
	"2024-02-01,12.50,Staples\n"

type fixture struct {
	svc     *Service
	store   *store.JSONStore
	presets *presets.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "store.json"), logger.Discard())
	require.NoError(t, err)
	ps, err := presets.Open("", logger.Discard())
	require.NoError(t, err)
	svc, err := NewService(context.Background(), st, ps, nil, Config{SessionTTL: time.Minute}, logger.Discard())
	require.NoError(t, err)
	return &fixture{svc: svc, store: st, presets: ps}
}

func csvFile(name, body string) decode.Source {
	return decode.BytesSource{FileName: name, Data: []byte(body)}
}

func TestUploadReviewCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	up, err := f.svc.Upload(ctx, csvFile("jan.csv", expenses))
	require.NoError(t, err)
	assert.Equal(t, importer.StatusReady, up.Status)
	assert.Len(t, up.ContentHash, 64)
	assert.Nil(t, up.DuplicateOf)
	assert.Equal(t, 2, up.Analysis.TotalRows)

	done, err := f.svc.Commit(ctx, up.ID, CommitRequest{})
	require.NoError(t, err)
	assert.Equal(t, importer.StatusCommitted, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, "Imported 2 receipts", done.Result.Summary)
	require.NotNil(t, done.Batch)
	assert.Equal(t, string(constants.BatchStatusImported), done.Batch.Status)
	assert.Equal(t, 2, done.Batch.ImportedCount)
	assert.Equal(t, 2, done.Batch.RowCount)
	assert.Equal(t, "csv", done.Batch.FileExt)

	receipts, err := f.store.ListReceipts(ctx, entity.ReceiptFilter{})
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, int64(9), receipts[0].CategoryID)

	_, err = f.svc.Commit(ctx, up.ID, CommitRequest{})
	assert.Equal(t, common.CodeImportFailure, common.ErrorCode(err))

	history, err := f.svc.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	b, err := f.svc.Batch(ctx, done.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "jan.csv", b.FileName)
}

// failingStore fails the failOn-th receipt append.
type failingStore struct {
	*store.JSONStore
	mu      sync.Mutex
	appends int
	failOn  int
}

func (s *failingStore) AppendReceipt(ctx context.Context, r entity.Receipt) error {
	s.mu.Lock()
	s.appends++
	fail := s.appends == s.failOn
	s.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return s.JSONStore.AppendReceipt(ctx, r)
}

func TestPartialCommitIsNotRetried(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "store.json"), logger.Discard())
	require.NoError(t, err)
	svc, err := NewService(ctx, &failingStore{JSONStore: st, failOn: 2}, nil, nil, Config{SessionTTL: time.Minute}, logger.Discard())
	require.NoError(t, err)

	up, err := svc.Upload(ctx, csvFile("jan.csv", expenses))
	require.NoError(t, err)

	done, err := svc.Commit(ctx, up.ID, CommitRequest{})
	assert.ErrorIs(t, err, common.ErrImportFailure)
	require.NotNil(t, done)
	assert.Equal(t, importer.StatusFailed, done.Status)
	require.NotNil(t, done.Batch)
	assert.Equal(t, string(constants.BatchStatusFailed), done.Batch.Status)
	assert.Equal(t, 1, done.Batch.ImportedCount)
	assert.Equal(t, "Failed to import receipts: disk full", done.Batch.ErrorMessage)

	_, err = svc.Commit(ctx, up.ID, CommitRequest{})
	assert.ErrorIs(t, err, common.ErrImportFailure)
	_, err = svc.Commit(ctx, up.ID, CommitRequest{Force: true})
	assert.ErrorIs(t, err, common.ErrImportFailure)

	receipts, err := st.ListReceipts(ctx, entity.ReceiptFilter{})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "Shell Gas Station", receipts[0].Vendor)

	history, err := svc.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestConcurrentCommitsRecordOneBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	up, err := f.svc.Upload(ctx, csvFile("jan.csv", expenses))
	require.NoError(t, err)

	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Commit(ctx, up.ID, CommitRequest{})
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, common.CodeImportFailure, common.ErrorCode(err))
	}
	assert.Equal(t, 1, ok)

	history, err := f.svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, string(constants.BatchStatusImported), history[0].Status)

	receipts, err := f.store.ListReceipts(ctx, entity.ReceiptFilter{})
	require.NoError(t, err)
	assert.Len(t, receipts, 2)
}

func TestDuplicateUploadNeedsForce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, csvFile("jan.csv", expenses))
	require.NoError(t, err)
	_, err = f.svc.Commit(ctx, first.ID, CommitRequest{})
	require.NoError(t, err)

	again, err := f.svc.Upload(ctx, csvFile("jan-copy.csv", expenses))
	require.NoError(t, err)
	require.NotNil(t, again.DuplicateOf)

	_, err = f.svc.Commit(ctx, again.ID, CommitRequest{})
	assert.ErrorIs(t, err, common.ErrDuplicate)

	forced, err := f.svc.Commit(ctx, again.ID, CommitRequest{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, forced.Result.Count)

	receipts, err := f.store.ListReceipts(ctx, entity.ReceiptFilter{})
	require.NoError(t, err)
	assert.Len(t, receipts, 4)
}

func TestCommitWithManualMappingSavesPreset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	up, err := f.svc.Upload(ctx, csvFile("bank.csv", bankExport))
	require.NoError(t, err)
	assert.False(t, up.Mapping.Complete())

	_, err = f.svc.Commit(ctx, up.ID, CommitRequest{})
	assert.ErrorIs(t, err, common.ErrMissingMapping)

	mapping := entity.ColumnMapping{Date: "Posted", Amount: "Debit", Vendor: "Payee"}
	done, err := f.svc.Commit(ctx, up.ID, CommitRequest{Mapping: &mapping})
	require.NoError(t, err)
	assert.Equal(t, 1, done.Result.Count)

	got, ok := f.presets.Lookup([]string{"Posted", "Debit", "Payee"})
	require.True(t, ok)
	assert.Equal(t, mapping, got)

	next, err := f.svc.Upload(ctx, csvFile("bank-feb.csv", bankExport+"2024-02-03,4.00,Costa Coffee\n"))
	require.NoError(t, err)
	assert.Equal(t, importer.MappingPreset, next.MappingSource)
	assert.Equal(t, mapping, next.Mapping)
}

func TestCommitWithClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, err := f.store.CreateClient(ctx, entity.Client{ID: 77, Name: "Acme Corp"})
	require.NoError(t, err)

	up, err := f.svc.Upload(ctx, csvFile("jan.csv", expenses))
	require.NoError(t, err)

	unknown := int64(404)
	_, err = f.svc.Commit(ctx, up.ID, CommitRequest{ClientID: &unknown})
	assert.ErrorIs(t, err, common.ErrUnknownClient)

	done, err := f.svc.Commit(ctx, up.ID, CommitRequest{ClientID: &client.ID})
	require.NoError(t, err)
	assert.Equal(t, "Imported 2 receipts for Acme Corp", done.Result.Summary)
	require.NotNil(t, done.Batch.ClientID)
	assert.Equal(t, int64(77), *done.Batch.ClientID)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, csvFile("notes.txt", "hello"))
	assert.ErrorIs(t, err, common.ErrUnsupportedType)

	_, err = f.svc.Upload(ctx, csvFile("empty.csv", "Date,Vendor,Amount\n"))
	assert.ErrorIs(t, err, common.ErrEmptyData)
}

func TestGetUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get([16]byte{9})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.svc.Batch(context.Background(), [16]byte{9})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestImportFileSkipsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.ImportFile(ctx, csvFile("jan.csv", expenses), ImportOptions{})
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Equal(t, importer.MappingInferred, out.MappingSource)
	assert.Equal(t, 2, out.Result.Count)

	again, err := f.svc.ImportFile(ctx, csvFile("jan.csv", expenses), ImportOptions{})
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	require.NotNil(t, again.DuplicateOf)
	assert.Equal(t, out.Batch.ID, again.DuplicateOf.ID)

	forced, err := f.svc.ImportFile(ctx, csvFile("jan.csv", expenses), ImportOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, forced.Result.Count)
}

func TestImportFileRecordsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ImportFile(ctx, csvFile("bank.csv", bankExport), ImportOptions{})
	assert.ErrorIs(t, err, common.ErrMissingMapping)

	history, err := f.svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, string(constants.BatchStatusFailed), history[0].Status)
	assert.NotEmpty(t, history[0].ErrorMessage)

	mapping := entity.ColumnMapping{Date: "Posted", Amount: "Debit", Vendor: "Payee"}
	out, err := f.svc.ImportFile(ctx, csvFile("bank.csv", bankExport), ImportOptions{Mapping: &mapping})
	require.NoError(t, err)
	assert.Equal(t, "manual", out.MappingSource)
	assert.Equal(t, 1, out.Result.Count)

	bad := entity.ColumnMapping{Date: "Nope", Amount: "Debit", Vendor: "Payee"}
	_, err = f.svc.ImportFile(ctx, csvFile("bank2.csv", bankExport+"2024-02-02,1,X\n"), ImportOptions{Mapping: &bad})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestNewServiceObservesStoredIDs(t *testing.T) {
	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "store.json"), logger.Discard())
	require.NoError(t, err)
	ctx := context.Background()
	far := time.Now().Add(24*time.Hour).UnixMilli() * 1000
	require.NoError(t, st.AppendReceipt(ctx, entity.Receipt{ID: far, Date: "2024-01-01", CategoryID: 10}))

	ids := utils.NewIDGenerator()
	svc, err := NewService(ctx, st, nil, ids, Config{}, logger.Discard())
	require.NoError(t, err)

	out, err := svc.ImportFile(ctx, csvFile("jan.csv", expenses), ImportOptions{})
	require.NoError(t, err)
	require.Len(t, out.Result.Receipts, 2)
	assert.Greater(t, out.Result.Receipts[0].ID, far)
}

func TestSweepDropsIdleSessions(t *testing.T) {
	f := newFixture(t)
	up, err := f.svc.Upload(context.Background(), csvFile("jan.csv", expenses))
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, f.svc.Sweep())
	_, err = f.svc.Get(up.ID)
	assert.Equal(t, codes.NotFound, status.Code(err))
}
