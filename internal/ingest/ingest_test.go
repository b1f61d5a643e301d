package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/imports"
	"github.com/taxsyncpro/taxsync/internal/logger"
	"github.com/taxsyncpro/taxsync/internal/store"
)

const janCSV = "Date,Vendor,Amount,Description\n" +
	"2024-01-15,Shell Gas Station,45.67,Fuel\n" +
	"2024-01-16,Office Depot,23.99,Paper\n"

const febCSV = "Date,Vendor,Amount\n2024-02-01,Uber,18.20\n"

func newIngestor(t *testing.T) (*FSIngestor, *store.JSONStore) {
	t.Helper()
	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "store.json"), logger.Discard())
	require.NoError(t, err)
	svc, err := imports.NewService(context.Background(), st, nil, nil, imports.Config{}, logger.Discard())
	require.NoError(t, err)
	return NewFSIngestor(svc, logger.Discard()), st
}

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestIngestDirectory(t *testing.T) {
	ing, st := newIngestor(t)
	root := t.TempDir()
	write(t, filepath.Join(root, "jan.csv"), janCSV)
	write(t, filepath.Join(root, "sub", "feb.csv"), febCSV)
	write(t, filepath.Join(root, "copy-of-jan.csv"), janCSV)
	write(t, filepath.Join(root, "notes.txt"), "ignore me")
	write(t, filepath.Join(root, ".hidden.csv"), febCSV)
	write(t, filepath.Join(root, ".cache", "x.csv"), febCSV)
	write(t, filepath.Join(root, "broken.csv"), "Date,Vendor,Amount\n")
	write(t, filepath.Join(root, ProcessedDir, "old.csv"), febCSV)

	results, stats, err := ing.IngestDirectory(context.Background(), root, Options{SkipHidden: true, MoveProcessed: true})
	require.NoError(t, err)

	assert.Equal(t, uint32(4), stats.Matched)
	assert.Equal(t, uint32(3), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(1), stats.Failed)
	assert.Equal(t, 3, stats.Receipts)
	assert.Len(t, results, 4)

	receipts, err := st.ListReceipts(context.Background(), entity.ReceiptFilter{})
	require.NoError(t, err)
	assert.Len(t, receipts, 3)

	assert.FileExists(t, filepath.Join(root, ProcessedDir, "jan.csv"))
	assert.FileExists(t, filepath.Join(root, ProcessedDir, "copy-of-jan.csv"))
	assert.FileExists(t, filepath.Join(root, "sub", ProcessedDir, "feb.csv"))
	assert.FileExists(t, filepath.Join(root, "broken.csv"))
	assert.NoFileExists(t, filepath.Join(root, "jan.csv"))
}

func TestIngestDirectoryRequiresRoot(t *testing.T) {
	ing, _ := newIngestor(t)
	_, _, err := ing.IngestDirectory(context.Background(), "  ", Options{})
	assert.Error(t, err)
}

func TestMoveProcessedAvoidsOverwrite(t *testing.T) {
	ing, _ := newIngestor(t)
	ing.now = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) }
	root := t.TempDir()
	write(t, filepath.Join(root, ProcessedDir, "jan.csv"), "older")
	write(t, filepath.Join(root, "jan.csv"), janCSV)

	dest, err := ing.moveProcessed(filepath.Join(root, "jan.csv"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ProcessedDir, "jan-20240501T083000.000.csv"), dest)
	assert.FileExists(t, filepath.Join(root, ProcessedDir, "jan.csv"))
}

func TestWatcherEmitsDebouncedPaths(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "existing.csv"), febCSV)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond}, logger.Discard())
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "existing.csv"), p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan did not emit")
	}

	write(t, filepath.Join(root, "notes.txt"), "x")
	write(t, filepath.Join(root, "new.csv"), janCSV)

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "new.csv"), p)
	case <-time.After(2 * time.Second):
		t.Fatal("new file was not emitted")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherNeedsRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, logger.Discard())
	assert.Error(t, err)
}

func TestInboxImportsDroppedFiles(t *testing.T) {
	ing, st := newIngestor(t)
	root := filepath.Join(t.TempDir(), "inbox")
	write(t, filepath.Join(root, "waiting.csv"), febCSV)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewInbox(root, 20*time.Millisecond, ing, Options{}, logger.Discard()).Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(root, ProcessedDir, "waiting.csv"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	write(t, filepath.Join(root, "dropped.csv"), janCSV)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(root, ProcessedDir, "dropped.csv"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("inbox did not stop")
	}

	receipts, err := st.ListReceipts(context.Background(), entity.ReceiptFilter{})
	require.NoError(t, err)
	assert.Len(t, receipts, 3)
}
