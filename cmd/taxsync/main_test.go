package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--db", db, "--env-file", "", "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportAndQuery(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "store.json")
	file := filepath.Join(dir, "expenses.csv")
	require.NoError(t, os.WriteFile(file, []byte(
		"Date,Vendor,Amount,Description\n"+
			"2024-01-15,Shell Gas Station,45.67,Fuel for company car\n"+
			"2024-01-16,Office Depot,23.99,Printer paper\n"), 0o644))

	out, err := run(t, db, "clients", "add", "Acme Corp", "--project", "ACME-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Corp")

	out, err = run(t, db, "analyze", file)
	require.NoError(t, err)
	assert.Contains(t, out, "2 rows")
	assert.Contains(t, out, "Gas & Fuel")

	out, err = run(t, db, "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 receipts")

	out, err = run(t, db, "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "already imported")

	out, err = run(t, db, "receipts", "--category", "gas & fuel")
	require.NoError(t, err)
	assert.Contains(t, out, "Shell Gas Station")
	assert.NotContains(t, out, "Office Depot")

	out, err = run(t, db, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "2 receipts, total 69.66")

	out, err = run(t, db, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "IMPORTED")

	xlsx := filepath.Join(dir, "out.xlsx")
	_, err = run(t, db, "export", "-o", xlsx)
	require.NoError(t, err)
	assert.FileExists(t, xlsx)
}

func TestImportErrorsAreUserFacing(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	_, err := run(t, filepath.Join(dir, "store.json"), "import", file)
	require.Error(t, err)
	assert.Equal(t, "Unsupported file type. Please upload a CSV or Excel file.", err.Error())
}

func TestImportWithManualMapping(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "store.json")
	file := filepath.Join(dir, "bank.csv")
	require.NoError(t, os.WriteFile(file, []byte("Posted,Payee,Debit\n2024-02-01,Staples,12.00\n"), 0o644))

	out, err := run(t, db, "import", file, "--date-col", "Posted", "--amount-col", "Debit", "--vendor-col", "Payee")
	require.NoError(t, err)
	assert.Contains(t, out, "mapping from manual")
}
