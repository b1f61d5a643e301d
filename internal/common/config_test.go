package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("IMPORT_MAPPING_POLICY", "")
	cfg := LoadConfig()

	assert.Equal(t, "taxsync.db", cfg.Database.DSN)
	assert.Equal(t, int64(10*1024*1024), cfg.Import.MaxFileSize)
	assert.Equal(t, MappingPolicyExclusive, cfg.Import.MappingPolicy)
	assert.Equal(t, 30*time.Minute, cfg.Import.SessionTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/taxsync")
	t.Setenv("IMPORT_MAPPING_POLICY", "Permissive")
	t.Setenv("IMPORT_MAX_FILE_SIZE", "2048")
	t.Setenv("IMPORT_WORKERS", "not-a-number")
	t.Setenv("IMPORT_PROCESS_TIMEOUT", "5s")

	cfg := LoadConfig()
	assert.Equal(t, "postgres://localhost/taxsync", cfg.Database.DSN)
	assert.Equal(t, MappingPolicyPermissive, cfg.Import.MappingPolicy)
	assert.Equal(t, int64(2048), cfg.Import.MaxFileSize)
	assert.Equal(t, 2, cfg.Import.Workers)
	assert.Equal(t, 5*time.Second, cfg.Import.ProcessTimeout)
}

func TestValidate(t *testing.T) {
	cfg := LoadConfig()
	cfg.Import.MappingPolicy = "greedy"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, CodeConfig, ErrorCode(err))
	assert.ErrorIs(t, err, ErrInvalidInput)

	cfg = LoadConfig()
	cfg.Database.DSN = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TAXSYNC_TEST_VALUE=from-file\n"), 0o644))

	t.Setenv("TAXSYNC_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("TAXSYNC_TEST_VALUE"))
	LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	assert.Equal(t, "from-file", os.Getenv("TAXSYNC_TEST_VALUE"))
}
