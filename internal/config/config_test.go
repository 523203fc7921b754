package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvMongoConn, EnvMongoDatabase, EnvSQLConn, EnvSQLitePath, EnvCacheSize,
		EnvDefaultProvider, EnvLogLevel, EnvLogFile, EnvWriteRateLimit} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigNoProviders(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Providers)
	assert.Equal(t, "", cfg.DefaultProviderName())
	assert.Equal(t, DefaultBatchSize, cfg.Migration.BatchSize)
	assert.True(t, cfg.Migration.ContinueOnError)
	assert.NoError(t, cfg.Verify())
}

func TestLoadConfigFirstConfiguredWins(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSQLitePath, "/tmp/x.db")
	t.Setenv(EnvCacheSize, "")
	t.Setenv(EnvWriteRateLimit, "25")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "sqlite", cfg.DefaultProviderName())
	assert.Equal(t, 25.0, cfg.Providers[0].WritesPerSecond)
	assert.Equal(t, "memory", cfg.Providers[1].Name)
	assert.NoError(t, cfg.Verify())

	t.Setenv(EnvMongoConn, "mongodb://localhost:27017")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.DefaultProviderName())
	p, ok := cfg.Provider("mongo")
	require.True(t, ok)
	assert.Equal(t, DefaultMongoDatabase, p.Database)

	t.Setenv(EnvDefaultProvider, "memory")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DefaultProviderName())
}

func TestLoadConfigRejectsBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvCacheSize, "lots")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadFileMergesProviders(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvCacheSize, "10")

	path := filepath.Join(t.TempDir(), "docshift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  - name: memory
    kind: memory
    cacheSize: 500
  - name: archive
    kind: sql
    dialect: sqlite
    dsn: /tmp/archive.db
    writesPerSecond: 5
defaultProvider: archive
migration:
  batchSize: 50
  backupBeforeMigration: true
`), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, 500, cfg.Providers[0].CacheSize)
	assert.Equal(t, "archive", cfg.DefaultProviderName())
	assert.Equal(t, 50, cfg.Migration.BatchSize)
	assert.True(t, cfg.Migration.BackupBeforeMigration)
	assert.True(t, cfg.Migration.ContinueOnError)
	assert.NoError(t, cfg.Verify())
}

func TestVerify(t *testing.T) {
	cfg := New()
	cfg.Providers = []ProviderConfig{
		{Name: "a", Kind: "mongo"},
		{Name: "a", Kind: "memory"},
		{Name: "b", Kind: "redis"},
		{Name: "c", Kind: "sql", DSN: "x", Dialect: "oracle"},
	}
	cfg.DefaultProvider = "zzz"
	cfg.Migration.BatchSize = 0

	err := cfg.Verify()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "dsn is required")
	assert.Contains(t, msg, `duplicate provider name "a"`)
	assert.Contains(t, msg, `unknown provider kind "redis"`)
	assert.Contains(t, msg, `unknown sql dialect "oracle"`)
	assert.Contains(t, msg, `default provider "zzz"`)
	assert.Contains(t, msg, "batch size must be positive")
}

func TestLoadSchemas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users":{"name":{"required":true,"maxLength":8},"age":{"type":"number","min":0}}}`), 0644))

	schemas, err := LoadSchemas(path)
	require.NoError(t, err)
	users := schemas["users"]
	assert.True(t, users["name"].Required)
	assert.Equal(t, 8, users["name"].MaxLength)
	require.NotNil(t, users["age"].Min)
	assert.Equal(t, 0.0, *users["age"].Min)
	assert.Equal(t, []string{"name"}, users.RequiredFields())

	_, err = LoadSchemas(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
