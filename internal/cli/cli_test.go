package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/BartekS5/docshift/internal/config"
	"github.com/BartekS5/docshift/pkg/database"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvMongoConn, config.EnvMongoDatabase, config.EnvSQLConn, config.EnvSQLitePath,
		config.EnvCacheSize, config.EnvDefaultProvider, config.EnvLogLevel, config.EnvLogFile, config.EnvWriteRateLimit} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

type workspace struct {
	dir    string
	config string
	source string
	target string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	w := &workspace{
		dir:    dir,
		config: filepath.Join(dir, "docshift.yaml"),
		source: filepath.Join(dir, "source.db"),
		target: filepath.Join(dir, "target.db"),
	}
	yaml := `providers:
  - name: source
    kind: sql
    dialect: sqlite
    dsn: ` + w.source + `
  - name: target
    kind: sql
    dialect: sqlite
    dsn: ` + w.target + `
  - name: cache
    kind: memory
defaultProvider: target
reportDir: ` + filepath.Join(dir, "reports") + `
`
	require.NoError(t, os.WriteFile(w.config, []byte(yaml), 0644))
	return w
}

func (w *workspace) seed(t *testing.T, table string, docs map[string]models.Document) {
	t.Helper()
	db, err := database.OpenSQLite(w.source)
	require.NoError(t, err)
	s, err := sqlstore.New(db, sqlstore.DialectSQLite)
	require.NoError(t, err)
	defer s.Close(context.Background())
	for id, doc := range docs {
		_, err := s.Create(context.Background(), table, id, doc)
		require.NoError(t, err)
	}
}

func (w *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", w.config, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProvidersCommand(t *testing.T) {
	w := newWorkspace(t)
	out, err := w.run(t, "providers")
	require.NoError(t, err)
	assert.Contains(t, out, "* target")
	assert.Contains(t, out, "  source")
	assert.Contains(t, out, "cache")
}

func TestMigrateCompareAndRollback(t *testing.T) {
	w := newWorkspace(t)
	w.seed(t, "users", map[string]models.Document{
		"a": {"name": "Al", "tags": []interface{}{"x"}},
		"b": {"name": "Bo"},
	})

	out, err := w.run(t, "migrate", "--from", "source", "--to", "target", "--tables", "users",
		"--backup", "--backup-file", filepath.Join(w.dir, "backup.json"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "Records: 2/2 migrated")
	assert.FileExists(t, filepath.Join(w.dir, "backup.json"))

	reports, err := filepath.Glob(filepath.Join(w.dir, "reports", "migration-*.json"))
	require.NoError(t, err)
	require.Len(t, reports, 1)

	out, err = w.run(t, "compare", "--provider1", "source", "--provider2", "target", "--tables", "users")
	require.NoError(t, err, out)
	var report models.ConsistencyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Consistent)

	out, err = w.run(t, "rollback", "--result", reports[0])
	require.NoError(t, err, out)
	assert.Contains(t, out, `"deleted": 2`)

	out, err = w.run(t, "compare", "--provider1", "source", "--provider2", "target", "--tables", "users")
	assert.Error(t, err)
	assert.Contains(t, out, `"onlyIn1"`)
}

func TestMigrateDefaultsToAllSourceTables(t *testing.T) {
	w := newWorkspace(t)
	w.seed(t, "users", map[string]models.Document{"a": {"name": "Al"}})
	w.seed(t, "orders", map[string]models.Document{"o1": {"total": 3}})

	out, err := w.run(t, "migrate", "--from", "source", "--to", "target")
	require.NoError(t, err, out)
	assert.Contains(t, out, "for orders, users")
	assert.Contains(t, out, "Records: 2/2 migrated")

	out, err = w.run(t, "migrate", "--from", "cache", "--to", "target")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds no tables")
}

func TestMigrateRejectsUnknownProvider(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "migrate", "--from", "source", "--to", "nowhere", "--tables", "users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestPlanCommand(t *testing.T) {
	w := newWorkspace(t)
	w.seed(t, "users", map[string]models.Document{"a": {"name": "Al"}})

	out, err := w.run(t, "plan", "--from", "source", "--to", "target", "--tables", "users", "--dry-run", "--execute")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"valid": true`)
	assert.Contains(t, out, "Records: 1/1 migrated")
}

func TestBackupCreateAndRestore(t *testing.T) {
	w := newWorkspace(t)
	w.seed(t, "users", map[string]models.Document{"a": {"name": "Al"}})
	file := filepath.Join(w.dir, "snap.json")

	out, err := w.run(t, "backup", "create", "--provider", "source", "--tables", "users", "--out", file)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Saved 1 records from source")

	out, err = w.run(t, "backup", "restore", "--provider", "target", "--in", file)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"restored": 1`)
}

func TestConnectionsCommand(t *testing.T) {
	w := newWorkspace(t)
	out, err := w.run(t, "test-connections", "--providers", "cache,target")
	require.NoError(t, err, out)
	assert.Contains(t, out, "cache")
	assert.Contains(t, out, "ok")
}
