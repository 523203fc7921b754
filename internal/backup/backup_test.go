package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store/memstore"
	"github.com/BartekS5/docshift/pkg/store/storemock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func seed(t *testing.T, s *memstore.Store, table string, docs map[string]models.Document) {
	t.Helper()
	for id, doc := range docs {
		_, err := s.Create(context.Background(), table, id, doc)
		require.NoError(t, err)
	}
}

func TestTakeAndRestore(t *testing.T) {
	ctx := context.Background()
	src := memstore.New(0)
	seed(t, src, "users", map[string]models.Document{"a": {"name": "Al"}, "b": {"name": "Bo"}})

	b, err := Take(ctx, src, "cache", []string{"users", "empty"})
	require.NoError(t, err)
	assert.Equal(t, "cache", b.Provider)
	assert.Equal(t, 2, b.RecordCount())
	assert.Empty(t, b.Tables["empty"])

	dst := memstore.New(0)
	res, err := Restore(ctx, dst, b, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Restored)
	assert.Equal(t, 2, res.Total)

	got, err := dst.Read(ctx, "users", "a")
	require.NoError(t, err)
	assert.Equal(t, "Al", got["name"])
	assert.Equal(t, b.Tables["users"]["a"]["createdAt"], got["createdAt"])
}

func TestRestoreWithoutOverwriteKeepsGoing(t *testing.T) {
	ctx := context.Background()
	dst := memstore.New(0)
	seed(t, dst, "users", map[string]models.Document{"a": {"name": "changed"}})

	b := &models.Backup{Provider: "cache", Tables: map[string]map[string]models.Document{
		"users": {"a": {"name": "Al"}, "b": {"name": "Bo"}},
	}}
	res, err := Restore(ctx, dst, b, false)
	require.NoError(t, err)
	stats := res.Tables["users"]
	assert.Equal(t, 1, stats.Restored)
	assert.Equal(t, 2, stats.Total)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "already exists")

	res, err = Restore(ctx, dst, b, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Restored)
	got, _ := dst.Read(ctx, "users", "a")
	assert.Equal(t, "Al", got["name"])
}

func TestRestoreFailsWhenClearFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := storemock.NewMockStore(ctrl)
	m.EXPECT().DeleteAll(gomock.Any(), "users").Return(false, errors.New("read-only"))

	b := &models.Backup{Tables: map[string]map[string]models.Document{"users": {"a": {}}}}
	_, err := Restore(context.Background(), m, b, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
}

func TestRollbackDeletesMigratedKeys(t *testing.T) {
	ctx := context.Background()
	dst := memstore.New(0)
	seed(t, dst, "users", map[string]models.Document{"a": {}, "b": {}, "keep": {}})

	result := &models.MigrationResult{
		ToProvider: "cache",
		Tables: []*models.TableResult{{
			TableName: "users",
			Records: []models.RecordOutcome{
				{OriginalKey: "a", NewKey: "a", Status: models.RecordStatusSuccess},
				{OriginalKey: "b", NewKey: "b", Status: models.RecordStatusSuccess},
				{OriginalKey: "c", Status: models.RecordStatusError, Error: "boom"},
			},
		}},
	}

	out, err := Rollback(ctx, dst, result, RollbackOptions{DeleteMigrated: true})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Deleted)
	assert.Zero(t, out.Failed)

	left, err := dst.ReadAll(ctx, "users")
	require.NoError(t, err)
	assert.Len(t, left, 1)
	assert.Contains(t, left, "keep")
}

func TestRollbackRestoreNeedsBackup(t *testing.T) {
	_, err := Rollback(context.Background(), memstore.New(0), &models.MigrationResult{}, RollbackOptions{Restore: true})
	assert.Error(t, err)
}

func TestRollbackOfDryRunIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := storemock.NewMockStore(ctrl)
	out, err := Rollback(context.Background(), m, &models.MigrationResult{DryRun: true}, RollbackOptions{DeleteMigrated: true})
	require.NoError(t, err)
	assert.Zero(t, out.Deleted)
}

func TestSaveAndLoad(t *testing.T) {
	b := &models.Backup{Provider: "cache", Tables: map[string]map[string]models.Document{
		"users": {"a": {"name": "Al", "tags": []interface{}{"x"}}},
	}}
	path := filepath.Join(t.TempDir(), "snapshots", "users.json")

	m, err := Save(b, path)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Records)
	assert.Equal(t, []string{"users"}, m.Tables)
	assert.Len(t, m.SHA256, 64)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Al", loaded.Tables["users"]["a"]["name"])
	assert.Equal(t, []interface{}{"x"}, loaded.Tables["users"]["a"]["tags"])
}

func TestLoadDetectsTampering(t *testing.T) {
	b := &models.Backup{Provider: "cache", Tables: map[string]map[string]models.Document{"users": {"a": {"n": 1}}}}
	path := filepath.Join(t.TempDir(), "users.json")
	_, err := Save(b, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"provider":"evil","tables":{}}`), 0600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")

	require.NoError(t, os.Remove(ManifestPath(path)))
	_, err = Load(path)
	assert.Contains(t, err.Error(), "manifest not found")
}
