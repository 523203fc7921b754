package etl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/BartekS5/docshift/internal/metrics"
	"github.com/BartekS5/docshift/internal/provider"
	"github.com/BartekS5/docshift/internal/transform"
	"github.com/BartekS5/docshift/pkg/database"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"github.com/BartekS5/docshift/pkg/store/memstore"
	"github.com/BartekS5/docshift/pkg/store/sqlstore"
	"github.com/BartekS5/docshift/pkg/store/storemock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	reg      *provider.Registry
	src, dst store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{reg: provider.NewRegistry(), src: memstore.New(0), dst: memstore.New(0)}
	require.NoError(t, f.reg.Register("src", f.src))
	require.NoError(t, f.reg.Register("dst", f.dst))
	return f
}

func seed(t *testing.T, s store.Store, table string, docs map[string]models.Document) {
	t.Helper()
	for id, doc := range docs {
		_, err := s.Create(context.Background(), table, id, doc)
		require.NoError(t, err)
	}
}

func numbered(n int) map[string]models.Document {
	docs := make(map[string]models.Document, n)
	for i := 0; i < n; i++ {
		docs[fmt.Sprintf("k%03d", i)] = models.Document{"n": i}
	}
	return docs
}

func TestMigrateConservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(t, f.src, "users", numbered(5))
	seed(t, f.src, "orders", numbered(3))

	opts := DefaultOptions()
	opts.BatchSize = 2
	result, err := NewMigrator(f.reg).MigrateData(ctx, "src", "dst", []string{"users", "orders"}, opts)
	require.NoError(t, err)

	sum := 0
	for _, tr := range result.Tables {
		assert.Equal(t, models.TableStatusSuccess, tr.Status)
		assert.Equal(t, tr.TotalRecords, tr.MigratedRecords)
		assert.Empty(t, tr.Errors)
		sum += tr.MigratedRecords
	}
	assert.Equal(t, 8, result.Summary.TotalRecords)
	assert.Equal(t, sum, result.Summary.MigratedRecords)
	assert.Equal(t, 2, result.Summary.SuccessfulTables)
	assert.Zero(t, result.Summary.FailedTables)
	assert.False(t, result.Aborted)
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))

	doc, err := f.dst.Read(ctx, "users", "k003")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "src", doc[transform.FieldMigratedFrom])

	for _, rec := range result.Table("users").Records {
		assert.Equal(t, rec.OriginalKey, rec.NewKey)
	}
}

func TestRequiredFieldFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(t, f.src, "users", map[string]models.Document{
		"a": {"name": "Al"},
		"b": {"name": "Bo"},
		"c": {"name": nil},
	})

	opts := DefaultOptions()
	opts.Schemas = map[string]models.Schema{"users": {"name": {Required: true}}}
	result, err := NewMigrator(f.reg).MigrateData(ctx, "src", "dst", []string{"users"}, opts)
	require.NoError(t, err)

	users := result.Table("users")
	assert.Equal(t, 3, users.TotalRecords)
	assert.Equal(t, 2, users.MigratedRecords)
	require.Len(t, users.Errors, 1)
	assert.Equal(t, "c", users.Errors[0].Key)
	assert.Contains(t, users.Errors[0].Message, "missing required fields: name")
	assert.Equal(t, models.TableStatusPartialSuccess, users.Status)
	assert.Equal(t, 0, result.Summary.SuccessfulTables)
	assert.Equal(t, 1, result.Summary.FailedTables)

	target, err := f.dst.ReadAll(ctx, "users")
	require.NoError(t, err)
	assert.Len(t, target, 2)
	assert.Contains(t, target, "a")
	assert.Contains(t, target, "b")
}

func TestEmptyTableIsSkipped(t *testing.T) {
	f := newFixture(t)
	result, err := NewMigrator(f.reg).MigrateData(context.Background(), "src", "dst", []string{"ghosts"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, models.TableStatusSkipped, result.Table("ghosts").Status)
	assert.Equal(t, 1, result.Summary.SuccessfulTables)
}

func TestDryRunDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(t, f.src, "users", numbered(4))
	seed(t, f.dst, "users", map[string]models.Document{"existing": {"n": -1}})

	before, err := f.dst.ReadAll(ctx, "users")
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.DryRun = true
	opts.BackupBeforeMigration = true
	result, err := NewMigrator(f.reg).MigrateData(ctx, "src", "dst", []string{"users"}, opts)
	require.NoError(t, err)

	users := result.Table("users")
	assert.Equal(t, models.TableStatusDryRunSuccess, users.Status)
	assert.Equal(t, 4, users.MigratedRecords)
	assert.False(t, result.BackupTaken)
	assert.True(t, result.DryRun)

	after, err := f.dst.ReadAll(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMigrationLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t)
	seed(t, f.src, "users", numbered(2))
	session := provider.NewSession(f.reg)
	require.NoError(t, session.SwitchProvider("dst"))

	_, err := NewMigrator(f.reg).MigrateData(context.Background(), "src", "dst", []string{"users"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "dst", session.Provider())

	_, err = NewMigrator(f.reg).MigrateData(context.Background(), "src", "nope", []string{"users"}, DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, "dst", session.Provider())
}

func failOn(key string) transform.Transform {
	return transform.FuncOf("fail-on-"+key, func(doc models.Document, tc transform.Context) (models.Document, error) {
		if tc.OriginalKey == key {
			return nil, errors.New("rejected")
		}
		return doc, nil
	})
}

func TestStopOnFirstErrorWhenNotContinuing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(t, f.src, "users", map[string]models.Document{"a": {}, "b": {}, "c": {}})
	seed(t, f.src, "orders", numbered(2))

	opts := DefaultOptions()
	opts.ContinueOnError = false
	opts.Workers = 8
	opts.Transform = failOn("b")
	result, err := NewMigrator(f.reg).MigrateData(ctx, "src", "dst", []string{"users", "orders"}, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAborted))
	require.NotNil(t, result)
	assert.True(t, result.Aborted)

	require.Len(t, result.Tables, 1)
	users := result.Table("users")
	assert.Equal(t, models.TableStatusPartialSuccess, users.Status)
	assert.Equal(t, 1, users.MigratedRecords)
	assert.Len(t, users.Records, 2)
	assert.Contains(t, result.Summary.Errors, "tables not started: orders")

	orders, err := f.dst.ReadAll(ctx, "orders")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRecordFailureWithContinueKeepsGoing(t *testing.T) {
	f := newFixture(t)
	seed(t, f.src, "users", numbered(10))

	opts := DefaultOptions()
	opts.BatchSize = 3
	opts.Transform = failOn("k004")
	result, err := NewMigrator(f.reg).MigrateData(context.Background(), "src", "dst", []string{"users"}, opts)
	require.NoError(t, err)

	users := result.Table("users")
	assert.Equal(t, 9, users.MigratedRecords)
	require.Len(t, users.Errors, 1)
	assert.Equal(t, "k004", users.Errors[0].Key)
	assert.Equal(t, models.RecordStatusError, users.Records[4].Status)
}

func mockSource(t *testing.T, ctrl *gomock.Controller) *storemock.MockStore {
	t.Helper()
	m := storemock.NewMockStore(ctrl)
	m.EXPECT().Kind().Return(models.KindMemory).AnyTimes()
	m.EXPECT().Capabilities().Return(models.DefaultCapabilities(models.KindMemory)).AnyTimes()
	return m
}

func TestTableLevelFailure(t *testing.T) {
	for _, continueOnError := range []bool{true, false} {
		t.Run(fmt.Sprintf("continue=%v", continueOnError), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			src := mockSource(t, ctrl)
			src.EXPECT().ReadAll(gomock.Any(), "users").Return(nil, errors.New("connection lost"))
			if continueOnError {
				src.EXPECT().ReadAll(gomock.Any(), "orders").Return(map[string]models.Document{"o1": {"n": 1}}, nil)
			}

			reg := provider.NewRegistry()
			require.NoError(t, reg.Register("src", src))
			require.NoError(t, reg.Register("dst", memstore.New(0)))

			opts := DefaultOptions()
			opts.ContinueOnError = continueOnError
			result, err := NewMigrator(reg).MigrateData(context.Background(), "src", "dst", []string{"users", "orders"}, opts)
			require.NotNil(t, result)

			users := result.Table("users")
			assert.Equal(t, models.TableStatusFailed, users.Status)
			require.Len(t, users.Errors, 1)
			assert.Contains(t, users.Errors[0].Message, "connection lost")

			if continueOnError {
				require.NoError(t, err)
				assert.Equal(t, models.TableStatusSuccess, result.Table("orders").Status)
				assert.Equal(t, 1, result.Summary.FailedTables)
				assert.Equal(t, 1, result.Summary.SuccessfulTables)
			} else {
				assert.True(t, errors.Is(err, ErrAborted))
				assert.Nil(t, result.Table("orders"))
			}
		})
	}
}

func TestWriteRejectionIsRecordError(t *testing.T) {
	ctrl := gomock.NewController(t)
	dst := mockSource(t, ctrl)
	dst.EXPECT().Create(gomock.Any(), "users", "a", gomock.Any()).Return("a", nil)
	dst.EXPECT().Create(gomock.Any(), "users", "b", gomock.Any()).Return("", store.ErrAlreadyExists)

	src := memstore.New(0)
	seed(t, src, "users", map[string]models.Document{"a": {}, "b": {}})
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register("src", src))
	require.NoError(t, reg.Register("dst", dst))

	result, err := NewMigrator(reg).MigrateData(context.Background(), "src", "dst", []string{"users"}, DefaultOptions())
	require.NoError(t, err)
	users := result.Table("users")
	assert.Equal(t, 1, users.MigratedRecords)
	require.Len(t, users.Errors, 1)
	assert.Contains(t, users.Errors[0].Message, "write failed: document already exists")
}

func TestCancellationStopsAtBatchBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	seed(t, f.src, "users", numbered(5))
	seed(t, f.src, "orders", numbered(1))

	opts := DefaultOptions()
	opts.BatchSize = 2
	opts.OnProgress = func(p models.Progress) {
		if p.Phase == models.PhaseMigration {
			cancel()
		}
	}
	result, err := NewMigrator(f.reg).MigrateData(ctx, "src", "dst", []string{"users", "orders"}, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, ErrAborted))

	users := result.Table("users")
	assert.Equal(t, models.TableStatusFailed, users.Status)
	assert.Equal(t, 2, users.MigratedRecords)
	assert.Nil(t, result.Table("orders"))

	written, _ := f.dst.ReadAll(context.Background(), "users")
	assert.Len(t, written, 2)
}

func TestWorkersKeepRecordOrder(t *testing.T) {
	f := newFixture(t)
	seed(t, f.src, "users", numbered(50))

	opts := DefaultOptions()
	opts.Workers = 4
	opts.BatchSize = 16
	result, err := NewMigrator(f.reg).MigrateData(context.Background(), "src", "dst", []string{"users"}, opts)
	require.NoError(t, err)

	users := result.Table("users")
	assert.Equal(t, 50, users.MigratedRecords)
	for i, rec := range users.Records {
		assert.Equal(t, fmt.Sprintf("k%03d", i), rec.OriginalKey)
	}
}

func TestProgressEvents(t *testing.T) {
	f := newFixture(t)
	seed(t, f.src, "users", numbered(3))

	var events []models.Progress
	opts := DefaultOptions()
	opts.BatchSize = 2
	opts.OnProgress = func(p models.Progress) { events = append(events, p) }
	_, err := NewMigrator(f.reg).MigrateData(context.Background(), "src", "dst", []string{"users", "empty"}, opts)
	require.NoError(t, err)

	var phases []string
	for _, e := range events {
		phases = append(phases, e.Phase)
	}
	assert.Equal(t, []string{
		models.PhaseTable, models.PhaseMigration, models.PhaseMigration, models.PhaseTable,
		models.PhaseTable,
		models.PhaseComplete,
	}, phases)
	assert.Equal(t, 2, events[1].RecordsProcessed)
	assert.InDelta(t, 66.6, events[1].TableProgress, 0.1)
	assert.Equal(t, 100.0, events[2].TableProgress)
	assert.Equal(t, 50.0, events[3].OverallProgress)
	assert.Equal(t, 100.0, events[len(events)-1].OverallProgress)
}

func TestBackupBeforeMigration(t *testing.T) {
	f := newFixture(t)
	seed(t, f.src, "users", numbered(2))
	seed(t, f.dst, "users", map[string]models.Document{"old": {"n": 0}})

	opts := DefaultOptions()
	opts.BackupBeforeMigration = true
	result, err := NewMigrator(f.reg).MigrateData(context.Background(), "src", "dst", []string{"users"}, opts)
	require.NoError(t, err)
	assert.True(t, result.BackupTaken)
	require.NotNil(t, result.Backup)
	assert.Equal(t, "dst", result.Backup.Provider)
	assert.Contains(t, result.Backup.Tables["users"], "old")
	assert.Len(t, result.Backup.Tables["users"], 1)
}

func TestConfigurationErrors(t *testing.T) {
	f := newFixture(t)
	m := NewMigrator(f.reg)
	ctx := context.Background()

	result, err := m.MigrateData(ctx, "src", "src", []string{"users"}, DefaultOptions())
	assert.True(t, errors.Is(err, provider.ErrSameProvider))
	assert.Nil(t, result)

	_, err = m.MigrateData(ctx, "src", "zzz", []string{"users"}, DefaultOptions())
	assert.True(t, errors.Is(err, provider.ErrUnknownProvider))

	_, err = m.MigrateData(ctx, "src", "dst", nil, DefaultOptions())
	assert.True(t, errors.Is(err, ErrNoTables))

	_, err = NewMigrator(provider.NewRegistry()).MigrateData(ctx, "a", "b", []string{"x"}, DefaultOptions())
	assert.True(t, errors.Is(err, provider.ErrNoProviderConfigured))
}

func TestMigrateIntoRelationalStore(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "target.db"))
	require.NoError(t, err)
	sql, err := sqlstore.New(db, sqlstore.DialectSQLite)
	require.NoError(t, err)
	defer sql.Close(ctx)

	src := memstore.New(0)
	seed(t, src, "users", map[string]models.Document{
		"a": {"tags": []interface{}{"x", "y"}, "profile": map[string]interface{}{"city": "Oslo"}, "e-mail": "a@x.io"},
	})
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register("cache", src))
	require.NoError(t, reg.Register("sqlite", sql))

	collector := metrics.New()
	result, err := NewMigrator(reg, WithMetrics(collector)).MigrateData(ctx, "cache", "sqlite", []string{"users"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.MigratedRecords)

	doc, err := sql.Read(ctx, "users", "a")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, `["x","y"]`, doc["tags_array"])
	assert.NotContains(t, doc, "tags")
	assert.Equal(t, "Oslo", doc["profile_city"])
	assert.Equal(t, "a@x.io", doc["e_mail"])

	families, err := collector.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "docshift_records_migrated_total")
	assert.Contains(t, names, "docshift_tables_total")
}

func TestExecuteMigrationPlanRestrictsTables(t *testing.T) {
	f := newFixture(t)
	seed(t, f.src, "users", numbered(1))
	seed(t, f.src, "orders", numbered(1))

	plan := NewPlan("src", "dst", "users", "orders")
	result, err := NewMigrator(f.reg).ExecuteMigrationPlan(context.Background(), plan, []string{"orders"})
	require.NoError(t, err)
	require.Len(t, result.Tables, 1)
	assert.Equal(t, "orders", result.Tables[0].TableName)
	assert.Equal(t, []string{"users", "orders"}, plan.Tables)
}
