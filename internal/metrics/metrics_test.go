package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := New()
	c.RecordMigrated("users", 3)
	c.RecordMigrated("users", 2)
	c.RecordFailed("users", 1)
	c.RecordFailed("users", 0)
	c.TableFinished(models.TableStatusPartialSuccess, 50*time.Millisecond)

	assert.Equal(t, 5.0, testutil.ToFloat64(c.migrated.WithLabelValues("users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failed.WithLabelValues("users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tables.WithLabelValues("partial-success")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.RecordMigrated("users", 1)
	c.RecordFailed("users", 1)
	c.TableFinished(models.TableStatusSuccess, time.Second)
	assert.Nil(t, c.Registry())
	assert.NoError(t, c.WriteTextfile("ignored"))
}

func TestWriteTextfile(t *testing.T) {
	c := New()
	c.RecordMigrated("orders", 7)

	path := filepath.Join(t.TempDir(), "docshift.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `docshift_records_migrated_total{table="orders"} 7`)
}
