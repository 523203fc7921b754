// Package metrics exposes Prometheus collectors for migration runs.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docshift"

// Collector groups the migration metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	migrated *prometheus.CounterVec
	failed   *prometheus.CounterVec
	tables   *prometheus.CounterVec
	duration prometheus.Histogram
}

// New creates a collector with a private registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		migrated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_migrated_total",
			Help:      "Records written to the target provider.",
		}, []string{"table"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_failed_total",
			Help:      "Records that failed to transform or write.",
		}, []string{"table"}),
		tables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_total",
			Help:      "Finished tables by status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "table_duration_seconds",
			Help:      "Wall-clock time spent per table.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	c.registry.MustRegister(c.migrated, c.failed, c.tables, c.duration)
	return c
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordMigrated counts n successful records of table.
func (c *Collector) RecordMigrated(table string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.migrated.WithLabelValues(table).Add(float64(n))
}

// RecordFailed counts n failed records of table.
func (c *Collector) RecordFailed(table string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.failed.WithLabelValues(table).Add(float64(n))
}

// TableFinished counts a finished table and observes its duration.
func (c *Collector) TableFinished(status models.TableStatus, d time.Duration) {
	if c == nil {
		return
	}
	c.tables.WithLabelValues(string(status)).Inc()
	c.duration.Observe(d.Seconds())
}

// WriteTextfile dumps the current values in the text exposition format,
// suitable for the node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
