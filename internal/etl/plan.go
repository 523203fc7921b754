// Package etl runs migrations between providers: it reads every table from
// the source, transforms records in batches and writes them to the target.
package etl

import (
	"github.com/BartekS5/docshift/internal/transform"
	"github.com/BartekS5/docshift/pkg/models"
)

// DefaultBatchSize is used when a plan leaves BatchSize at zero.
const DefaultBatchSize = 100

// Plan describes one migration attempt. It must not be modified once
// execution starts.
type Plan struct {
	FromProvider          string   `json:"fromProvider"`
	ToProvider            string   `json:"toProvider"`
	Tables                []string `json:"tables"`
	BatchSize             int      `json:"batchSize"`
	DryRun                bool     `json:"dryRun"`
	ContinueOnError       bool     `json:"continueOnError"`
	BackupBeforeMigration bool     `json:"backupBeforeMigration"`
	// Workers bounds parallel records inside a batch. Values above 1 only
	// apply when ContinueOnError is set.
	Workers int `json:"workers"`

	// Transform runs on every record. Nil selects the recommended chain
	// for the provider kinds.
	Transform transform.Transform `json:"-"`
	// Schemas holds per-table validation rules applied before Transform.
	Schemas map[string]models.Schema `json:"schemas,omitempty"`
	// OnProgress receives progress events; it may be nil.
	OnProgress models.ProgressFunc `json:"-"`
}

// NewPlan returns a plan with the default batch size and error policy.
func NewPlan(from, to string, tables ...string) *Plan {
	return &Plan{
		FromProvider:    from,
		ToProvider:      to,
		Tables:          tables,
		BatchSize:       DefaultBatchSize,
		ContinueOnError: true,
		Workers:         1,
	}
}

// Options mirrors the migrateData invocation options.
type Options struct {
	BatchSize             int
	DryRun                bool
	Transform             transform.Transform
	Schemas               map[string]models.Schema
	OnProgress            models.ProgressFunc
	ContinueOnError       bool
	BackupBeforeMigration bool
	Workers               int
}

// DefaultOptions returns options matching NewPlan.
func DefaultOptions() Options {
	return Options{BatchSize: DefaultBatchSize, ContinueOnError: true, Workers: 1}
}

func (o Options) plan(from, to string, tables []string) *Plan {
	return &Plan{
		FromProvider:          from,
		ToProvider:            to,
		Tables:                tables,
		BatchSize:             o.BatchSize,
		DryRun:                o.DryRun,
		ContinueOnError:       o.ContinueOnError,
		BackupBeforeMigration: o.BackupBeforeMigration,
		Workers:               o.Workers,
		Transform:             o.Transform,
		Schemas:               o.Schemas,
		OnProgress:            o.OnProgress,
	}
}

func (p *Plan) batchSize() int {
	if p.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return p.BatchSize
}

func (p *Plan) workers() int {
	if !p.ContinueOnError || p.Workers < 1 {
		return 1
	}
	return p.Workers
}
