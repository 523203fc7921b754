// Package preview inspects source tables before a migration. It only reads
// from the source provider and never writes anywhere.
package preview

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/BartekS5/docshift/internal/provider"
	"github.com/BartekS5/docshift/internal/transform"
	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// DefaultSampleSize is the number of records shown per table.
const DefaultSampleSize = 5

// nullWarnRate is the null rate above which a field is flagged.
const nullWarnRate = 0.5

// TablePreview describes one source table.
type TablePreview struct {
	Table         string          `json:"table"`
	RecordCount   int             `json:"recordCount"`
	SizeBytes     int             `json:"sizeBytes"`
	AvgRecordSize int             `json:"avgRecordSize"`
	Sample        []models.Record `json:"sample"`
	Fields        []*FieldStats   `json:"fields"`
	Warnings      []string        `json:"warnings"`
	Error         string          `json:"error,omitempty"`
}

// Field returns the statistics of a field, or nil.
func (t *TablePreview) Field(name string) *FieldStats {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Summary aggregates every previewed table.
type Summary struct {
	Tables            int           `json:"tables"`
	Records           int           `json:"records"`
	SizeBytes         int           `json:"sizeBytes"`
	Size              string        `json:"size"`
	RecordsPerSecond  float64       `json:"recordsPerSecond"`
	EstimatedDuration time.Duration `json:"estimatedDuration"`
	Estimate          string        `json:"estimate"`
}

// Preview is the read-only analysis of a prospective migration.
type Preview struct {
	FromProvider    string          `json:"fromProvider"`
	ToProvider      string          `json:"toProvider"`
	From            models.Kind     `json:"from"`
	To              models.Kind     `json:"to"`
	GeneratedAt     time.Time       `json:"generatedAt"`
	Chain           []string        `json:"chain"`
	Tables          []*TablePreview `json:"tables"`
	Recommendations []string        `json:"recommendations"`
	Summary         Summary         `json:"summary"`
}

// Table returns the preview of a table, or nil.
func (p *Preview) Table(name string) *TablePreview {
	for _, t := range p.Tables {
		if t.Table == name {
			return t
		}
	}
	return nil
}

// Analyzer builds previews from the provider registry.
type Analyzer struct {
	registry   *provider.Registry
	rand       *rand.Rand
	sampleSize int
	now        func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRand sets the random source used for sampling.
func WithRand(r *rand.Rand) Option {
	return func(a *Analyzer) { a.rand = r }
}

// WithSampleSize sets the number of sampled records per table.
func WithSampleSize(n int) Option {
	return func(a *Analyzer) { a.sampleSize = n }
}

// NewAnalyzer creates an analyzer over r.
func NewAnalyzer(r *provider.Registry, opts ...Option) *Analyzer {
	a := &Analyzer{
		registry:   r,
		rand:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		sampleSize: DefaultSampleSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PreviewMigration analyzes tables of the source provider for a migration
// into the target. Only the source is read; the target contributes its kind.
// Unreadable tables are reported in their preview rather than failing the call.
func (a *Analyzer) PreviewMigration(ctx context.Context, from, to string, tables []string) (*Preview, error) {
	if a.registry.Len() == 0 {
		return nil, provider.ErrNoProviderConfigured
	}
	src, dst, err := a.registry.Pair(from, to)
	if err != nil {
		return nil, err
	}
	chain, err := transform.Recommended(src.Kind(), dst.Kind())
	if err != nil {
		return nil, err
	}

	log := logger.WithFields(logrus.Fields{"component": "preview", "from": src.Name, "to": dst.Name})
	log.Infof("Previewing %d tables", len(tables))

	p := &Preview{
		FromProvider: src.Name,
		ToProvider:   dst.Name,
		From:         src.Kind(),
		To:           dst.Kind(),
		GeneratedAt:  a.now(),
		Chain:        chain.Names(),
	}
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tp, err := a.previewTable(ctx, src, dst.Kind(), table)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithField("table", table).Warnf("Failed to read table: %v", err)
			tp = &TablePreview{Table: table, Error: err.Error(), Warnings: []string{}}
		}
		p.Tables = append(p.Tables, tp)
	}

	p.Recommendations = recommendations(p, src.Store.Capabilities(), dst.Store.Capabilities())
	p.Summary = summarize(p, dst.WriteLimit())
	log.Infof("Preview ready: %d records, %s, estimated %s", p.Summary.Records, p.Summary.Size, p.Summary.Estimate)
	return p, nil
}

func (a *Analyzer) previewTable(ctx context.Context, src *provider.Entry, target models.Kind, table string) (*TablePreview, error) {
	docs, err := src.Store.ReadAll(ctx, table)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]models.Record, 0, len(keys))
	tp := &TablePreview{Table: table, RecordCount: len(keys), Warnings: []string{}}
	for _, k := range keys {
		rec := models.Record{Table: table, ID: k, Document: docs[k]}
		records = append(records, rec)
		tp.SizeBytes += rec.Document.Size()
	}
	if len(records) == 0 {
		tp.Sample = []models.Record{}
		tp.Fields = []*FieldStats{}
		tp.Warnings = append(tp.Warnings, "table is empty and will be skipped")
		return tp, nil
	}
	tp.AvgRecordSize = tp.SizeBytes / len(records)
	tp.Sample = a.sample(records)
	tp.Fields = fieldStats(records)

	for _, f := range tp.Fields {
		if len(f.Types) > 1 {
			tp.Warnings = append(tp.Warnings, fmt.Sprintf("field %q has mixed types: %v", f.Name, f.Types))
		}
		if f.NullRate > nullWarnRate {
			tp.Warnings = append(tp.Warnings, fmt.Sprintf("field %q is null in %.0f%% of records", f.Name, f.NullRate*100))
		}
		if !transform.ValidKey(target, f.Name) {
			tp.Warnings = append(tp.Warnings, fmt.Sprintf("field %q is not a valid %s field name and will be renamed to %q",
				f.Name, target, transform.SanitizeKey(target, f.Name)))
		}
	}
	return tp, nil
}

// sample picks up to sampleSize distinct records, keeping source order.
func (a *Analyzer) sample(records []models.Record) []models.Record {
	n := min(a.sampleSize, len(records))
	if n <= 0 {
		return []models.Record{}
	}
	idx := a.rand.Perm(len(records))[:n]
	sort.Ints(idx)
	out := make([]models.Record, 0, n)
	for _, i := range idx {
		out = append(out, records[i])
	}
	return out
}

func summarize(p *Preview, writeLimit float64) Summary {
	s := Summary{Tables: len(p.Tables)}
	for _, t := range p.Tables {
		s.Records += t.RecordCount
		s.SizeBytes += t.SizeBytes
	}
	s.Size = humanize.Bytes(uint64(s.SizeBytes))

	avg := 0
	if s.Records > 0 {
		avg = s.SizeBytes / s.Records
	}
	s.RecordsPerSecond = recordsPerSecond(p.From, p.To, avg)
	if writeLimit > 0 && writeLimit < s.RecordsPerSecond {
		s.RecordsPerSecond = writeLimit
	}
	s.EstimatedDuration = estimate(s.Records, s.RecordsPerSecond)
	s.Estimate = s.EstimatedDuration.String()
	return s
}
