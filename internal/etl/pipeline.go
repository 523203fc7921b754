package etl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BartekS5/docshift/internal/backup"
	"github.com/BartekS5/docshift/internal/metrics"
	"github.com/BartekS5/docshift/internal/provider"
	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrAborted is returned together with a result when a migration stopped
// before processing every table.
var ErrAborted = errors.New("migration aborted")

// Migrator executes plans against a provider registry. It resolves source
// and target stores per plan and never changes any Session.
type Migrator struct {
	registry *provider.Registry
	metrics  *metrics.Collector
	now      func() time.Time
}

// MigratorOption configures a Migrator.
type MigratorOption func(*Migrator)

// WithMetrics records per-table and per-record metrics.
func WithMetrics(c *metrics.Collector) MigratorOption {
	return func(m *Migrator) { m.metrics = c }
}

// NewMigrator creates a migrator over r.
func NewMigrator(r *provider.Registry, opts ...MigratorOption) *Migrator {
	m := &Migrator{registry: r, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MigrateData moves tables from one provider to another.
func (m *Migrator) MigrateData(ctx context.Context, from, to string, tables []string, opts Options) (*models.MigrationResult, error) {
	return m.Execute(ctx, opts.plan(from, to, tables))
}

// ExecuteMigrationPlan runs p restricted to tables, or all plan tables when
// tables is empty.
func (m *Migrator) ExecuteMigrationPlan(ctx context.Context, p *Plan, tables []string) (*models.MigrationResult, error) {
	if len(tables) > 0 {
		cp := *p
		cp.Tables = tables
		p = &cp
	}
	return m.Execute(ctx, p)
}

type run struct {
	plan        *Plan
	src, dst    *provider.Entry
	extractor   Extractor
	loader      Loader
	transformer *Transformer
	result      *models.MigrationResult
	metrics     *metrics.Collector
	log         *logrus.Entry
}

// Execute runs a plan. Configuration errors are returned without a result.
// Otherwise a result is always returned; when the run stopped early the error
// wraps ErrAborted and the cause.
func (m *Migrator) Execute(ctx context.Context, p *Plan) (*models.MigrationResult, error) {
	src, dst, err := ValidatePlan(m.registry, p)
	if err != nil {
		return nil, err
	}
	transformer, err := NewTransformer(p, src, dst)
	if err != nil {
		return nil, err
	}

	r := &run{
		plan:        p,
		src:         src,
		dst:         dst,
		extractor:   storeExtractor{entry: src},
		loader:      storeLoader{entry: dst},
		transformer: transformer,
		metrics:     m.metrics,
		log: logger.WithFields(logrus.Fields{
			"component": "orchestrator",
			"from":      src.Name,
			"to":        dst.Name,
		}),
		result: &models.MigrationResult{
			FromProvider: src.Name,
			ToProvider:   dst.Name,
			DryRun:       p.DryRun,
			StartedAt:    m.now(),
		},
	}
	if p.DryRun {
		r.loader = dryRunLoader{}
	}

	r.log.Infof("Starting migration of %d tables. Batch Size: %d, DryRun: %v, Workers: %d",
		len(p.Tables), p.batchSize(), p.DryRun, p.workers())

	abortErr := r.backup(ctx)
	if abortErr == nil {
		for i, table := range p.Tables {
			if err := ctx.Err(); err != nil {
				abortErr = cancelled(err)
				break
			}
			tr, err := r.migrateTable(ctx, i, table)
			r.result.Tables = append(r.result.Tables, tr)
			if err != nil {
				abortErr = err
				break
			}
		}
	}

	result := r.result
	if abortErr != nil {
		result.Aborted = true
		result.Summary.Errors = append(result.Summary.Errors, abortErr.Error())
		if rest := p.Tables[len(result.Tables):]; len(rest) > 0 {
			result.Summary.Errors = append(result.Summary.Errors, "tables not started: "+strings.Join(rest, ", "))
		}
	}
	result.Finalize(m.now())

	r.progress(models.Progress{
		Phase:           models.PhaseComplete,
		TableIndex:      len(result.Tables),
		TotalTables:     len(p.Tables),
		OverallProgress: percent(len(result.Tables), len(p.Tables)),
	})

	s := result.Summary
	if abortErr != nil {
		r.log.Errorf("Migration aborted after %d/%d tables: %v", len(result.Tables), len(p.Tables), abortErr)
		return result, abortErr
	}
	r.log.Infof("Migration finished. Tables: %d ok, %d failed. Records: %d/%d in %dms",
		s.SuccessfulTables, s.FailedTables, s.MigratedRecords, s.TotalRecords, result.DurationMs)
	return result, nil
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrAborted, err)
}

func percent(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(done) / float64(total) * 100
}

func (r *run) progress(p models.Progress) {
	if r.plan.OnProgress != nil {
		r.plan.OnProgress(p)
	}
}

func (r *run) backup(ctx context.Context) error {
	if !r.plan.BackupBeforeMigration || r.plan.DryRun {
		return nil
	}
	b, err := backup.Take(ctx, r.dst.Store, r.dst.Name, r.plan.Tables)
	if err != nil {
		return fmt.Errorf("%w: backup before migration failed: %v", ErrAborted, err)
	}
	r.result.Backup = b
	r.result.BackupTaken = true
	return nil
}

func (r *run) finish(tr *models.TableResult, start time.Time) {
	d := time.Since(start)
	tr.DurationMs = d.Milliseconds()
	r.metrics.TableFinished(tr.Status, d)
	r.log.WithField("table", tr.TableName).Infof("Table finished: %s (%d/%d records)",
		tr.Status, tr.MigratedRecords, tr.TotalRecords)
}

// fail marks a table-level failure. It aborts the run unless ContinueOnError.
func (r *run) fail(tr *models.TableResult, start time.Time, err error) (*models.TableResult, error) {
	tr.Status = models.TableStatusFailed
	tr.Errors = append(tr.Errors, models.TableError{Message: err.Error()})
	r.finish(tr, start)
	if !r.plan.ContinueOnError {
		return tr, fmt.Errorf("%w: table %s failed: %v", ErrAborted, tr.TableName, err)
	}
	return tr, nil
}

func (r *run) migrateTable(ctx context.Context, index int, table string) (*models.TableResult, error) {
	start := time.Now()
	total := len(r.plan.Tables)
	tr := &models.TableResult{
		TableName: table,
		Status:    models.TableStatusPending,
		Errors:    []models.TableError{},
		Records:   []models.RecordOutcome{},
	}
	r.progress(models.Progress{
		Phase:           models.PhaseTable,
		CurrentTable:    table,
		TableIndex:      index,
		TotalTables:     total,
		OverallProgress: percent(index, total),
	})

	tr.Status = models.TableStatusInProgress
	records, err := r.extractor.Extract(ctx, table)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			tr.Status = models.TableStatusFailed
			tr.Errors = append(tr.Errors, models.TableError{Message: err.Error()})
			r.finish(tr, start)
			return tr, cancelled(ctxErr)
		}
		return r.fail(tr, start, fmt.Errorf("reading source table: %w", err))
	}
	tr.TotalRecords = len(records)
	if len(records) == 0 {
		tr.Status = models.TableStatusSkipped
		r.finish(tr, start)
		return tr, nil
	}

	size := r.plan.batchSize()
	processed := 0
	for lo := 0; lo < len(records); lo += size {
		if lo > 0 {
			if err := ctx.Err(); err != nil {
				tr.Status = models.TableStatusFailed
				tr.Errors = append(tr.Errors, models.TableError{
					Message: fmt.Sprintf("cancelled after %d/%d records: %v", processed, len(records), err),
				})
				r.finish(tr, start)
				return tr, cancelled(err)
			}
		}

		hi := min(lo+size, len(records))
		outcomes, stop := r.processBatch(ctx, records[lo:hi])

		ok, failed := 0, 0
		var firstErr *models.RecordOutcome
		for i := range outcomes {
			o := outcomes[i]
			tr.Records = append(tr.Records, o)
			if o.Status == models.RecordStatusSuccess {
				ok++
				continue
			}
			failed++
			tr.Errors = append(tr.Errors, models.TableError{Key: o.OriginalKey, Message: o.Error})
			if firstErr == nil {
				firstErr = &outcomes[i]
			}
		}
		tr.MigratedRecords += ok
		processed += len(outcomes)
		r.metrics.RecordMigrated(table, ok)
		r.metrics.RecordFailed(table, failed)

		r.progress(models.Progress{
			Phase:               models.PhaseMigration,
			CurrentTable:        table,
			TableIndex:          index,
			TotalTables:         total,
			TableProgress:       percent(processed, len(records)),
			RecordsProcessed:    processed,
			TotalRecordsInTable: len(records),
		})

		elapsed := time.Since(start)
		rate := 0.0
		if elapsed.Seconds() > 0 {
			rate = float64(processed) / elapsed.Seconds()
		}
		r.log.WithField("table", table).Debugf("Batch done. Total: %d/%d. Errors: %d. Rate: %.2f docs/sec",
			processed, len(records), len(tr.Errors), rate)

		if stop {
			tr.Status = models.TableStatusPartialSuccess
			r.finish(tr, start)
			return tr, fmt.Errorf("%w: %s/%s: %s", ErrAborted, table, firstErr.OriginalKey, firstErr.Error)
		}
	}

	switch {
	case len(tr.Errors) > 0:
		tr.Status = models.TableStatusPartialSuccess
	case r.plan.DryRun:
		tr.Status = models.TableStatusDryRunSuccess
	default:
		tr.Status = models.TableStatusSuccess
	}
	r.finish(tr, start)
	r.progress(models.Progress{
		Phase:           models.PhaseTable,
		CurrentTable:    table,
		TableIndex:      index,
		TotalTables:     total,
		OverallProgress: percent(index+1, total),
	})
	return tr, nil
}

// processBatch transforms and loads a batch. Cancellation is only observed
// between batches, so writes inside a batch run on a context that ignores it.
// stop reports that a record failed and the plan does not continue on error.
func (r *run) processBatch(ctx context.Context, batch []models.Record) ([]models.RecordOutcome, bool) {
	wctx := context.WithoutCancel(ctx)

	if r.plan.workers() == 1 {
		out := make([]models.RecordOutcome, 0, len(batch))
		for _, rec := range batch {
			o := r.processRecord(wctx, rec)
			out = append(out, o)
			if o.Status == models.RecordStatusError && !r.plan.ContinueOnError {
				return out, true
			}
		}
		return out, false
	}

	out := make([]models.RecordOutcome, len(batch))
	var g errgroup.Group
	g.SetLimit(r.plan.workers())
	for i, rec := range batch {
		g.Go(func() error {
			out[i] = r.processRecord(wctx, rec)
			return nil
		})
	}
	_ = g.Wait()
	return out, false
}

func (r *run) processRecord(ctx context.Context, rec models.Record) models.RecordOutcome {
	transformed, err := r.transformer.Transform(rec)
	if err != nil {
		return models.RecordOutcome{OriginalKey: rec.ID, Status: models.RecordStatusError, Error: err.Error()}
	}
	newKey, err := r.loader.Load(ctx, transformed)
	if err != nil {
		return models.RecordOutcome{
			OriginalKey: rec.ID,
			Status:      models.RecordStatusError,
			Error:       fmt.Sprintf("write failed: %v", err),
		}
	}
	return models.RecordOutcome{OriginalKey: rec.ID, NewKey: newKey, Status: models.RecordStatusSuccess}
}
