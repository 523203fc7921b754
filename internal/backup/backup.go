// Package backup snapshots provider tables, restores snapshots and undoes
// migrations by deleting the records they created.
package backup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"github.com/sirupsen/logrus"
)

// Take snapshots the full contents of tables in st.
func Take(ctx context.Context, st store.Store, provider string, tables []string) (*models.Backup, error) {
	b := &models.Backup{
		Timestamp: time.Now().UTC(),
		Provider:  provider,
		Tables:    make(map[string]map[string]models.Document, len(tables)),
	}
	for _, table := range tables {
		docs, err := st.ReadAll(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("backup of %s/%s failed: %w", provider, table, err)
		}
		snapshot := make(map[string]models.Document, len(docs))
		for id, doc := range docs {
			snapshot[id] = doc.Clone()
		}
		b.Tables[table] = snapshot
	}
	logger.WithFields(logrus.Fields{"component": "backup", "provider": provider}).
		Infof("Backed up %d records from %d tables", b.RecordCount(), len(tables))
	return b, nil
}

// TableStats counts restored records of one table.
type TableStats struct {
	Restored int      `json:"restored"`
	Total    int      `json:"total"`
	Errors   []string `json:"errors,omitempty"`
}

// RestoreResult summarizes a restore.
type RestoreResult struct {
	Tables   map[string]*TableStats `json:"tables"`
	Restored int                    `json:"restored"`
	Total    int                    `json:"total"`
}

// Restore writes every record of b back into st under its original id.
// With overwrite each table is cleared first. Record failures are counted
// and do not stop the restore.
func Restore(ctx context.Context, st store.Store, b *models.Backup, overwrite bool) (*RestoreResult, error) {
	log := logger.WithFields(logrus.Fields{"component": "backup", "provider": b.Provider})
	res := &RestoreResult{Tables: make(map[string]*TableStats, len(b.Tables))}

	for _, table := range sortedTables(b) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		docs := b.Tables[table]
		stats := &TableStats{Total: len(docs)}
		res.Tables[table] = stats
		res.Total += len(docs)

		if overwrite {
			if _, err := st.DeleteAll(ctx, table); err != nil {
				return res, fmt.Errorf("failed to clear %s before restore: %w", table, err)
			}
		}

		ids := make([]string, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if _, err := st.Create(ctx, table, id, docs[id]); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", id, err))
				continue
			}
			stats.Restored++
		}
		res.Restored += stats.Restored
		log.WithField("table", table).Infof("Restored %d/%d records", stats.Restored, stats.Total)
	}
	return res, nil
}

// RollbackOptions selects what Rollback undoes.
type RollbackOptions struct {
	// DeleteMigrated removes every record the migration created.
	DeleteMigrated bool
	// Restore re-creates the pre-migration snapshot carried by the result.
	Restore bool
}

// RollbackResult summarizes a rollback.
type RollbackResult struct {
	Deleted  int            `json:"deleted"`
	Failed   int            `json:"failed"`
	Errors   []string       `json:"errors,omitempty"`
	Restored *RestoreResult `json:"restored,omitempty"`
}

// Rollback undoes a finished migration on its target by deleting the newKey
// of every successfully migrated record.
func Rollback(ctx context.Context, target store.Store, result *models.MigrationResult, opts RollbackOptions) (*RollbackResult, error) {
	if result.DryRun {
		return &RollbackResult{}, nil
	}
	log := logger.WithFields(logrus.Fields{"component": "rollback", "provider": result.ToProvider})
	out := &RollbackResult{}

	if opts.DeleteMigrated {
		for _, table := range result.Tables {
			for _, rec := range table.Records {
				if rec.Status != models.RecordStatusSuccess || rec.NewKey == "" {
					continue
				}
				ok, err := target.Delete(ctx, table.TableName, rec.NewKey)
				switch {
				case err != nil:
					out.Failed++
					out.Errors = append(out.Errors, fmt.Sprintf("%s/%s: %v", table.TableName, rec.NewKey, err))
				case ok:
					out.Deleted++
				}
			}
		}
		log.Infof("Rollback deleted %d records (%d failures)", out.Deleted, out.Failed)
	}

	if opts.Restore {
		if result.Backup == nil {
			return out, fmt.Errorf("migration result carries no backup to restore")
		}
		restored, err := Restore(ctx, target, result.Backup, true)
		out.Restored = restored
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func sortedTables(b *models.Backup) []string {
	tables := make([]string, 0, len(b.Tables))
	for t := range b.Tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}
