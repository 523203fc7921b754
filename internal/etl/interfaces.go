package etl

import (
	"context"
	"sort"

	"github.com/BartekS5/docshift/internal/provider"
	"github.com/BartekS5/docshift/pkg/models"
)

// Extractor reads every record of a table from the source provider.
type Extractor interface {
	Extract(ctx context.Context, table string) ([]models.Record, error)
}

// Loader writes one transformed record to the target provider and returns
// the key it was stored under.
type Loader interface {
	Load(ctx context.Context, rec models.Record) (string, error)
}

// storeExtractor reads a table and orders it by key so batches are stable.
type storeExtractor struct {
	entry *provider.Entry
}

func (e storeExtractor) Extract(ctx context.Context, table string) ([]models.Record, error) {
	docs, err := e.entry.Store.ReadAll(ctx, table)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]models.Record, len(keys))
	for i, k := range keys {
		records[i] = models.Record{Table: table, ID: k, Document: docs[k]}
	}
	return records, nil
}

// storeLoader creates records under their source key, throttled by the
// target's write limit.
type storeLoader struct {
	entry *provider.Entry
}

func (l storeLoader) Load(ctx context.Context, rec models.Record) (string, error) {
	if err := l.entry.WaitWrite(ctx); err != nil {
		return "", err
	}
	return l.entry.Store.Create(ctx, rec.Table, rec.ID, rec.Document)
}

// dryRunLoader reports the key a record would be stored under.
type dryRunLoader struct{}

func (dryRunLoader) Load(_ context.Context, rec models.Record) (string, error) {
	return rec.ID, nil
}
