// Package verify checks migrated data and provider connectivity.
package verify

import (
	"context"
	"fmt"
	"sort"

	"github.com/BartekS5/docshift/internal/provider"
	"github.com/BartekS5/docshift/internal/transform"
	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

// MaxMismatches caps the sample mismatches kept per table.
const MaxMismatches = 10

// Options tunes a comparison.
type Options struct {
	// Ignore lists extra fields dropped from both sides.
	Ignore []string
	// Normalize runs on both sides after metadata is stripped, e.g. to
	// decode serialized arrays before comparing against a document store.
	Normalize transform.Transform
}

// StructuralNormalizer undoes the encodings used for backends without
// native arrays or nested objects.
func StructuralNormalizer() transform.Transform {
	return transform.Combine(transform.DeserializeArrays{}, transform.Unflatten{})
}

// Side is one half of a comparison.
type Side struct {
	Name  string
	Store store.Store
}

// CompareProviders compares tables of two registered providers.
func CompareProviders(ctx context.Context, r *provider.Registry, p1, p2 string, tables []string, opts Options) (*models.ConsistencyReport, error) {
	e1, err := r.Get(p1)
	if err != nil {
		return nil, err
	}
	e2, err := r.Get(p2)
	if err != nil {
		return nil, err
	}
	return Compare(ctx, Side{Name: e1.Name, Store: e1.Store}, Side{Name: e2.Name, Store: e2.Store}, tables, opts)
}

// Compare reads every table from both sides, strips engine metadata and
// compares the remaining documents key by key. A table that cannot be read
// is reported inconsistent with its error; cancellation aborts the call.
func Compare(ctx context.Context, s1, s2 Side, tables []string, opts Options) (*models.ConsistencyReport, error) {
	log := logger.WithFields(logrus.Fields{"component": "verify", "provider1": s1.Name, "provider2": s2.Name})
	report := &models.ConsistencyReport{Provider1: s1.Name, Provider2: s2.Name, Consistent: true}

	c := &comparer{
		opts:   opts,
		ignore: ignored(opts.Ignore, s1.Store.Kind(), s2.Store.Kind()),
	}
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tc, err := c.table(ctx, s1, s2, table)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithField("table", table).Errorf("Comparison failed: %v", err)
			tc = &models.TableConsistency{Table: table, Error: err.Error(), OnlyIn1: []string{}, OnlyIn2: []string{}, Mismatches: []models.Mismatch{}}
		}
		report.Tables = append(report.Tables, tc)
		report.Consistent = report.Consistent && tc.Consistency
		log.WithField("table", table).Infof("Compared: %d common, %d only in %s, %d only in %s, %d differences",
			tc.Common, len(tc.OnlyIn1), s1.Name, len(tc.OnlyIn2), s2.Name, tc.ContentDifferences)
	}
	return report, nil
}

func ignored(extra []string, kinds ...models.Kind) map[string]bool {
	set := map[string]bool{
		transform.FieldMigratedFrom: true,
		transform.FieldMigratedAt:   true,
	}
	for _, k := range kinds {
		for _, f := range transform.Bookkeeping(k) {
			set[f] = true
		}
	}
	for _, f := range extra {
		set[f] = true
	}
	return set
}

type comparer struct {
	opts   Options
	ignore map[string]bool
}

func (c *comparer) table(ctx context.Context, s1, s2 Side, table string) (*models.TableConsistency, error) {
	docs1, err := s1.Store.ReadAll(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("reading %s from %s: %w", table, s1.Name, err)
	}
	docs2, err := s2.Store.ReadAll(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("reading %s from %s: %w", table, s2.Name, err)
	}

	tc := &models.TableConsistency{
		Table:      table,
		Total1:     len(docs1),
		Total2:     len(docs2),
		OnlyIn1:    []string{},
		OnlyIn2:    []string{},
		Mismatches: []models.Mismatch{},
	}
	for _, key := range sortedKeys(docs1) {
		d2, ok := docs2[key]
		if !ok {
			tc.OnlyIn1 = append(tc.OnlyIn1, key)
			continue
		}
		tc.Common++
		a, err := c.normalize(docs1[key], table, key)
		if err != nil {
			return nil, err
		}
		b, err := c.normalize(d2, table, key)
		if err != nil {
			return nil, err
		}
		if cmp.Equal(a, b) {
			continue
		}
		tc.ContentDifferences++
		if len(tc.Mismatches) < MaxMismatches {
			tc.Mismatches = append(tc.Mismatches, models.Mismatch{Key: key, Diff: cmp.Diff(a, b)})
		}
	}
	for _, key := range sortedKeys(docs2) {
		if _, ok := docs1[key]; !ok {
			tc.OnlyIn2 = append(tc.OnlyIn2, key)
		}
	}
	tc.Consistency = len(tc.OnlyIn1) == 0 && len(tc.OnlyIn2) == 0 && tc.ContentDifferences == 0
	return tc, nil
}

// normalize strips ignored fields and reduces the document to its JSON
// form so backend-specific number and map types compare equal.
func (c *comparer) normalize(doc models.Document, table, key string) (interface{}, error) {
	doc = doc.Clone()
	for f := range c.ignore {
		delete(doc, f)
	}
	if c.opts.Normalize != nil {
		var err error
		doc, err = c.opts.Normalize.Apply(doc, transform.Context{Table: table, OriginalKey: key})
		if err != nil {
			return nil, fmt.Errorf("normalizing %s/%s: %w", table, key, err)
		}
	}
	return store.Normalize(doc), nil
}

func sortedKeys(docs map[string]models.Document) []string {
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
