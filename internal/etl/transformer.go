package etl

import (
	"fmt"

	"github.com/BartekS5/docshift/internal/provider"
	"github.com/BartekS5/docshift/internal/transform"
	"github.com/BartekS5/docshift/pkg/models"
)

// Transformer applies a plan's per-table chain to source records.
type Transformer struct {
	src, dst *provider.Entry
	base     transform.Transform
	tables   map[string]transform.Chain
}

// NewTransformer resolves the chain of every table in the plan.
func NewTransformer(p *Plan, src, dst *provider.Entry) (*Transformer, error) {
	base := p.Transform
	if base == nil {
		chain, err := transform.Recommended(src.Kind(), dst.Kind())
		if err != nil {
			return nil, err
		}
		base = chain
	}

	t := &Transformer{src: src, dst: dst, base: base, tables: make(map[string]transform.Chain)}
	for _, table := range p.Tables {
		schema, ok := p.Schemas[table]
		if !ok || len(schema) == 0 {
			t.tables[table] = transform.Combine(base)
			continue
		}
		validate, err := transform.NewValidateSchema(schema)
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", table, err)
		}
		t.tables[table] = transform.Combine(validate, base)
	}
	return t, nil
}

// Chain returns the chain applied to table.
func (t *Transformer) Chain(table string) transform.Chain {
	if c, ok := t.tables[table]; ok {
		return c
	}
	return transform.Combine(t.base)
}

// Transform applies the table's chain to one record.
func (t *Transformer) Transform(rec models.Record) (models.Record, error) {
	tc := transform.Context{
		Table:        rec.Table,
		OriginalKey:  rec.ID,
		FromProvider: t.src.Name,
		ToProvider:   t.dst.Name,
		From:         t.src.Kind(),
		To:           t.dst.Kind(),
	}
	doc, err := t.Chain(rec.Table).Apply(rec.Document, tc)
	if err != nil {
		return models.Record{}, err
	}
	return models.Record{Table: rec.Table, ID: rec.ID, Document: doc}, nil
}
