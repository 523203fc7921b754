package etl

import (
	"errors"
	"fmt"

	"github.com/BartekS5/docshift/internal/provider"
)

// ErrNoTables is returned for plans without tables.
var ErrNoTables = errors.New("no tables to migrate")

// ValidatePlan checks a plan against the registry. Failures are
// configuration errors raised before any I/O.
func ValidatePlan(r *provider.Registry, p *Plan) (*provider.Entry, *provider.Entry, error) {
	if r.Len() == 0 {
		return nil, nil, provider.ErrNoProviderConfigured
	}
	src, dst, err := r.Pair(p.FromProvider, p.ToProvider)
	if err != nil {
		return nil, nil, err
	}
	if len(p.Tables) == 0 {
		return nil, nil, ErrNoTables
	}
	seen := make(map[string]bool, len(p.Tables))
	for _, t := range p.Tables {
		if t == "" {
			return nil, nil, errors.New("table name must not be empty")
		}
		if seen[t] {
			return nil, nil, fmt.Errorf("table %q listed twice", t)
		}
		seen[t] = true
	}
	if p.BatchSize < 0 {
		return nil, nil, fmt.Errorf("batch size must not be negative, got %d", p.BatchSize)
	}
	return src, dst, nil
}
