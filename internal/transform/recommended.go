package transform

import (
	"fmt"
	"sync"

	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
)

type pair struct {
	from, to models.Kind
}

// Builder creates a fresh chain for a (from, to) kind pair.
type Builder func() Chain

// Table maps kind pairs to recommended chains.
type Table struct {
	mu     sync.RWMutex
	chains map[pair]Builder
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{chains: make(map[pair]Builder)}
}

// Register sets the chain for a pair. Both kinds must be valid.
func (t *Table) Register(from, to models.Kind, b Builder) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("invalid kind pair %s -> %s", from, to)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chains[pair{from, to}] = b
	return nil
}

// Recommended returns the chain for a pair. Pairs without an entry fall back
// to sanitizing field names for the target, with a warning.
func (t *Table) Recommended(from, to models.Kind) (Chain, error) {
	if !from.Valid() || !to.Valid() {
		return nil, fmt.Errorf("invalid kind pair %s -> %s", from, to)
	}
	t.mu.RLock()
	b, ok := t.chains[pair{from, to}]
	t.mu.RUnlock()
	if !ok {
		logger.Warnf("No recommended transformation for %s -> %s; sanitizing field names only", from, to)
		return Combine(SanitizeFieldNames{Kind: to}), nil
	}
	return b(), nil
}

var defaultTable = newDefaultTable()

// Recommended returns the built-in chain for moving documents from one kind
// to another.
func Recommended(from, to models.Kind) (Chain, error) {
	return defaultTable.Recommended(from, to)
}

// DefaultTable exposes the built-in table.
func DefaultTable() *Table { return defaultTable }

func newDefaultTable() *Table {
	t := NewTable()
	must := func(from, to models.Kind, b Builder) {
		if err := t.Register(from, to, b); err != nil {
			panic(err)
		}
	}

	toRelational := func(from models.Kind) Builder {
		return func() Chain {
			return Combine(
				StripMetadata{Kind: from},
				ConvertTimestamps{},
				SanitizeFieldNames{Kind: models.KindSQL},
				Flatten{MaxDepth: DefaultMaxDepth},
				SerializeArrays{},
				AddMetadata{},
			)
		}
	}
	fromRelational := func(to models.Kind) Builder {
		return func() Chain {
			return Combine(
				StripMetadata{Kind: models.KindSQL},
				DeserializeArrays{},
				Unflatten{},
				SanitizeFieldNames{Kind: to},
				AddMetadata{},
			)
		}
	}

	must(models.KindMongo, models.KindSQL, toRelational(models.KindMongo))
	must(models.KindMemory, models.KindSQL, toRelational(models.KindMemory))
	must(models.KindSQL, models.KindMongo, fromRelational(models.KindMongo))
	must(models.KindSQL, models.KindMemory, fromRelational(models.KindMemory))

	must(models.KindMongo, models.KindMemory, func() Chain {
		return Combine(StripMetadata{Kind: models.KindMongo}, ConvertTimestamps{}, AddMetadata{})
	})
	must(models.KindMemory, models.KindMongo, func() Chain {
		return Combine(StripMetadata{Kind: models.KindMemory}, SanitizeFieldNames{Kind: models.KindMongo}, AddMetadata{})
	})

	for _, k := range models.Kinds {
		kind := k
		must(kind, kind, func() Chain {
			return Combine(StripMetadata{Kind: kind}, AddMetadata{})
		})
	}
	return t
}
