// Package transform implements per-record document transformations and the
// recommended chains used when moving documents between backend kinds.
package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/BartekS5/docshift/pkg/models"
)

// Context describes the record being transformed.
type Context struct {
	Table        string
	OriginalKey  string
	FromProvider string
	ToProvider   string
	From         models.Kind
	To           models.Kind
	// Now stamps migratedAt; zero means time.Now.
	Now time.Time
}

func (c Context) now() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

// Transform rewrites one document. Implementations must not mutate doc;
// Chain hands every stage a private copy.
type Transform interface {
	Name() string
	Apply(doc models.Document, tc Context) (models.Document, error)
}

type funcTransform struct {
	name string
	fn   func(models.Document, Context) (models.Document, error)
}

func (f funcTransform) Name() string { return f.name }

func (f funcTransform) Apply(doc models.Document, tc Context) (models.Document, error) {
	return f.fn(doc, tc)
}

// FuncOf adapts a function into a named Transform.
func FuncOf(name string, fn func(models.Document, Context) (models.Document, error)) Transform {
	return funcTransform{name: name, fn: fn}
}

// Chain runs transforms strictly left to right.
type Chain []Transform

// Combine composes transforms into a chain. Nested chains are inlined.
func Combine(ts ...Transform) Chain {
	var out Chain
	for _, t := range ts {
		if t == nil {
			continue
		}
		if c, ok := t.(Chain); ok {
			out = append(out, c...)
			continue
		}
		out = append(out, t)
	}
	return out
}

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name()
	}
	return strings.Join(names, " -> ")
}

// Names lists the stage names.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name()
	}
	return names
}

// Apply threads a copy of doc through every stage and stops at the first error.
func (c Chain) Apply(doc models.Document, tc Context) (models.Document, error) {
	out := doc.Clone()
	if out == nil {
		out = models.Document{}
	}
	for _, t := range c {
		next, err := t.Apply(out, tc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name(), err)
		}
		out = next
	}
	return out, nil
}
