package preview

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/BartekS5/docshift/internal/transform"
	"github.com/BartekS5/docshift/pkg/models"
)

const maxExamples = 3

// FieldStats summarizes one top-level field over every record of a table.
type FieldStats struct {
	Name         string        `json:"name"`
	Present      int           `json:"present"`
	Nulls        int           `json:"nulls"`
	PresenceRate float64       `json:"presenceRate"`
	NullRate     float64       `json:"nullRate"`
	Types        []string      `json:"types"`
	MaxLength    int           `json:"maxLength,omitempty"`
	Examples     []interface{} `json:"examples,omitempty"`

	types map[string]bool
	seen  map[string]bool
}

// HasType reports whether a non-null value of type t was observed.
func (f *FieldStats) HasType(t string) bool {
	for _, have := range f.Types {
		if have == t {
			return true
		}
	}
	return false
}

// AlwaysSet reports whether the field is present and non-null in all records.
func (f *FieldStats) AlwaysSet(records int) bool {
	return records > 0 && f.Present == records && f.Nulls == 0
}

func (f *FieldStats) observe(v interface{}) {
	f.Present++
	if v == nil {
		f.Nulls++
		return
	}
	f.types[transform.TypeOf(v)] = true
	if s, ok := v.(string); ok {
		f.MaxLength = max(f.MaxLength, utf8.RuneCountInString(s))
	}
	if len(f.Examples) < maxExamples {
		key := fmt.Sprintf("%v", v)
		if !f.seen[key] {
			f.seen[key] = true
			f.Examples = append(f.Examples, v)
		}
	}
}

// fieldStats computes statistics for every top-level field, sorted by name.
// NullRate is relative to the records carrying the field.
func fieldStats(records []models.Record) []*FieldStats {
	byName := make(map[string]*FieldStats)
	for _, rec := range records {
		for name, v := range rec.Document {
			fs, ok := byName[name]
			if !ok {
				fs = &FieldStats{Name: name, types: map[string]bool{}, seen: map[string]bool{}}
				byName[name] = fs
			}
			fs.observe(v)
		}
	}

	out := make([]*FieldStats, 0, len(byName))
	for _, fs := range byName {
		fs.PresenceRate = float64(fs.Present) / float64(len(records))
		fs.NullRate = float64(fs.Nulls) / float64(fs.Present)
		fs.Types = make([]string, 0, len(fs.types))
		for t := range fs.types {
			fs.Types = append(fs.Types, t)
		}
		sort.Strings(fs.Types)
		out = append(out, fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
