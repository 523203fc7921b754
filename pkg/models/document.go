// Package models holds the data model shared by the migration engine:
// documents, providers, plans, results, backups and consistency reports.
package models

import "encoding/json"

// Document is an opaque JSON object stored under (table, id).
// The engine never inspects its content outside of transformations.
type Document map[string]interface{}

// Record addresses a document inside a provider.
type Record struct {
	Table    string   `json:"table"`
	ID       string   `json:"id"`
	Document Document `json:"document"`
}

// Clone returns a deep copy of the document. Nested maps and slices are
// copied so transformations can mutate the result freely.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Document:
		return val.Clone()
	case map[string]interface{}:
		return Document(val).Clone()
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// Size returns the length of the document's JSON encoding.
// Documents that cannot be encoded report zero.
func (d Document) Size() int {
	b, err := json.Marshal(d)
	if err != nil {
		return 0
	}
	return len(b)
}

// AsDocument converts generic map values (as produced by decoders) into a Document.
func AsDocument(v interface{}) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]interface{}:
		return Document(m), true
	default:
		return nil, false
	}
}
