package store

import (
	"encoding/json"
	"reflect"

	"github.com/BartekS5/docshift/pkg/models"
)

// Normalize converts a value into its JSON-decoded form so values read back
// from different backends compare equal (all numbers become float64).
func Normalize(v interface{}) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// FieldEquals reports whether doc[field] equals value after normalization.
// Adapters without native queries use it for linear scans.
func FieldEquals(doc models.Document, field string, value interface{}) bool {
	got, ok := doc[field]
	if !ok {
		return false
	}
	return reflect.DeepEqual(Normalize(got), Normalize(value))
}
