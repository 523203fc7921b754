package store

import (
	"errors"
	"testing"
	"time"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *testing.T, ts time.Time) {
	t.Helper()
	prev := Now
	Now = func() time.Time { return ts }
	t.Cleanup(func() { Now = prev })
}

func TestStampKeepsExistingTimestamps(t *testing.T) {
	fixedClock(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	doc := models.Document{"name": "Al", FieldCreatedAt: "2020-01-01T00:00:00.000Z"}
	out := Stamp(doc)

	assert.Equal(t, "2020-01-01T00:00:00.000Z", out[FieldCreatedAt])
	assert.Equal(t, "2024-01-02T03:04:05.000Z", out[FieldUpdatedAt])
	_, mutated := doc[FieldUpdatedAt]
	assert.False(t, mutated, "input document must not be modified")
}

func TestMergeRefreshesUpdatedAt(t *testing.T) {
	fixedClock(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	existing := models.Document{"a": 1, "b": 2, FieldUpdatedAt: "old"}
	out := Merge(existing, models.Document{"b": 3, "c": 4})

	assert.Equal(t, models.Document{"a": 1, "b": 3, "c": 4, FieldUpdatedAt: "2024-01-02T03:04:05.000Z"}, out)
	assert.Equal(t, 2, existing["b"])
}

func TestUnsupportedOperationError(t *testing.T) {
	err := Unsupported("upload", models.KindSQL, "no object storage configured")
	require.True(t, errors.Is(err, ErrUnsupported))
	assert.Contains(t, err.Error(), "unsupported operation: upload")

	var uerr *UnsupportedOperationError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, models.KindSQL, uerr.Provider)
}

func TestFieldEqualsNormalizesNumbers(t *testing.T) {
	doc := models.Document{"age": float64(30), "tags": []interface{}{"x"}}
	assert.True(t, FieldEquals(doc, "age", 30))
	assert.True(t, FieldEquals(doc, "tags", []string{"x"}))
	assert.False(t, FieldEquals(doc, "age", "30"))
	assert.False(t, FieldEquals(doc, "missing", nil))
}

func TestNewIDIsUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
