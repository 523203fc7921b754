// Package storetest provides a conformance suite every store adapter must pass.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// RunConformance runs the adapter contract against stores built by newStore.
func RunConformance(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("CreateGeneratesIDAndStamps", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Create(ctx, "users", "", models.Document{"name": "Al"})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := s.Read(ctx, "users", id)
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, "Al", doc["name"])
		assert.NotEmpty(t, doc[store.FieldCreatedAt])
		assert.NotEmpty(t, doc[store.FieldUpdatedAt])
	})

	t.Run("CreateNeverOverwrites", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Create(ctx, "users", "a", models.Document{"name": "Al"})
		require.NoError(t, err)
		assert.Equal(t, "a", id)

		_, err = s.Create(ctx, "users", "a", models.Document{"name": "Bo"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrAlreadyExists))

		doc, err := s.Read(ctx, "users", "a")
		require.NoError(t, err)
		assert.Equal(t, "Al", doc["name"])
	})

	t.Run("ReadMissingReturnsNil", func(t *testing.T) {
		s := newStore(t)
		doc, err := s.Read(ctx, "users", "nope")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("ReadAllIsScopedToTable", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"a", "b", "c"} {
			_, err := s.Create(ctx, "users", id, models.Document{"name": id})
			require.NoError(t, err)
		}
		_, err := s.Create(ctx, "orders", "a", models.Document{"total": 3})
		require.NoError(t, err)

		users, err := s.ReadAll(ctx, "users")
		require.NoError(t, err)
		assert.Len(t, users, 3)
		assert.Equal(t, "b", users["b"]["name"])

		empty, err := s.ReadAll(ctx, "ghosts")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ArraysAndNestedObjectsSurvive", func(t *testing.T) {
		s := newStore(t)
		in := models.Document{
			"tags":    []interface{}{"x", "y"},
			"profile": map[string]interface{}{"age": 30, "city": "Oslo"},
		}
		_, err := s.Create(ctx, "users", "a", in)
		require.NoError(t, err)

		doc, err := s.Read(ctx, "users", "a")
		require.NoError(t, err)
		assert.Equal(t, store.Normalize(in["tags"]), store.Normalize(doc["tags"]))
		assert.Equal(t, store.Normalize(in["profile"]), store.Normalize(doc["profile"]))
	})

	t.Run("ReadByAndItemsByKeyValue", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, "users", "a", models.Document{"role": "admin", "age": 30})
		require.NoError(t, err)
		_, err = s.Create(ctx, "users", "b", models.Document{"role": "user", "age": 30})
		require.NoError(t, err)
		_, err = s.Create(ctx, "users", "c", models.Document{"role": "user", "age": 41})
		require.NoError(t, err)

		doc, err := s.ReadBy(ctx, "users", "role", "admin")
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, "admin", doc["role"])

		items, err := s.GetItemsByKeyValue(ctx, "users", "age", 30)
		require.NoError(t, err)
		assert.Len(t, items, 2)
		assert.Contains(t, items, "a")
		assert.Contains(t, items, "b")

		none, err := s.GetItemsByKeyValue(ctx, "users", "role", "root")
		require.NoError(t, err)
		assert.Nil(t, none)

		missing, err := s.ReadBy(ctx, "users", "role", "root")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("UpdateMergesAndRefreshesUpdatedAt", func(t *testing.T) {
		s := newStore(t)
		prev := store.Now
		store.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
		defer func() { store.Now = prev }()

		_, err := s.Create(ctx, "users", "a", models.Document{"name": "Al", "age": 30})
		require.NoError(t, err)

		store.Now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
		doc, err := s.Update(ctx, "users", "a", models.Document{"age": 31})
		require.NoError(t, err)
		assert.Equal(t, "Al", doc["name"])
		assert.EqualValues(t, 31, store.Normalize(doc["age"]))
		assert.Equal(t, "2024-01-01T00:00:00.000Z", doc[store.FieldCreatedAt])
		assert.Equal(t, "2024-06-01T00:00:00.000Z", doc[store.FieldUpdatedAt])

		stored, err := s.Read(ctx, "users", "a")
		require.NoError(t, err)
		assert.EqualValues(t, 31, store.Normalize(stored["age"]))
	})

	t.Run("UpdateMissingIsNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Update(ctx, "users", "nope", models.Document{"x": 1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("DeleteAndDeleteAll", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"a", "b"} {
			_, err := s.Create(ctx, "users", id, models.Document{"n": id})
			require.NoError(t, err)
		}
		_, err := s.Create(ctx, "orders", "o1", models.Document{"n": 1})
		require.NoError(t, err)

		ok, err := s.Delete(ctx, "users", "a")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Delete(ctx, "users", "a")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.DeleteAll(ctx, "users")
		require.NoError(t, err)
		assert.True(t, ok)

		users, err := s.ReadAll(ctx, "users")
		require.NoError(t, err)
		assert.Empty(t, users)

		orders, err := s.ReadAll(ctx, "orders")
		require.NoError(t, err)
		assert.Len(t, orders, 1)
	})

	t.Run("UploadWithoutObjectStorageIsUnsupported", func(t *testing.T) {
		s := newStore(t)
		if s.Capabilities().NativeUpload {
			t.Skip("backend supports uploads")
		}
		_, err := s.Upload(ctx, bytes.NewReader([]byte("hi")), "files/hi.txt")
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrUnsupported))
		assert.Contains(t, err.Error(), "unsupported operation")
	})
}
