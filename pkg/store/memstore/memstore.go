// Package memstore implements the cache-store adapter on top of gcache.
// It is the only backend with native TTL support.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"github.com/bluele/gcache"
)

const keySep = "\x1f"

// Store keeps documents in a gcache.Cache keyed by table and id.
type Store struct {
	cache gcache.Cache
	// mu serializes read-modify-write sequences; gcache itself is goroutine safe.
	mu sync.Mutex
}

var (
	_ store.TTLStore    = (*Store)(nil)
	_ store.TableLister = (*Store)(nil)
)

// New creates a cache store. size <= 0 means unbounded.
func New(size int) *Store {
	if size < 0 {
		size = 0
	}
	return &Store{cache: gcache.New(size).Simple().Build()}
}

func cacheKey(table, id string) string {
	return table + keySep + id
}

func splitKey(key interface{}) (table, id string, ok bool) {
	s, isStr := key.(string)
	if !isStr {
		return "", "", false
	}
	parts := strings.SplitN(s, keySep, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (s *Store) Kind() models.Kind { return models.KindMemory }

func (s *Store) Capabilities() models.Capabilities {
	return models.DefaultCapabilities(models.KindMemory)
}

func (s *Store) Create(ctx context.Context, table, id string, doc models.Document) (string, error) {
	return s.create(table, id, doc, 0)
}

// CreateWithTTL stores a document that expires after ttl.
func (s *Store) CreateWithTTL(ctx context.Context, table, id string, doc models.Document, ttl time.Duration) (string, error) {
	return s.create(table, id, doc, ttl)
}

func (s *Store) create(table, id string, doc models.Document, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = store.NewID()
	}
	key := cacheKey(table, id)
	existing, err := s.get(key)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", fmt.Errorf("%s/%s: %w", table, id, store.ErrAlreadyExists)
	}

	stamped := store.Stamp(doc)
	if ttl > 0 {
		err = s.cache.SetWithExpire(key, stamped, ttl)
	} else {
		err = s.cache.Set(key, stamped)
	}
	if err != nil {
		return "", fmt.Errorf("cache set %s/%s: %w", table, id, err)
	}
	return id, nil
}

func (s *Store) get(key string) (models.Document, error) {
	v, err := s.cache.Get(key)
	if errors.Is(err, gcache.KeyNotFoundError) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc, ok := v.(models.Document)
	if !ok {
		return nil, fmt.Errorf("unexpected cache value %T", v)
	}
	return doc, nil
}

func (s *Store) Read(ctx context.Context, table, id string) (models.Document, error) {
	doc, err := s.get(cacheKey(table, id))
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Clone(), nil
}

func (s *Store) ReadAll(ctx context.Context, table string) (map[string]models.Document, error) {
	out := make(map[string]models.Document)
	for key, v := range s.cache.GetALL(true) {
		t, id, ok := splitKey(key)
		if !ok || t != table {
			continue
		}
		if doc, ok := v.(models.Document); ok {
			out[id] = doc.Clone()
		}
	}
	return out, nil
}

func (s *Store) ReadBy(ctx context.Context, table, field string, value interface{}) (models.Document, error) {
	docs, err := s.GetItemsByKeyValue(ctx, table, field, value)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		return doc, nil
	}
	return nil, nil
}

func (s *Store) GetItemsByKeyValue(ctx context.Context, table, field string, value interface{}) (map[string]models.Document, error) {
	all, err := s.ReadAll(ctx, table)
	if err != nil {
		return nil, err
	}
	var out map[string]models.Document
	for id, doc := range all {
		if !store.FieldEquals(doc, field, value) {
			continue
		}
		if out == nil {
			out = make(map[string]models.Document)
		}
		out[id] = doc
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, table, id string, data models.Document) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cacheKey(table, id)
	existing, err := s.get(key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%s/%s: %w", table, id, store.ErrNotFound)
	}
	merged := store.Merge(existing, data)
	if err := s.cache.Set(key, merged); err != nil {
		return nil, fmt.Errorf("cache set %s/%s: %w", table, id, err)
	}
	return merged.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, table, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Remove(cacheKey(table, id)), nil
}

func (s *Store) DeleteAll(ctx context.Context, table string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.cache.Keys(false) {
		if t, _, ok := splitKey(key); ok && t == table {
			s.cache.Remove(key)
		}
	}
	return true, nil
}

func (s *Store) Upload(ctx context.Context, file io.Reader, destinationPath string) (*store.UploadResult, error) {
	return nil, store.Unsupported("upload", models.KindMemory, "cache store has no object storage")
}

func (s *Store) Close(ctx context.Context) error {
	s.cache.Purge()
	return nil
}

// Tables lists the tables that currently hold unexpired entries.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, key := range s.cache.Keys(true) {
		if t, _, ok := splitKey(key); ok {
			seen[t] = struct{}{}
		}
	}
	tables := make([]string, 0, len(seen))
	for t := range seen {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables, nil
}
