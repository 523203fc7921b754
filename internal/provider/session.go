package provider

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
)

// Result is the normalized outcome of a Session operation. Adapter errors are
// reported through Success and Message and never returned to the caller.
type Result struct {
	Success   bool                       `json:"success"`
	Message   string                     `json:"message,omitempty"`
	ID        string                     `json:"id,omitempty"`
	Document  models.Document            `json:"document,omitempty"`
	Documents map[string]models.Document `json:"documents,omitempty"`
	Upload    *store.UploadResult        `json:"upload,omitempty"`

	err error
}

// Err returns the underlying error of a failed result.
func (r Result) Err() error { return r.err }

// Unsupported reports whether the failure came from an optional operation
// the active provider does not implement.
func (r Result) Unsupported() bool {
	return errors.Is(r.err, store.ErrUnsupported)
}

func failure(err error) Result {
	return Result{Success: false, Message: err.Error(), err: err}
}

// Session carries the active provider for one caller. Sessions are cheap;
// components that need a different provider take their own Session or
// resolve stores from the Registry instead of switching a shared one.
type Session struct {
	registry *Registry

	mu      sync.RWMutex
	current string
}

// NewSession starts on the registry's default provider.
func NewSession(r *Registry) *Session {
	return &Session{registry: r, current: r.Default()}
}

// Registry returns the registry backing the session.
func (s *Session) Registry() *Registry { return s.registry }

// Provider returns the active provider name, "" when none is configured.
func (s *Session) Provider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SwitchProvider changes the active provider. Unknown names are a
// configuration error.
func (s *Session) SwitchProvider(name string) error {
	if _, err := s.registry.Get(name); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = name
	s.mu.Unlock()
	return nil
}

// active resolves the current store. ok is false when no database is
// configured, which is logged and otherwise treated as a normal condition.
func (s *Session) active(op string) (store.Store, bool) {
	name := s.Provider()
	if name == "" {
		logger.Warnf("%s skipped: %v", op, store.ErrNoProvider)
		return nil, false
	}
	st, err := s.registry.Store(name)
	if err != nil {
		logger.Warnf("%s skipped: %v", op, err)
		return nil, false
	}
	return st, true
}

func noDatabase() Result {
	return Result{Success: false, Message: store.ErrNoProvider.Error(), err: store.ErrNoProvider}
}

// Create stores doc under a generated id on the active provider.
func (s *Session) Create(ctx context.Context, table string, doc models.Document) Result {
	st, ok := s.active("create")
	if !ok {
		return noDatabase()
	}
	id, err := st.Create(ctx, table, "", doc)
	if err != nil {
		return failure(err)
	}
	return Result{Success: true, ID: id}
}

// CreateWithTTL stores doc so that it expires after ttl. Providers without
// native expiry store it without one and log a warning.
func (s *Session) CreateWithTTL(ctx context.Context, table string, doc models.Document, ttl time.Duration) Result {
	st, ok := s.active("createWithTTL")
	if !ok {
		return noDatabase()
	}
	var (
		id  string
		err error
	)
	if ts, native := st.(store.TTLStore); native {
		id, err = ts.CreateWithTTL(ctx, table, "", doc, ttl)
	} else {
		logger.Warnf("createWithTTL: %s provider %s has no native expiry; ttl %s ignored", st.Kind(), s.Provider(), ttl)
		id, err = st.Create(ctx, table, "", doc)
	}
	if err != nil {
		return failure(err)
	}
	return Result{Success: true, ID: id}
}

// Read fetches one document. A missing id succeeds with a nil Document.
func (s *Session) Read(ctx context.Context, table, id string) Result {
	st, ok := s.active("read")
	if !ok {
		return noDatabase()
	}
	doc, err := st.Read(ctx, table, id)
	if err != nil {
		return failure(err)
	}
	return Result{Success: true, ID: id, Document: doc}
}

// ReadAll returns every document of table keyed by id.
func (s *Session) ReadAll(ctx context.Context, table string) Result {
	st, ok := s.active("readAll")
	if !ok {
		return noDatabase()
	}
	docs, err := st.ReadAll(ctx, table)
	if err != nil {
		return failure(err)
	}
	return Result{Success: true, Documents: docs}
}

// ReadBy returns the first document whose field equals value.
func (s *Session) ReadBy(ctx context.Context, table, field string, value interface{}) Result {
	st, ok := s.active("readBy")
	if !ok {
		return noDatabase()
	}
	doc, err := st.ReadBy(ctx, table, field, value)
	if err != nil {
		return failure(err)
	}
	return Result{Success: true, Document: doc}
}

// GetItemsByKeyValue returns all documents whose field equals value.
func (s *Session) GetItemsByKeyValue(ctx context.Context, table, field string, value interface{}) Result {
	st, ok := s.active("getItemsByKeyValue")
	if !ok {
		return noDatabase()
	}
	docs, err := st.GetItemsByKeyValue(ctx, table, field, value)
	if err != nil {
		return failure(err)
	}
	return Result{Success: true, Documents: docs}
}

// Update merges data into an existing document and returns the result.
func (s *Session) Update(ctx context.Context, table, id string, data models.Document) Result {
	st, ok := s.active("update")
	if !ok {
		return noDatabase()
	}
	doc, err := st.Update(ctx, table, id, data)
	if err != nil {
		return failure(err)
	}
	return Result{Success: true, ID: id, Document: doc}
}

// Delete removes one document. Missing ids yield an unsuccessful Result.
func (s *Session) Delete(ctx context.Context, table, id string) Result {
	st, ok := s.active("delete")
	if !ok {
		return noDatabase()
	}
	deleted, err := st.Delete(ctx, table, id)
	if err != nil {
		return failure(err)
	}
	if !deleted {
		return Result{Success: false, ID: id, Message: "document not found"}
	}
	return Result{Success: true, ID: id}
}

// DeleteAll empties table.
func (s *Session) DeleteAll(ctx context.Context, table string) Result {
	st, ok := s.active("deleteAll")
	if !ok {
		return noDatabase()
	}
	done, err := st.DeleteAll(ctx, table)
	if err != nil {
		return failure(err)
	}
	return Result{Success: done}
}

// Upload stores a file through the provider's object storage, if it has one.
func (s *Session) Upload(ctx context.Context, file io.Reader, destinationPath string) Result {
	st, ok := s.active("upload")
	if !ok {
		return noDatabase()
	}
	res, err := st.Upload(ctx, file, destinationPath)
	if err != nil {
		if errors.Is(err, store.ErrUnsupported) {
			logger.Warnf("upload: %v", err)
		}
		return failure(err)
	}
	return Result{Success: true, Upload: res}
}
