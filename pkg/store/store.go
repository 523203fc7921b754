// Package store defines the adapter contract every storage backend implements.
// Adapters operate on JSON documents addressed by (table, id).
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/utils"
	"github.com/google/uuid"
)

// Metadata fields stamped by every adapter write.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

var (
	// ErrNotFound is returned by Update when the id is absent.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrNoProvider is reported by facades when no backend is configured.
	ErrNoProvider = errors.New("no database configured")
	// ErrUnsupported marks optional operations a backend does not provide.
	ErrUnsupported = errors.New("unsupported operation")
)

// UnsupportedOperationError names the operation and provider that lacks it.
type UnsupportedOperationError struct {
	Op       string
	Provider models.Kind
	Reason   string
}

func (e *UnsupportedOperationError) Error() string {
	msg := fmt.Sprintf("unsupported operation: %s is not available for %s provider", e.Op, e.Provider)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *UnsupportedOperationError) Unwrap() error { return ErrUnsupported }

// Unsupported builds an UnsupportedOperationError.
func Unsupported(op string, kind models.Kind, reason string) error {
	return &UnsupportedOperationError{Op: op, Provider: kind, Reason: reason}
}

// UploadResult describes an object stored through Upload.
type UploadResult struct {
	URL      string            `json:"url"`
	Path     string            `json:"path"`
	Size     int64             `json:"size"`
	Metadata map[string]string `json:"metadata"`
}

//go:generate mockgen -destination=storemock/storemock.go -package=storemock . Store

// Store is the uniform CRUD contract implemented once per backend.
type Store interface {
	// Create persists doc under id, generating one when id is empty.
	// It never overwrites an existing id.
	Create(ctx context.Context, table, id string, doc models.Document) (string, error)
	// Read returns nil, nil when the id is absent.
	Read(ctx context.Context, table, id string) (models.Document, error)
	ReadAll(ctx context.Context, table string) (map[string]models.Document, error)
	// ReadBy returns the first document whose field equals value, or nil.
	ReadBy(ctx context.Context, table, field string, value interface{}) (models.Document, error)
	// GetItemsByKeyValue returns every matching document, or nil when none match.
	GetItemsByKeyValue(ctx context.Context, table, field string, value interface{}) (map[string]models.Document, error)
	// Update shallow-merges data onto the stored document.
	Update(ctx context.Context, table, id string, data models.Document) (models.Document, error)
	Delete(ctx context.Context, table, id string) (bool, error)
	DeleteAll(ctx context.Context, table string) (bool, error)
	Upload(ctx context.Context, file io.Reader, destinationPath string) (*UploadResult, error)

	Kind() models.Kind
	Capabilities() models.Capabilities
	Close(ctx context.Context) error
}

// TTLStore is implemented by backends with native expiry.
type TTLStore interface {
	Store
	CreateWithTTL(ctx context.Context, table, id string, doc models.Document, ttl time.Duration) (string, error)
}

// TableLister is implemented by backends that can enumerate their tables.
type TableLister interface {
	Tables(ctx context.Context) ([]string, error)
}

// NewID returns a fresh unique document id.
func NewID() string {
	return uuid.NewString()
}

// Now is the clock used for timestamp stamping. Tests may replace it.
var Now = time.Now

// Stamp returns a copy of doc with createdAt/updatedAt set when absent.
func Stamp(doc models.Document) models.Document {
	out := doc.Clone()
	if out == nil {
		out = models.Document{}
	}
	ts := utils.FormatISO(Now())
	if v, ok := out[FieldCreatedAt]; !ok || v == nil {
		out[FieldCreatedAt] = ts
	}
	if v, ok := out[FieldUpdatedAt]; !ok || v == nil {
		out[FieldUpdatedAt] = ts
	}
	return out
}

// Merge shallow-merges data onto a copy of existing and refreshes updatedAt.
func Merge(existing, data models.Document) models.Document {
	out := existing.Clone()
	if out == nil {
		out = models.Document{}
	}
	for k, v := range data.Clone() {
		out[k] = v
	}
	out[FieldUpdatedAt] = utils.FormatISO(Now())
	return out
}
