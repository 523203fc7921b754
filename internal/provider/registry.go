// Package provider holds the named store registry and the Session handle
// through which callers address the active provider.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"golang.org/x/time/rate"
)

var (
	// ErrUnknownProvider is returned for names that were never registered.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrSameProvider is returned when source and target are the same provider.
	ErrSameProvider = errors.New("source and target provider are the same")
	// ErrNoProviderConfigured is returned when no backend has been registered.
	ErrNoProviderConfigured = errors.New("no provider configured")
)

// Entry is a registered provider.
type Entry struct {
	Name  string
	Store store.Store
	// limiter throttles writes; nil means unlimited.
	limiter *rate.Limiter
}

// Kind returns the backend kind of the entry.
func (e *Entry) Kind() models.Kind { return e.Store.Kind() }

// Info describes the provider.
func (e *Entry) Info() models.Provider {
	return models.Provider{Name: e.Name, Kind: e.Store.Kind(), Capabilities: e.Store.Capabilities()}
}

// WaitWrite blocks until the provider's write budget allows one more write.
func (e *Entry) WaitWrite(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

// WriteLimit returns the configured writes per second, or 0 when unlimited.
func (e *Entry) WriteLimit() float64 {
	if e.limiter == nil {
		return 0
	}
	return float64(e.limiter.Limit())
}

// Option configures a registered provider.
type Option func(*Entry)

// WithWriteLimit caps writes per second. Zero or negative means unlimited.
func WithWriteLimit(perSecond float64) Option {
	return func(e *Entry) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// Registry maps provider names to stores. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	entries     map[string]*Entry
	order       []string
	defaultName string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a store under name. The first registered provider becomes
// the default unless SetDefault is called.
func (r *Registry) Register(name string, s store.Store, opts ...Option) error {
	if name == "" {
		return errors.New("provider name is required")
	}
	if s == nil {
		return fmt.Errorf("provider %q: store is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("provider %q already registered", name)
	}
	e := &Entry{Name: name, Store: s}
	for _, opt := range opts {
		opt(e)
	}
	r.entries[name] = e
	r.order = append(r.order, name)
	if r.defaultName == "" {
		r.defaultName = name
	}
	logger.Debugf("Registered provider %s (%s)", name, s.Kind())
	return nil
}

// Get returns the entry for name or ErrUnknownProvider.
func (r *Registry) Get(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return e, nil
}

// Store returns the store registered under name.
func (r *Registry) Store(name string) (store.Store, error) {
	e, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return e.Store, nil
}

// Tables lists the tables held by provider name. Providers that cannot
// enumerate their tables return an unsupported operation error.
func (r *Registry) Tables(ctx context.Context, name string) ([]string, error) {
	e, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	lister, ok := e.Store.(store.TableLister)
	if !ok {
		return nil, store.Unsupported("tables", e.Kind(), "")
	}
	tables, err := lister.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables of %s: %w", name, err)
	}
	return tables, nil
}

// Pair resolves a source and target, rejecting identical names.
func (r *Registry) Pair(from, to string) (*Entry, *Entry, error) {
	if from == to {
		return nil, nil, fmt.Errorf("%w: %q", ErrSameProvider, from)
	}
	src, err := r.Get(from)
	if err != nil {
		return nil, nil, err
	}
	dst, err := r.Get(to)
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// Names lists providers in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Default returns the default provider name, or "" when none is registered.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// SetDefault changes the default provider.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	r.defaultName = name
	return nil
}

// Info describes every provider sorted by name.
func (r *Registry) Info() []models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Provider, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close closes every store and returns the joined errors.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, name := range r.order {
		if err := r.entries[name].Store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
