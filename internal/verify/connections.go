package verify

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/BartekS5/docshift/internal/provider"
	"github.com/BartekS5/docshift/internal/transform"
	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"golang.org/x/sync/errgroup"
)

// ProbeTable is the disposable table used by the connection test.
const ProbeTable = "docshift_connection_test"

// ObservedCapabilities are measured by the round-trip, not declared.
type ObservedCapabilities struct {
	ArraySupport        bool `json:"arraySupport"`
	NestedObjectSupport bool `json:"nestedObjectSupport"`
	TypePreservation    bool `json:"typePreservation"`
}

// ConnectionResult is the outcome of one provider's round-trip.
type ConnectionResult struct {
	Provider     string               `json:"provider"`
	Kind         models.Kind          `json:"kind"`
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	Capabilities ObservedCapabilities `json:"capabilities"`
	DurationMs   int64                `json:"durationMs"`
}

// TestConnections runs a create/read/update/delete round-trip against every
// named provider concurrently, or every registered provider when names is
// empty. Results keep the order of names.
func TestConnections(ctx context.Context, r *provider.Registry, names []string) []ConnectionResult {
	if len(names) == 0 {
		names = r.Names()
	}
	results := make([]ConnectionResult, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			results[i] = testConnection(ctx, r, name)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func probeDocument(now time.Time) models.Document {
	return models.Document{
		"text":   "42",
		"number": 42,
		"flag":   true,
		"when":   now.UTC().Truncate(time.Millisecond),
		"tags":   []interface{}{"a", "b"},
		"nested": map[string]interface{}{"inner": map[string]interface{}{"value": 1}},
	}
}

func testConnection(ctx context.Context, r *provider.Registry, name string) ConnectionResult {
	start := time.Now()
	res := ConnectionResult{Provider: name}
	log := logger.WithField("provider", name)

	entry, err := r.Get(name)
	if err != nil {
		res.Message = err.Error()
		return res
	}
	res.Kind = entry.Kind()

	caps, err := roundTrip(ctx, entry.Store)
	res.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Message = err.Error()
		log.Warnf("Connection test failed: %v", err)
		return res
	}
	res.Success = true
	res.Capabilities = caps
	res.Message = fmt.Sprintf("round-trip ok in %dms", res.DurationMs)
	log.Infof("Connection test passed in %dms", res.DurationMs)
	return res
}

func roundTrip(ctx context.Context, s store.Store) (ObservedCapabilities, error) {
	var caps ObservedCapabilities
	probe := probeDocument(time.Now())

	id, err := s.Create(ctx, ProbeTable, "", probe)
	if err != nil {
		return caps, fmt.Errorf("create: %w", err)
	}
	defer func() {
		if _, err := s.DeleteAll(context.WithoutCancel(ctx), ProbeTable); err != nil {
			logger.Warnf("Failed to clean up %s: %v", ProbeTable, err)
		}
	}()

	got, err := s.Read(ctx, ProbeTable, id)
	if err != nil {
		return caps, fmt.Errorf("read: %w", err)
	}
	if got == nil {
		return caps, fmt.Errorf("read: created document %s not found", id)
	}
	caps = observe(probe, got)

	updated, err := s.Update(ctx, ProbeTable, id, models.Document{"text": "updated"})
	if err != nil {
		return caps, fmt.Errorf("update: %w", err)
	}
	if updated["text"] != "updated" {
		return caps, fmt.Errorf("update: got text %v", updated["text"])
	}

	ok, err := s.Delete(ctx, ProbeTable, id)
	if err != nil {
		return caps, fmt.Errorf("delete: %w", err)
	}
	if !ok {
		return caps, fmt.Errorf("delete: document %s was not removed", id)
	}
	return caps, nil
}

func observe(sent, got models.Document) ObservedCapabilities {
	var caps ObservedCapabilities
	if v := reflect.ValueOf(got["tags"]); v.Kind() == reflect.Slice {
		caps.ArraySupport = reflect.DeepEqual(store.Normalize(sent["tags"]), store.Normalize(got["tags"]))
	}
	if inner, ok := models.AsDocument(got["nested"]); ok {
		_, caps.NestedObjectSupport = models.AsDocument(inner["inner"])
	}
	caps.TypePreservation = true
	for _, f := range []string{"text", "number", "flag", "when"} {
		if transform.TypeOf(sent[f]) != transform.TypeOf(got[f]) {
			caps.TypePreservation = false
		}
	}
	return caps
}
