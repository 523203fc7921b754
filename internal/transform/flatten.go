package transform

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/BartekS5/docshift/pkg/models"
)

// FlattenMarker holds a JSON object mapping every key Flatten produced to
// the path it came from, e.g. {"profile_city":["profile","city"]}.
const FlattenMarker = "_flattened"

// DefaultMaxDepth is used when Flatten.MaxDepth is zero.
const DefaultMaxDepth = 3

const sep = "_"

// Unflatten never splits these names.
var unsplittable = map[string]bool{"created_at": true, "updated_at": true}

func nested(v interface{}) (models.Document, bool) {
	switch m := v.(type) {
	case models.Document:
		return m, true
	case map[string]interface{}:
		return models.Document(m), true
	}
	return nil, false
}

// readMarker decodes the flatten marker. ok is false when the document
// carries no marker.
func readMarker(doc models.Document) (map[string][]string, bool, error) {
	raw, ok := doc[FlattenMarker].(string)
	if !ok {
		return nil, false, nil
	}
	paths := make(map[string][]string)
	if raw == "" {
		return paths, true, nil
	}
	if err := json.Unmarshal([]byte(raw), &paths); err != nil {
		return nil, true, fmt.Errorf("invalid %s marker: %w", FlattenMarker, err)
	}
	return paths, true, nil
}

// Flatten joins nested keys with _ up to MaxDepth levels. Objects below the
// limit stay nested under their joined key. Documents without nested objects
// are returned unchanged, and keys already listed in the marker are never
// expanded again.
type Flatten struct {
	MaxDepth int
}

func (Flatten) Name() string { return "flatten" }

func (t Flatten) Apply(doc models.Document, tc Context) (models.Document, error) {
	depth := t.MaxDepth
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	paths, _, err := readMarker(doc)
	if err != nil {
		return nil, err
	}

	var roots []string
	for k, v := range doc {
		if _, done := paths[k]; done {
			continue
		}
		if m, ok := nested(v); ok && len(m) > 0 {
			roots = append(roots, k)
		}
	}
	if len(roots) == 0 {
		return doc, nil
	}
	sort.Strings(roots)

	produced := make(map[string]interface{})
	added := make(map[string][]string)
	verr := &ValidationError{Table: tc.Table, Key: tc.OriginalKey}
	for _, root := range roots {
		m, _ := nested(doc[root])
		flattenInto(produced, added, []string{root}, m, 2, depth, verr)
	}
	for key := range produced {
		if _, taken := doc[key]; taken && !contains(roots, key) {
			verr.Violations = append(verr.Violations, fmt.Sprintf("flattened field %q collides with an existing field", key))
		}
	}
	if len(verr.Violations) > 0 {
		sort.Strings(verr.Violations)
		return nil, verr
	}

	for _, root := range roots {
		delete(doc, root)
	}
	if paths == nil {
		paths = make(map[string][]string, len(added))
	}
	for key, v := range produced {
		doc[key] = v
		paths[key] = added[key]
	}
	b, err := json.Marshal(paths)
	if err != nil {
		return nil, err
	}
	doc[FlattenMarker] = string(b)
	return doc, nil
}

func flattenInto(out map[string]interface{}, paths map[string][]string, prefix []string, m models.Document, level, max int, verr *ValidationError) {
	for k, v := range m {
		path := append(append([]string(nil), prefix...), k)
		if sub, ok := nested(v); ok && len(sub) > 0 && level < max {
			flattenInto(out, paths, path, sub, level+1, max, verr)
			continue
		}
		key := strings.Join(path, sep)
		if _, dup := out[key]; dup {
			verr.Violations = append(verr.Violations, fmt.Sprintf("flattened field %q is produced twice", key))
			continue
		}
		out[key] = v
		paths[key] = path
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Unflatten rebuilds nested objects from the keys the flatten marker lists.
// Other keys are left alone. Without a marker it is a no-op unless Heuristic
// is set, in which case every key containing _ is split.
type Unflatten struct {
	Heuristic bool
}

func (Unflatten) Name() string { return "unflatten" }

func (t Unflatten) Apply(doc models.Document, _ Context) (models.Document, error) {
	paths, hasMarker, err := readMarker(doc)
	if err != nil {
		return nil, err
	}
	if !hasMarker && !t.Heuristic {
		return doc, nil
	}
	delete(doc, FlattenMarker)

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var path []string
		if hasMarker {
			path = paths[k]
		} else if !unsplittable[k] && strings.Contains(k, sep) {
			path = splitPath(k)
		}
		if len(path) < 2 {
			continue
		}
		if setPath(doc, path, doc[k]) {
			delete(doc, k)
		}
	}
	return doc, nil
}

// splitPath splits on _ but keeps created_at and updated_at whole.
func splitPath(s string) []string {
	parts := strings.Split(s, sep)
	var out []string
	for i := 0; i < len(parts); i++ {
		if i+1 < len(parts) && unsplittable[parts[i]+sep+parts[i+1]] {
			out = append(out, parts[i]+sep+parts[i+1])
			i++
			continue
		}
		if parts[i] == "" {
			// leading, trailing or doubled separators are not paths
			return nil
		}
		out = append(out, parts[i])
	}
	return out
}

// setPath stores v at path, creating intermediate documents. It refuses to
// overwrite non-object values.
func setPath(doc models.Document, path []string, v interface{}) bool {
	cur := doc
	for _, p := range path[:len(path)-1] {
		next, exists := cur[p]
		if !exists {
			m := models.Document{}
			cur[p] = m
			cur = m
			continue
		}
		m, ok := nested(next)
		if !ok {
			return false
		}
		cur = m
	}
	last := path[len(path)-1]
	if _, exists := cur[last]; exists {
		return false
	}
	cur[last] = v
	return true
}
