package transform

import (
	"sort"
	"strings"

	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
)

// SanitizeKey rewrites a field name so the target kind accepts it.
func SanitizeKey(k models.Kind, key string) string {
	switch k {
	case models.KindMongo:
		key = strings.ReplaceAll(key, ".", "_")
		if strings.HasPrefix(key, "$") {
			key = "_" + key[1:]
		}
		return key
	case models.KindSQL:
		var b strings.Builder
		for _, r := range key {
			if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			} else {
				b.WriteByte('_')
			}
		}
		return b.String()
	default:
		return key
	}
}

// ValidKey reports whether the target kind accepts key unchanged.
func ValidKey(k models.Kind, key string) bool {
	return SanitizeKey(k, key) == key
}

// SanitizeFieldNames replaces characters the target kind disallows with _.
// Nested documents are sanitized too.
type SanitizeFieldNames struct {
	Kind models.Kind
}

func (SanitizeFieldNames) Name() string { return "sanitize-field-names" }

func (t SanitizeFieldNames) Apply(doc models.Document, tc Context) (models.Document, error) {
	return sanitize(t.Kind, doc, tc), nil
}

func sanitize(k models.Kind, doc models.Document, tc Context) models.Document {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	// valid keys first so they win collisions
	sort.SliceStable(keys, func(i, j int) bool {
		vi, vj := ValidKey(k, keys[i]), ValidKey(k, keys[j])
		if vi != vj {
			return vi
		}
		return keys[i] < keys[j]
	})

	out := make(models.Document, len(doc))
	for _, key := range keys {
		v := doc[key]
		if sub, ok := v.(models.Document); ok {
			v = sanitize(k, sub, tc)
		}
		clean := SanitizeKey(k, key)
		if _, taken := out[clean]; taken {
			logger.Warnf("%s/%s: field %q collides with %q after sanitizing; dropped", tc.Table, tc.OriginalKey, key, clean)
			continue
		}
		out[clean] = v
	}
	return out
}
