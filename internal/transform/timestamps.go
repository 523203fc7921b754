package transform

import (
	"strings"
	"time"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/utils"
)

// LooksLikeTimestampField matches field names ending in _at or At, or
// containing Time, Date or timestamp. The match is deliberately loose and
// will misfire on names such as dateOfBirthTextDescription.
func LooksLikeTimestampField(name string) bool {
	return strings.HasSuffix(name, "_at") ||
		strings.HasSuffix(name, "At") ||
		strings.Contains(name, "Time") ||
		strings.Contains(name, "Date") ||
		strings.Contains(strings.ToLower(name), "timestamp")
}

// nativeTime recognises native timestamp values, including seconds and
// nanoseconds objects that were cloned into Documents.
func nativeTime(v interface{}) (string, bool) {
	if d, ok := v.(models.Document); ok {
		v = map[string]interface{}(d)
	}
	t, ok := utils.ConvertDateTime(v)
	if !ok {
		return "", false
	}
	return utils.FormatISO(t), true
}

// ConvertTimestamps turns native timestamps anywhere in the document, and
// epoch-millisecond integers in timestamp-named fields, into ISO-8601 strings.
type ConvertTimestamps struct{}

func (ConvertTimestamps) Name() string { return "convert-timestamps" }

func (t ConvertTimestamps) Apply(doc models.Document, _ Context) (models.Document, error) {
	convertTimestamps(doc)
	return doc, nil
}

func convertTimestamps(doc models.Document) {
	for k, v := range doc {
		if iso, ok := nativeTime(v); ok {
			doc[k] = iso
			continue
		}
		if LooksLikeTimestampField(k) {
			if ms, ok := utils.EpochMillis(v); ok {
				doc[k] = utils.FormatISO(time.UnixMilli(ms))
				continue
			}
		}
		switch val := v.(type) {
		case models.Document:
			convertTimestamps(val)
		case []interface{}:
			for i, item := range val {
				if iso, ok := nativeTime(item); ok {
					val[i] = iso
				} else if sub, ok := item.(models.Document); ok {
					convertTimestamps(sub)
				}
			}
		}
	}
}

// RestoreTimestamps converts ISO-8601 strings in timestamp-named top-level
// fields back into epoch-millisecond integers.
type RestoreTimestamps struct {
	// Skip lists fields left as strings, e.g. createdAt for stores that stamp them.
	Skip []string
}

func (RestoreTimestamps) Name() string { return "restore-timestamps" }

func (t RestoreTimestamps) Apply(doc models.Document, _ Context) (models.Document, error) {
	skip := make(map[string]bool, len(t.Skip))
	for _, f := range t.Skip {
		skip[f] = true
	}
	for k, v := range doc {
		s, ok := v.(string)
		if !ok || skip[k] || !LooksLikeTimestampField(k) {
			continue
		}
		parsed, err := utils.ParseISO(s)
		if err != nil {
			continue
		}
		doc[k] = utils.ToEpochMillis(parsed)
	}
	return doc, nil
}
