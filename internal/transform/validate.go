package transform

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"github.com/BartekS5/docshift/pkg/utils"
)

// ValidationError lists every rule a document broke.
type ValidationError struct {
	Table      string
	Key        string
	Missing    []string
	Violations []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	parts = append(parts, e.Violations...)
	return fmt.Sprintf("validation failed for %s/%s: %s", e.Table, e.Key, strings.Join(parts, "; "))
}

func missing(doc models.Document, field string) bool {
	v, ok := doc[field]
	return !ok || v == nil
}

// ValidateRequired fails when any listed field is absent or null.
type ValidateRequired struct {
	Fields []string
}

func (ValidateRequired) Name() string { return "validate-required" }

func (t ValidateRequired) Apply(doc models.Document, tc Context) (models.Document, error) {
	var miss []string
	for _, f := range t.Fields {
		if missing(doc, f) {
			miss = append(miss, f)
		}
	}
	if len(miss) > 0 {
		sort.Strings(miss)
		return nil, &ValidationError{Table: tc.Table, Key: tc.OriginalKey, Missing: miss}
	}
	return doc, nil
}

// ValidateSchema checks every rule of a schema.
type ValidateSchema struct {
	Schema   models.Schema
	patterns map[string]*regexp.Regexp
}

// NewValidateSchema compiles the schema's patterns.
func NewValidateSchema(s models.Schema) (*ValidateSchema, error) {
	v := &ValidateSchema{Schema: s, patterns: make(map[string]*regexp.Regexp)}
	for field, rule := range s {
		if rule.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("field %s: invalid pattern: %w", field, err)
		}
		v.patterns[field] = re
	}
	return v, nil
}

func (*ValidateSchema) Name() string { return "validate-schema" }

func (t *ValidateSchema) Apply(doc models.Document, tc Context) (models.Document, error) {
	fields := make([]string, 0, len(t.Schema))
	for f := range t.Schema {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	verr := &ValidationError{Table: tc.Table, Key: tc.OriginalKey}
	for _, field := range fields {
		rule := t.Schema[field]
		if missing(doc, field) {
			if rule.Required {
				verr.Missing = append(verr.Missing, field)
			}
			continue
		}
		verr.Violations = append(verr.Violations, t.check(field, rule, doc[field])...)
	}
	if len(verr.Missing) > 0 || len(verr.Violations) > 0 {
		return nil, verr
	}
	return doc, nil
}

// TypeOf names the JSON type of a value.
func TypeOf(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case models.Document, map[string]interface{}:
		return "object"
	case []byte:
		return "string"
	default:
		if _, ok := utils.ToFloat(val); ok {
			return "number"
		}
		if _, ok := nativeTime(val); ok {
			return "date"
		}
		rv := reflect.ValueOf(val)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return "array"
		}
		if rv.Kind() == reflect.Map {
			return "object"
		}
		return fmt.Sprintf("%T", val)
	}
}

func (t *ValidateSchema) check(field string, rule models.SchemaRule, v interface{}) []string {
	var out []string
	if rule.Type != "" {
		got := TypeOf(v)
		if got != rule.Type && !(rule.Type == "integer" && isInteger(v)) {
			out = append(out, fmt.Sprintf("%s: expected %s, got %s", field, rule.Type, got))
		}
	}
	if s, ok := v.(string); ok {
		n := len([]rune(s))
		if rule.MaxLength > 0 && n > rule.MaxLength {
			out = append(out, fmt.Sprintf("%s: length %d exceeds maxLength %d", field, n, rule.MaxLength))
		}
		if rule.MinLength > 0 && n < rule.MinLength {
			out = append(out, fmt.Sprintf("%s: length %d below minLength %d", field, n, rule.MinLength))
		}
		if re := t.patterns[field]; re != nil && !re.MatchString(s) {
			out = append(out, fmt.Sprintf("%s: does not match pattern %s", field, rule.Pattern))
		}
	}
	if len(rule.Enum) > 0 {
		found := false
		for _, allowed := range rule.Enum {
			if reflect.DeepEqual(store.Normalize(allowed), store.Normalize(v)) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, fmt.Sprintf("%s: value %v not in enum", field, v))
		}
	}
	if f, ok := utils.ToFloat(v); ok {
		if rule.Min != nil && f < *rule.Min {
			out = append(out, fmt.Sprintf("%s: %v below min %v", field, f, *rule.Min))
		}
		if rule.Max != nil && f > *rule.Max {
			out = append(out, fmt.Sprintf("%s: %v above max %v", field, f, *rule.Max))
		}
	}
	return out
}

func isInteger(v interface{}) bool {
	f, ok := utils.ToFloat(v)
	return ok && f == float64(int64(f))
}
