// Package utils holds value conversion helpers shared by the transformation
// pipeline and the storage adapters.
package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ISOLayout is the ISO-8601 layout every engine-written timestamp uses.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// Epoch-millisecond integers are recognised inside this range
// (roughly 1973 to 5138).
const (
	minEpochMillis = 1e11
	maxEpochMillis = 1e14
)

// FormatISO renders t as an ISO-8601 UTC string with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseISO parses the timestamp string formats the engine understands.
func ParseISO(s string) (time.Time, error) {
	formats := []string{
		ISOLayout,
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse datetime: %s", s)
}

// ConvertDateTime recognises native timestamp representations: time.Time,
// BSON datetimes and timestamps, and objects carrying integer seconds and
// nanoseconds. Plain strings and numbers are not treated as timestamps here.
func ConvertDateTime(val interface{}) (time.Time, bool) {
	switch v := val.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case primitive.DateTime:
		return v.Time(), true
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0), true
	case map[string]interface{}:
		return secondsObject(v)
	case primitive.M:
		return secondsObject(v)
	}
	return time.Time{}, false
}

func secondsObject(m map[string]interface{}) (time.Time, bool) {
	if len(m) != 2 {
		return time.Time{}, false
	}
	secRaw, ok := firstOf(m, "seconds", "_seconds")
	if !ok {
		return time.Time{}, false
	}
	nanoRaw, ok := firstOf(m, "nanoseconds", "_nanoseconds")
	if !ok {
		return time.Time{}, false
	}
	sec, okSec := integral(secRaw)
	nano, okNano := integral(nanoRaw)
	if !okSec || !okNano {
		return time.Time{}, false
	}
	return time.Unix(sec, nano), true
}

func firstOf(m map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// EpochMillis reports whether val is an integer that looks like an
// epoch-millisecond timestamp.
func EpochMillis(val interface{}) (int64, bool) {
	n, ok := integral(val)
	if !ok {
		return 0, false
	}
	if n < minEpochMillis || n >= maxEpochMillis {
		return 0, false
	}
	return n, true
}

// ToEpochMillis converts t to milliseconds since the Unix epoch.
func ToEpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// integral converts whole numbers of any numeric representation to int64.
func integral(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

// ConvertToInt converts numeric and string values to int.
func ConvertToInt(val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case primitive.DateTime:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	case []byte:
		return strconv.Atoi(string(v))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", val)
	}
}

// ToFloat converts any numeric value to float64.
func ToFloat(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
