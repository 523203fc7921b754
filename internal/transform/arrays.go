package transform

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
)

// ArraySuffix marks fields holding a JSON-encoded array.
const ArraySuffix = "_array"

func isArray(v interface{}) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// SerializeArrays replaces top-level array fields with a JSON string stored
// under <field>_array.
type SerializeArrays struct{}

func (SerializeArrays) Name() string { return "serialize-arrays" }

func (SerializeArrays) Apply(doc models.Document, _ Context) (models.Document, error) {
	for k, v := range doc {
		if !isArray(v) {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		delete(doc, k)
		doc[k+ArraySuffix] = string(b)
	}
	return doc, nil
}

// DeserializeArrays reverses SerializeArrays. Values that do not parse as a
// JSON array are logged and left untouched.
type DeserializeArrays struct{}

func (DeserializeArrays) Name() string { return "deserialize-arrays" }

func (DeserializeArrays) Apply(doc models.Document, tc Context) (models.Document, error) {
	for k, v := range doc {
		if !strings.HasSuffix(k, ArraySuffix) || k == ArraySuffix {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		var arr []interface{}
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			logger.Warnf("%s/%s: field %s is not a JSON array, left as is: %v", tc.Table, tc.OriginalKey, k, err)
			continue
		}
		for i, item := range arr {
			if m, ok := item.(map[string]interface{}); ok {
				arr[i] = models.Document(m).Clone()
			}
		}
		delete(doc, k)
		doc[strings.TrimSuffix(k, ArraySuffix)] = arr
	}
	return doc, nil
}
