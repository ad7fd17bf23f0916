// Package pathutil implements the safe dot-path walker the policy engine
// projects and filters with. Paths are resolved over a plain associative
// snapshot via gjson, never by evaluating host-supplied code.
package pathutil

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Snapshot is a path-addressable view of a plain associative structure.
type Snapshot struct {
	raw string
	ok  bool
}

// NewSnapshot builds a snapshot from any JSON-marshalable value. A value
// that cannot be marshaled yields a snapshot where every path is missing.
func NewSnapshot(data interface{}) Snapshot {
	encoded, err := json.Marshal(data)
	if err != nil {
		return Snapshot{}
	}
	return Snapshot{raw: string(encoded), ok: true}
}

// Get resolves a dot path ("service.meta.handler_id", "orders[0].id")
// against the snapshot.
func (s Snapshot) Get(path string) (interface{}, bool) {
	if !s.ok {
		return nil, false
	}

	// gjson addresses array elements as ".N", not "[N]".
	normalized := strings.ReplaceAll(path, "[", ".")
	normalized = strings.ReplaceAll(normalized, "]", "")

	result := gjson.Get(s.raw, normalized)
	if !result.Exists() {
		return nil, false
	}
	return resultToInterface(result), true
}

func resultToInterface(result gjson.Result) interface{} {
	switch result.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		if result.Float() == float64(result.Int()) {
			return result.Int()
		}
		return result.Float()
	case gjson.String:
		return result.String()
	case gjson.JSON:
		if result.IsArray() {
			items := result.Array()
			out := make([]interface{}, len(items))
			for i, item := range items {
				out[i] = resultToInterface(item)
			}
			return out
		}
		entries := result.Map()
		out := make(map[string]interface{}, len(entries))
		for key, entry := range entries {
			out[key] = resultToInterface(entry)
		}
		return out
	default:
		return nil
	}
}

// Truthy reports whether a projected value is truthy: non-nil, non-false,
// non-zero, non-empty.
func Truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}

// Equal compares two projected values by their canonical JSON form, so a
// number projected as int64 compares equal to the same number supplied as
// float64 in a rule definition.
func Equal(a, b interface{}) bool {
	return canonical(a) == canonical(b)
}

func canonical(value interface{}) string {
	switch v := value.(type) {
	case int64:
		return canonical(float64(v))
	case int:
		return canonical(float64(v))
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(encoded)
}
