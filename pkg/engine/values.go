package engine

import (
	stdjson "encoding/json"
	"strconv"
	"strings"

	"github.com/user/workspace-audit/pkg/controlmap"
)

// Field readers used by the rules. Every reader treats an absent key, null, 0, false
// and "" the same way: no signal.

// isFalse reports whether key holds the boolean false. Only a real boolean counts.
func (r *RawFinding) isFalse(key string) bool {
	v, ok := r.Get(key)
	if !ok {
		return false
	}
	b, isBool := v.(bool)
	return isBool && !b
}

// number reads key as a number. Numeric strings parse, true reads as 1.
func (r *RawFinding) number(key string) (float64, bool) {
	v, ok := r.Get(key)
	if !ok {
		return 0, false
	}
	return toNumber(v)
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case stdjson.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (r *RawFinding) positive(key string) bool {
	n, ok := r.number(key)
	return ok && n > 0
}

// text returns key as display text. Empty strings, zero numbers, false and null
// yield "".
// truthy returns the raw value under key unless it is missing, null, false, zero or
// an empty string.
func (r *RawFinding) truthy(key string) (interface{}, bool) {
	v, ok := r.Get(key)
	if !ok || textOf(v) == "" {
		return nil, false
	}
	return v, true
}

func (r *RawFinding) text(key string) string {
	v, ok := r.Get(key)
	if !ok {
		return ""
	}
	return textOf(v)
}

func textOf(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return ""
	case stdjson.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
		return t.String()
	default:
		if f, ok := toNumber(v); ok {
			if f == 0 {
				return ""
			}
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// mapping reads compliance_mappings. Non-string codes are ignored.
func (r *RawFinding) mapping(key string) controlmap.Mapping {
	v, ok := r.Get(key)
	if !ok {
		return controlmap.Mapping{}
	}

	var (
		keys  []string
		codes = map[string]string{}
	)
	switch m := v.(type) {
	case *RawFinding:
		for _, k := range m.Keys() {
			val, _ := m.Get(k)
			if s, ok := val.(string); ok {
				keys = append(keys, k)
				codes[k] = s
			}
		}
	case map[string]interface{}:
		for _, k := range sortedKeys(m) {
			if s, ok := m[k].(string); ok {
				keys = append(keys, k)
				codes[k] = s
			}
		}
	case map[string]string:
		generic := make(map[string]interface{}, len(m))
		for k, s := range m {
			generic[k] = s
		}
		for _, k := range sortedKeys(generic) {
			keys = append(keys, k)
			codes[k] = m[k]
		}
	case controlmap.Mapping:
		return m
	}
	return controlmap.MappingFromStrings(keys, codes)
}
