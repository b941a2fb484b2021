package engine

import (
	stdjson "encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	parseFailedMessage   = "Failed to parse findings. Findings must be a valid JSON object."
	invalidFormatMessage = "Invalid findings format. Expected an object with check results."
	findingsHelp         = `Pass findings as: {"check_2fa_status": {...}, "check_admin_roles": {...}, ...}`
)

// MalformedInputError is returned when findings is neither a mapping nor JSON text
// that parses to an object.
type MalformedInputError struct {
	ReceivedType string
	Message      string
	Err          error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (received %s): %v", e.Message, e.ReceivedType, e.Err)
	}
	return fmt.Sprintf("%s (received %s)", e.Message, e.ReceivedType)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// ErrorDocument is what Render emits instead of a report for malformed input.
type ErrorDocument struct {
	Error        string `json:"error"`
	Help         string `json:"help"`
	ReceivedType string `json:"received_type"`
}

// coerceFindings accepts every input form the engine supports and returns the
// ordered findings mapping.
func coerceFindings(in interface{}) (*RawFindings, error) {
	switch v := in.(type) {
	case *RawFindings:
		if v == nil {
			return nil, &MalformedInputError{ReceivedType: "null", Message: invalidFormatMessage}
		}
		return v, nil
	case RawFindings:
		return &v, nil
	case map[string]interface{}:
		if v == nil {
			return nil, &MalformedInputError{ReceivedType: "null", Message: invalidFormatMessage}
		}
		out := NewRawFindings()
		for _, k := range sortedKeys(v) {
			out.Add(k, normalizeValue(v[k]))
		}
		return out, nil
	case map[string]*RawFinding:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewRawFindings()
		for _, k := range keys {
			if v[k] == nil {
				out.Add(k, nil)
				continue
			}
			out.Add(k, v[k])
		}
		return out, nil
	case string:
		return parseFindingsText([]byte(v))
	case []byte:
		return parseFindingsText(v)
	case stdjson.RawMessage:
		return parseFindingsText(v)
	default:
		return nil, &MalformedInputError{ReceivedType: typeName(in), Message: invalidFormatMessage}
	}
}

func parseFindingsText(data []byte) (*RawFindings, error) {
	out, err := parseFindings(data)
	if err != nil {
		return nil, &MalformedInputError{ReceivedType: "string", Message: parseFailedMessage, Err: err}
	}
	return out, nil
}

// parseFindings decodes a JSON object of check id -> result keeping document order.
func parseFindings(data []byte) (*RawFindings, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("empty document")
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON")
	}

	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	v := readValue(iter)
	if iter.Error != nil {
		return nil, iter.Error
	}
	obj, ok := v.(*RawFinding)
	if !ok {
		return nil, fmt.Errorf("top-level value is %s, not an object", typeName(v))
	}

	out := NewRawFindings()
	for _, k := range obj.keys {
		out.Add(k, obj.values[k])
	}
	return out, nil
}

// typeName reports a value's JSON type, or the Go type for anything else.
func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, stdjson.Number:
		return "number"
	case []interface{}:
		return "array"
	case *RawFinding, map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
