package engine

import (
	"bytes"
	stdjson "encoding/json"
)

// MarshalIndent encodes v with two-space indentation. Ordered types write their own
// compact JSON, so indentation is applied to the finished document.
func MarshalIndent(v interface{}) ([]byte, error) {
	compact, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := stdjson.Indent(&buf, compact, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
