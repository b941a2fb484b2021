package engine

import (
	"bytes"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RawFinding is the opaque result object produced by one check. Keys keep their
// insertion (or document) order so the payload can be reproduced verbatim. Nested
// JSON objects decoded from text are RawFindings as well.
type RawFinding struct {
	keys   []string
	values map[string]interface{}
}

func NewRawFinding() *RawFinding {
	return &RawFinding{values: make(map[string]interface{})}
}

// RawFindingFromMap copies a Go map into a RawFinding with keys in sorted order.
func RawFindingFromMap(m map[string]interface{}) *RawFinding {
	r := NewRawFinding()
	for _, k := range sortedKeys(m) {
		r.Set(k, normalizeValue(m[k]))
	}
	return r
}

// Set stores a value. Setting an existing key replaces the value in place.
func (r *RawFinding) Set(key string, v interface{}) *RawFinding {
	if r.values == nil {
		r.values = make(map[string]interface{})
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

func (r *RawFinding) Get(key string) (interface{}, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[key]
	return v, ok
}

func (r *RawFinding) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *RawFinding) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

func (r *RawFinding) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	values := make([]interface{}, len(r.keys))
	for i, k := range r.keys {
		values[i] = r.values[k]
	}
	return marshalOrdered(r.keys, values)
}

func (r *RawFinding) UnmarshalJSON(data []byte) error {
	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return fmt.Errorf("raw finding must be a JSON object")
	}
	out := readObject(iter)
	if iter.Error != nil {
		return iter.Error
	}
	*r = *out
	return nil
}

// RawEntry is one check id with whatever value the caller supplied for it.
type RawEntry struct {
	CheckID string
	Value   interface{}
}

// RawFindings is the ordered findings mapping handed to the engine.
type RawFindings struct {
	entries []RawEntry
	index   map[string]int
}

func NewRawFindings() *RawFindings {
	return &RawFindings{index: make(map[string]int)}
}

// Add appends an entry. A repeated check id replaces the earlier value in place, the
// same way a JSON object with duplicate keys resolves.
func (r *RawFindings) Add(checkID string, v interface{}) *RawFindings {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[checkID]; ok {
		r.entries[i].Value = v
		return r
	}
	r.index[checkID] = len(r.entries)
	r.entries = append(r.entries, RawEntry{CheckID: checkID, Value: v})
	return r
}

func (r *RawFindings) Entries() []RawEntry {
	if r == nil {
		return nil
	}
	out := make([]RawEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *RawFindings) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

func (r *RawFindings) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(r.entries))
	values := make([]interface{}, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.CheckID
		values[i] = e.Value
	}
	return marshalOrdered(keys, values)
}

func (r *RawFindings) UnmarshalJSON(data []byte) error {
	out, err := parseFindings(data)
	if err != nil {
		return err
	}
	*r = *out
	return nil
}

// readObject reads the object at the iterator position keeping key order.
func readObject(iter *jsoniter.Iterator) *RawFinding {
	obj := NewRawFinding()
	iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		obj.Set(key, readValue(it))
		return true
	})
	return obj
}

func readValue(iter *jsoniter.Iterator) interface{} {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		return readObject(iter)
	case jsoniter.ArrayValue:
		arr := make([]interface{}, 0)
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			arr = append(arr, readValue(it))
			return true
		})
		return arr
	case jsoniter.NumberValue:
		return iter.ReadNumber()
	default:
		return iter.Read()
	}
}

// normalizeValue turns Go maps built by callers into RawFindings so nested objects
// look the same whether they came from JSON text or from code.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return RawFindingFromMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = normalizeValue(t[i])
		}
		return out
	default:
		return v
	}
}

func marshalOrdered(keys []string, values []interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(values[i])
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// unmarshalOrdered calls fn for every member of a JSON object in document order.
func unmarshalOrdered(data []byte, fn func(key string, raw []byte) error) error {
	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	var cbErr error
	iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		raw := append([]byte(nil), it.SkipAndReturnBytes()...)
		cbErr = fn(key, raw)
		return cbErr == nil
	})
	if cbErr != nil {
		return cbErr
	}
	return iter.Error
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
