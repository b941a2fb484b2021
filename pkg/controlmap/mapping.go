package controlmap

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one framework -> control code association.
type Entry struct {
	Framework Framework
	Code      string
}

// Mapping associates a check with zero or more framework control codes. Entries keep
// the order they were declared in; the first code declared for a framework wins.
type Mapping struct {
	entries []Entry
}

// NewMapping builds a Mapping, dropping empty codes and repeated frameworks.
func NewMapping(entries ...Entry) Mapping {
	m := Mapping{}
	for _, e := range entries {
		m.add(e.Framework, e.Code)
	}
	return m
}

// MappingFromStrings builds a Mapping from framework names as written by a check.
// Names are normalized with ParseFramework.
func MappingFromStrings(keys []string, codes map[string]string) Mapping {
	m := Mapping{}
	for _, k := range keys {
		f, _ := ParseFramework(k)
		m.add(f, codes[k])
	}
	return m
}

func (m *Mapping) add(f Framework, code string) {
	if code == "" || f == "" {
		return
	}
	if _, ok := m.Code(f); ok {
		return
	}
	m.entries = append(m.entries, Entry{Framework: f, Code: code})
}

// Code returns the control code for a framework.
func (m Mapping) Code(f Framework) (string, bool) {
	for _, e := range m.entries {
		if e.Framework == f {
			return e.Code, true
		}
	}
	return "", false
}

func (m Mapping) Len() int {
	return len(m.entries)
}

func (m Mapping) IsEmpty() bool {
	return len(m.entries) == 0
}

// Entries returns a copy of the mapping entries.
func (m Mapping) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// MarshalJSON writes the mapping as a JSON object in declaration order.
func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(string(e.Framework))
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Code)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of framework -> code, keeping key order.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	out := Mapping{}
	iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		code := it.ReadString()
		f, _ := ParseFramework(key)
		out.add(f, code)
		return true
	})
	if iter.Error != nil {
		return fmt.Errorf("decoding control mapping: %w", iter.Error)
	}
	*m = out
	return nil
}

// UnmarshalYAML reads a YAML mapping of framework -> code, keeping key order.
func (m *Mapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: control mapping must be a mapping", node.Line)
	}
	out := Mapping{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: control code for %s must be a string", v.Line, k.Value)
		}
		f, _ := ParseFramework(k.Value)
		out.add(f, v.Value)
	}
	*m = out
	return nil
}
