package controlmap

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed controls.yaml
var defaultControls []byte

// ControlMap is the immutable check id -> Mapping table. It is built once and handed
// to whoever needs it; nothing in this package keeps a global instance.
type ControlMap struct {
	checks map[string]Mapping
	order  []string
}

// Row is one check of a ControlMap.
type Row struct {
	CheckID string
	Mapping Mapping
}

// New builds a ControlMap from rows. Later rows for the same check replace earlier
// ones but keep the original position.
func New(rows ...Row) *ControlMap {
	cm := &ControlMap{checks: make(map[string]Mapping, len(rows))}
	for _, r := range rows {
		if _, ok := cm.checks[r.CheckID]; !ok {
			cm.order = append(cm.order, r.CheckID)
		}
		cm.checks[r.CheckID] = r.Mapping
	}
	return cm
}

// Default returns a fresh copy of the built-in table.
func Default() *ControlMap {
	cm, err := Parse(defaultControls)
	if err != nil {
		panic(fmt.Errorf("parsing embedded control map: %v", err))
	}
	return cm
}

// Lookup returns the mapping for a check.
func (c *ControlMap) Lookup(checkID string) (Mapping, bool) {
	if c == nil {
		return Mapping{}, false
	}
	m, ok := c.checks[checkID]
	return m, ok
}

// Checks returns the check ids in table order.
func (c *ControlMap) Checks() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *ControlMap) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// ChecksFor returns the checks that carry a control code for framework f.
func (c *ControlMap) ChecksFor(f Framework) []string {
	var out []string
	for _, id := range c.Checks() {
		if _, ok := c.checks[id].Code(f); ok {
			out = append(out, id)
		}
	}
	return out
}

type yamlChecks []Row

func (r *yamlChecks) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: checks must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var m Mapping
		if err := node.Content[i+1].Decode(&m); err != nil {
			return err
		}
		*r = append(*r, Row{CheckID: node.Content[i].Value, Mapping: m})
	}
	return nil
}

type yamlFile struct {
	Checks yamlChecks `yaml:"checks"`
}

// Parse reads a YAML control map document:
//
//	checks:
//	  check_2fa_status:
//	    CMMC: IA.L2-3.5.3
//	    HIPAA: 164.312(d)
func Parse(data []byte) (*ControlMap, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing control map: %w", err)
	}
	return New(f.Checks...), nil
}

// ParseTOML reads the same document shape written as TOML ([checks.<id>] tables).
func ParseTOML(data []byte) (*ControlMap, error) {
	var doc struct {
		Checks map[string]map[string]string `toml:"checks"`
	}
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, fmt.Errorf("parsing control map: %w", err)
	}

	// MetaData keeps document order, the decoded maps do not.
	var (
		rows  []Row
		index = map[string]int{}
	)
	for _, key := range md.Keys() {
		if len(key) != 3 || key[0] != "checks" {
			continue
		}
		checkID, fw := key[1], key[2]
		i, ok := index[checkID]
		if !ok {
			i = len(rows)
			index[checkID] = i
			rows = append(rows, Row{CheckID: checkID})
		}
		f, _ := ParseFramework(fw)
		rows[i].Mapping.add(f, doc.Checks[checkID][fw])
	}
	return New(rows...), nil
}

// LoadFile reads a control map from a .yaml, .yml or .toml file.
func LoadFile(path string) (*ControlMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return Parse(data)
	case ".toml":
		return ParseTOML(data)
	default:
		return nil, fmt.Errorf("unsupported control map format: %s", filepath.Base(path))
	}
}
