package checks

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/user/workspace-audit/pkg/controlmap"
	"github.com/user/workspace-audit/pkg/engine"
)

//go:embed manual.yaml
var manualDefinitions []byte

type manualDefinition struct {
	ID          string    `yaml:"id"`
	Area        string    `yaml:"area"`
	OnlyFor     string    `yaml:"only_for"`
	Description string    `yaml:"description"`
	Payload     yaml.Node `yaml:"payload"`
}

func manualChecks() []Check {
	checks, err := parseManual(manualDefinitions)
	if err != nil {
		panic(fmt.Errorf("parsing embedded manual checks: %v", err))
	}
	return checks
}

func parseManual(data []byte) ([]Check, error) {
	var doc struct {
		Checks []manualDefinition `yaml:"checks"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	out := make([]Check, 0, len(doc.Checks))
	for _, d := range doc.Checks {
		if d.Payload.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%s: payload must be a mapping", d.ID)
		}
		body, err := nodeValue(&d.Payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.ID, err)
		}
		c := Check{
			ID:          d.ID,
			Description: d.Description,
			Area:        d.Area,
			run:         manualRun(d.ID, body.(*engine.RawFinding)),
		}
		if d.OnlyFor != "" {
			f, ok := controlmap.ParseFramework(d.OnlyFor)
			if !ok {
				return nil, fmt.Errorf("%s: unknown framework %q", d.ID, d.OnlyFor)
			}
			c.OnlyFor = f
		}
		out = append(out, c)
	}
	return out, nil
}

func manualRun(id string, body *engine.RawFinding) func(context.Context, *Env) (*engine.RawFinding, error) {
	return func(_ context.Context, env *Env) (*engine.RawFinding, error) {
		p := newPayload(env, id)
		for _, k := range body.Keys() {
			v, _ := body.Get(k)
			p.Set(k, v)
		}
		return p, nil
	}
}

// nodeValue converts a YAML node into the values a payload holds, keeping mapping
// order.
func nodeValue(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.MappingNode:
		obj := engine.NewRawFinding()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Set(n.Content[i].Value, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		list := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	default:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}
