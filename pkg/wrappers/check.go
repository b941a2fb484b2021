package wrappers

import (
	"context"
	"fmt"

	"github.com/user/workspace-audit/pkg/checks"
	"github.com/user/workspace-audit/pkg/engine"
)

// CheckWrapper exposes one audit check as a tool named after the check.
type CheckWrapper struct {
	Check checks.Check
	Env   *checks.Env
}

func (c *CheckWrapper) Name() string {
	return c.Check.ID
}

func (c *CheckWrapper) Description() string {
	if c.Check.Live {
		return c.Check.Description + "."
	}
	return c.Check.Description + ". Returns what an administrator has to verify in the admin console."
}

func (c *CheckWrapper) Schema() map[string]interface{} {
	return domainSchema()
}

func (c *CheckWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	if c.Env == nil {
		return "Error: audit environment not initialized.", nil
	}
	env := envFor(c.Env, args)
	if c.Check.Live && env.Directory == nil {
		return "Error: no Workspace credentials configured. Run 'wsaudit config setup' first.", nil
	}
	if progress != nil {
		progress(fmt.Sprintf("Running %s...", c.Check.ID))
	}

	payload, err := c.Check.Run(ctx, env)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		payload = c.Check.ErrorPayload(env, err)
	}
	out, err := engine.MarshalIndent(payload)
	if err != nil {
		return fmt.Sprintf("Error encoding result: %v", err), nil
	}
	return string(out), nil
}

// CheckTools returns a tool per check in registry order.
func CheckTools(reg *checks.Registry, env *checks.Env) []*CheckWrapper {
	all := reg.All()
	out := make([]*CheckWrapper, 0, len(all))
	for _, c := range all {
		out = append(out, &CheckWrapper{Check: c, Env: env})
	}
	return out
}

// envFor returns env with the domain argument applied.
func envFor(env *checks.Env, args map[string]interface{}) *checks.Env {
	d, _ := args["domain"].(string)
	if d == "" || d == env.Domain {
		return env
	}
	cp := *env
	cp.Domain = d
	return &cp
}

func domainSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"domain": map[string]interface{}{
				"type":        "string",
				"description": "The Google Workspace domain to audit",
			},
		},
		"required": []string{"domain"},
	}
}

// stringArgs reads a list argument that may arrive as a list or a comma separated
// string.
func stringArgs(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return splitList(t)
	}
	return nil
}
