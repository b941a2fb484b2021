package wrappers

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/user/workspace-audit/pkg/checks"
	"github.com/user/workspace-audit/pkg/controlmap"
	"github.com/user/workspace-audit/pkg/engine"
)

// RunChecksWrapper runs a batch of checks at once: every check that applies to a set
// of frameworks, or the named ones.
type RunChecksWrapper struct {
	Registry    *checks.Registry
	Env         *checks.Env
	Concurrency int
}

func (c *RunChecksWrapper) Name() string {
	return "run_checks"
}

func (c *RunChecksWrapper) Description() string {
	return "Runs several audit checks concurrently and returns their results as one findings object keyed by check id, ready for generate_comprehensive_report. Pass frameworks to run every applicable check, or check_ids for specific ones."
}

func (c *RunChecksWrapper) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"domain": map[string]interface{}{
				"type":        "string",
				"description": "The Google Workspace domain to audit",
			},
			"frameworks": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Frameworks whose checks to run (default CMMC)",
			},
			"check_ids": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Specific check ids to run. Overrides frameworks.",
			},
		},
		"required": []string{"domain"},
	}
}

func (c *RunChecksWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	if c.Registry == nil || c.Env == nil {
		return "Error: audit environment not initialized.", nil
	}
	env := envFor(c.Env, args)

	var selected []checks.Check
	if ids := stringArgs(args["check_ids"]); len(ids) > 0 {
		var err error
		if selected, err = c.Registry.Select(ids); err != nil {
			return fmt.Sprintf("Error: %v. Available: %s", err,
				strings.Join(lo.Map(c.Registry.All(), func(ch checks.Check, _ int) string { return ch.ID }), ", ")), nil
		}
	} else {
		selected = c.Registry.ForFrameworks(parseFrameworks(stringArgs(args["frameworks"])))
	}
	if env.Directory == nil {
		selected = lo.Filter(selected, func(ch checks.Check, _ int) bool { return !ch.Live })
		if len(selected) == 0 {
			return "Error: no Workspace credentials configured. Run 'wsaudit config setup' first.", nil
		}
	}

	runner := &checks.Runner{Env: env, Concurrency: c.Concurrency, Progress: progress}
	results, err := runner.Run(ctx, selected)
	if err != nil {
		return "", err
	}

	out, err := engine.MarshalIndent(checks.Collect(results))
	if err != nil {
		return fmt.Sprintf("Error encoding results: %v", err), nil
	}
	failed := lo.CountBy(results, func(r checks.Result) bool { return r.Err != nil })
	return fmt.Sprintf("Ran %d checks (%d could not complete).\n%s", len(results), failed, out), nil
}

// parseFrameworks keeps the known frameworks of ids, defaulting to CMMC.
func parseFrameworks(ids []string) []controlmap.Framework {
	var out []controlmap.Framework
	for _, id := range ids {
		if f, ok := controlmap.ParseFramework(id); ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return []controlmap.Framework{controlmap.CMMC}
	}
	return lo.Uniq(out)
}

func splitList(s string) []string {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string { return strings.TrimSpace(p) })
	return lo.Compact(parts)
}
