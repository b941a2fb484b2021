package wrappers

import (
	"context"
	"errors"
	"sync"

	"github.com/user/workspace-audit/pkg/checks"
	"github.com/user/workspace-audit/pkg/controlmap"
	"github.com/user/workspace-audit/pkg/engine"
)

// Session keeps the last report of an interactive run for the snapshot tools.
type Session struct {
	mu   sync.Mutex
	last *engine.Report
}

func (s *Session) SetReport(r *engine.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = r
}

func (s *Session) Report() *engine.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// StartAuditWrapper returns the phased instructions of a guided audit.
type StartAuditWrapper struct {
	Registry *checks.Registry
}

func (s *StartAuditWrapper) Name() string {
	return "start_compliance_audit"
}

func (s *StartAuditWrapper) Description() string {
	return "Start a comprehensive Google Workspace compliance audit. IMPORTANT: Before calling this tool, you MUST first ask the user which compliance framework(s) they want to assess against. Present these options: CMMC (defense contractors), NIST 800-171 (government contractors), NIST CSF (general cybersecurity), ISO 27001 (international standard), HIPAA (healthcare), FTC Safeguards Rule (financial services). Do NOT call this tool until the user has selected their framework(s)."
}

func (s *StartAuditWrapper) Schema() map[string]interface{} {
	ids := make([]string, 0, len(controlmap.Frameworks))
	for _, f := range controlmap.Frameworks {
		ids = append(ids, string(f))
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"domain": map[string]interface{}{
				"type":        "string",
				"description": "The Google Workspace domain to audit",
			},
			"frameworks": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string", "enum": ids},
				"description": "REQUIRED: Compliance frameworks selected by user. Must ask user first.",
			},
		},
		"required": []string{"domain", "frameworks"},
	}
}

func (s *StartAuditWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	if s.Registry == nil {
		return "Error: check registry not initialized.", nil
	}
	domain, _ := args["domain"].(string)
	plan, err := s.Registry.NewPlan(domain, stringArgs(args["frameworks"]))
	if errors.Is(err, checks.ErrNoFrameworks) {
		return checks.NoFrameworksMessage(), nil
	}
	if err != nil {
		return "Error: " + err.Error() + "\n\n" + checks.NoFrameworksMessage(), nil
	}
	return plan.Instructions(s.Registry.ManualChecks(plan)), nil
}

// ReportWrapper builds the compliance report from collected check results.
type ReportWrapper struct {
	Engine  *engine.Engine
	Session *Session
}

func (r *ReportWrapper) Name() string {
	return "generate_comprehensive_report"
}

func (r *ReportWrapper) Description() string {
	return "Generate the final multi-framework compliance report from all check results. Pass findings as an object keyed by check id, e.g. {\"check_2fa_status\": {...}, \"check_admin_roles\": {...}}."
}

func (r *ReportWrapper) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"domain": map[string]interface{}{
				"type":        "string",
				"description": "The Google Workspace domain",
			},
			"findings": map[string]interface{}{
				"type":        "object",
				"free_form":   true,
				"description": "All check results keyed by check id",
			},
			"active_frameworks": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Frameworks to score (default CMMC)",
			},
			"context_notes": map[string]interface{}{
				"type":        "string",
				"description": "Business context, answers and manual verification results",
			},
		},
		"required": []string{"domain", "findings"},
	}
}

func (r *ReportWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	if r.Engine == nil {
		return "Error: report engine not initialized.", nil
	}
	req := engine.Request{Findings: args["findings"], Frameworks: stringArgs(args["active_frameworks"])}
	req.Domain, _ = args["domain"].(string)
	req.ContextNotes, _ = args["context_notes"].(string)

	report, _, err := r.Engine.Generate(req)
	if err != nil {
		return string(r.Engine.Render(req)), nil
	}
	if r.Session != nil {
		r.Session.SetReport(report)
	}
	out, err := engine.MarshalIndent(report)
	if err != nil {
		return string(r.Engine.Render(req)), nil
	}
	return string(out), nil
}
