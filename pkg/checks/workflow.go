package checks

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/user/workspace-audit/pkg/controlmap"
)

// ErrNoFrameworks is returned when an audit is started without any framework.
var ErrNoFrameworks = errors.New("no compliance frameworks selected")

// Phase is one step of a guided audit: a group of checks and the questions to ask
// the operator once their results are shown.
type Phase struct {
	Number    int
	Name      string
	Checks    []string
	Questions []string
}

// Plan is a guided audit for one domain.
type Plan struct {
	Domain           string
	Frameworks       []controlmap.Framework
	ContextQuestions []string
	Phases           []Phase
}

var areaQuestions = map[string][]string{
	AreaAccessControl: {
		"Are there any users without 2FA that should be exceptions (service accounts)?",
		"Can you provide context on external group members or sharing?",
	},
	AreaAuthentication: {
		"Are any inactive accounts intentional (seasonal workers, extended leave)?",
	},
	AreaAudit: {
		"Do you have a SIEM or log aggregation system?",
		"Are you exporting audit logs for long-term retention (1+ year for CMMC)?",
	},
	AreaSystemProtection: {
		"Do you have a BYOD policy or corporate device policy?",
		"Are you handling ITAR-controlled data that requires US-only residency?",
	},
	AreaMSPOperations: {
		"Would you like recommendations on removing inactive licenses for cost savings?",
		"Are external shared drive accesses business-critical?",
	},
}

// NoFrameworksMessage asks the operator to choose frameworks.
func NoFrameworksMessage() string {
	var b strings.Builder
	b.WriteString("ERROR: No compliance frameworks selected. Please ask the user which framework(s) they want to assess against:\n\n")
	for _, f := range controlmap.Frameworks {
		info, _ := controlmap.Info(f)
		fmt.Fprintf(&b, "- %s (%s)\n", info.DisplayName, info.Audience)
	}
	b.WriteString("\nThen call this tool again with the selected frameworks.")
	return b.String()
}

// NewPlan builds the phases of an audit of domain. Unknown framework ids are an error
// here: the operator is still choosing.
func (r *Registry) NewPlan(domain string, ids []string) (*Plan, error) {
	if len(lo.Compact(ids)) == 0 {
		return nil, ErrNoFrameworks
	}
	var frameworks []controlmap.Framework
	for _, id := range lo.Compact(ids) {
		f, ok := controlmap.ParseFramework(id)
		if !ok {
			return nil, fmt.Errorf("unknown framework %q", id)
		}
		frameworks = append(frameworks, f)
	}
	frameworks = lo.Uniq(frameworks)

	p := &Plan{
		Domain:     domain,
		Frameworks: frameworks,
		ContextQuestions: []string{
			"Can you describe in a couple of sentences what your business does?",
			"How many employees does your organization have?",
		},
	}
	if lo.Contains(frameworks, controlmap.HIPAA) {
		p.ContextQuestions = append(p.ContextQuestions, "Does your organization handle Protected Health Information (PHI)?")
	}

	areas, byArea := r.ByArea(r.ForFrameworks(frameworks))
	for i, area := range areas {
		p.Phases = append(p.Phases, Phase{
			Number:    i + 1,
			Name:      area,
			Checks:    lo.Map(byArea[area], func(c Check, _ int) string { return c.ID }),
			Questions: areaQuestions[area],
		})
	}
	return p, nil
}

// Instructions renders the plan as the step-by-step guide handed to the agent.
func (p *Plan) Instructions(manual []string) string {
	names := lo.Map(p.Frameworks, func(f controlmap.Framework, _ int) string { return string(f) })

	var b strings.Builder
	fmt.Fprintf(&b, "# Compliance Audit Workflow Started for %s\n", p.Domain)
	fmt.Fprintf(&b, "## Selected Frameworks: %s\n\n", strings.Join(names, ", "))
	b.WriteString("## PHASE 0: BUSINESS CONTEXT (START HERE - DO NOT SKIP)\n\n")
	b.WriteString("Before running ANY checks, ask the user these questions:\n\n")
	writeNumbered(&b, p.ContextQuestions)
	b.WriteString("\nStore this information. It goes into context_notes of the final report.\n\n---\n\n")

	for _, ph := range p.Phases {
		fmt.Fprintf(&b, "## PHASE %d: %s (%d checks)\n\nRun these tools:\n", ph.Number, strings.ToUpper(ph.Name), len(ph.Checks))
		for _, id := range ph.Checks {
			fmt.Fprintf(&b, "- %s\n", id)
		}
		if len(ph.Questions) > 0 {
			b.WriteString("\nAfter displaying ALL results, STOP and ask:\n")
			writeNumbered(&b, ph.Questions)
			fmt.Fprintf(&b, "\nWAIT FOR THE USER'S RESPONSE before phase %d.\n", ph.Number+1)
		}
		b.WriteString("\n---\n\n")
	}

	verify := len(p.Phases) + 1
	fmt.Fprintf(&b, "## PHASE %d: MANUAL VERIFICATION (DO NOT SKIP)\n\n", verify)
	b.WriteString("For each check that returned \"Manual verification required\", walk the user through the admin console path from its what_to_check list and ask for a screenshot or the values they see. Decide PASS or FAIL from what they share.\n")
	if len(manual) > 0 {
		fmt.Fprintf(&b, "\nManual checks in this audit: %s\n", strings.Join(manual, ", "))
	}
	fmt.Fprintf(&b, "\nFor email authentication, ask for the TXT records of %s, google._domainkey.%s and _dmarc.%s.\n\n---\n\n", p.Domain, p.Domain, p.Domain)

	fmt.Fprintf(&b, "## PHASE %d: GENERATE COMPREHENSIVE REPORT\n\n", verify+1)
	b.WriteString("Build a findings object keyed by check id with each check's result, then call generate_comprehensive_report with:\n")
	fmt.Fprintf(&b, "- domain: %s\n", p.Domain)
	b.WriteString("- findings: the findings object (a JSON object, not a string)\n")
	fmt.Fprintf(&b, "- active_frameworks: [%s]\n", strings.Join(lo.Map(names, func(n string, _ int) string { return `"` + n + `"` }), ", "))
	b.WriteString("- context_notes: business context, every answer from the phases and the manual verification results\n")
	return b.String()
}

// ManualChecks returns the ids of the plan's checks that need an administrator.
func (r *Registry) ManualChecks(p *Plan) []string {
	var out []string
	for _, ph := range p.Phases {
		for _, id := range ph.Checks {
			if c, err := r.Get(id); err == nil && !c.Live {
				out = append(out, id)
			}
		}
	}
	return out
}

func writeNumbered(b *strings.Builder, items []string) {
	for i, q := range items {
		fmt.Fprintf(b, "%d. %q\n", i+1, q)
	}
}
