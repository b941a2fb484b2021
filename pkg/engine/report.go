package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/user/workspace-audit/pkg/controlmap"
)

const (
	AuditScope           = "Multi-Framework Compliance - Google Workspace"
	StatusAcceptable     = "ACCEPTABLE"
	StatusNeedsAttention = "NEEDS ATTENTION"
	ScoreNotApplicable   = "N/A"
	defaultContext       = "No additional context provided"
	recommendCritical    = "CRITICAL: Address 2FA and admin access issues immediately"
	recommendHigh        = "HIGH: Review external sharing and inactive accounts"
	recommendLicensing   = "LICENSING: Enterprise features may be required for full compliance"
)

// NextSteps are emitted with every report.
var NextSteps = []string{
	"Review all FAIL findings and prioritize remediation by risk level",
	"Address critical issues (2FA, admin access) within 24-48 hours",
	"Develop remediation plan for high-priority issues",
	"Schedule manual verification checks for items requiring admin console review",
	"Consider licensing upgrades if Enterprise features are needed for compliance",
	"Implement continuous monitoring for ongoing compliance",
}

// Report is the compliance report document.
type Report struct {
	Metadata                Metadata          `json:"report_metadata"`
	Summary                 ExecutiveSummary  `json:"executive_summary"`
	ByFramework             FrameworkFindings `json:"findings_by_framework"`
	ByControlArea           ControlAreas      `json:"findings_by_control_area"`
	PriorityRecommendations []string          `json:"priority_recommendations"`
	MSPSummary              MSPSummary        `json:"msp_value_summary"`
	AdditionalContext       string            `json:"additional_context"`
	NextSteps               []string          `json:"next_steps"`
}

type Metadata struct {
	ReportID           string    `json:"report_id"`
	Domain             string    `json:"domain"`
	GeneratedAt        time.Time `json:"generated_at"`
	AuditScope         string    `json:"audit_scope"`
	FrameworksAssessed []string  `json:"frameworks_assessed"`
	TotalChecks        int       `json:"total_checks"`
	Passed             int       `json:"passed"`
	Failed             int       `json:"failed"`
	Warnings           []Warning `json:"warnings,omitempty"`
}

type ExecutiveSummary struct {
	OverallStatus          string          `json:"overall_status"`
	CriticalIssues         int             `json:"critical_issues"`
	HighPriorityIssues     int             `json:"high_priority_issues"`
	MediumPriorityIssues   int             `json:"medium_priority_issues"`
	OverallComplianceScore string          `json:"overall_compliance_score"`
	FrameworkScores        FrameworkScores `json:"framework_scores"`
	KeyFindings            []string        `json:"key_findings"`
}

// FrameworkScore is the pass rate for one framework.
type FrameworkScore struct {
	Framework     controlmap.Framework `json:"-"`
	TotalControls int                  `json:"total_controls"`
	Passed        int                  `json:"passed"`
	Failed        int                  `json:"failed"`
	Score         string               `json:"score"`
}

// Percent returns the numeric score, false for "N/A".
func (s FrameworkScore) Percent() (int, bool) {
	return ParseScore(s.Score)
}

// FrameworkScores encodes as a JSON object keyed by framework, in slice order.
type FrameworkScores []FrameworkScore

func (s FrameworkScores) Get(f controlmap.Framework) (FrameworkScore, bool) {
	for _, fs := range s {
		if fs.Framework == f {
			return fs, true
		}
	}
	return FrameworkScore{}, false
}

func (s FrameworkScores) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(s))
	values := make([]interface{}, len(s))
	for i, fs := range s {
		keys[i] = string(fs.Framework)
		values[i] = fs
	}
	return marshalOrdered(keys, values)
}

func (s *FrameworkScores) UnmarshalJSON(data []byte) error {
	out := FrameworkScores{}
	err := unmarshalOrdered(data, func(key string, raw []byte) error {
		var fs FrameworkScore
		if err := json.Unmarshal(raw, &fs); err != nil {
			return fmt.Errorf("framework score %s: %w", key, err)
		}
		fs.Framework = controlmap.Framework(key)
		out = append(out, fs)
		return nil
	})
	if err != nil {
		return err
	}
	*s = out
	return nil
}

// FrameworkFindings encodes as a JSON object of framework -> findings.
type FrameworkFindings []FrameworkBucket

func (b FrameworkFindings) Get(f controlmap.Framework) ([]FrameworkFinding, bool) {
	for _, bucket := range b {
		if bucket.Framework == f {
			return bucket.Findings, true
		}
	}
	return nil, false
}

func (b FrameworkFindings) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(b))
	values := make([]interface{}, len(b))
	for i, bucket := range b {
		keys[i] = string(bucket.Framework)
		values[i] = bucket.Findings
	}
	return marshalOrdered(keys, values)
}

func (b *FrameworkFindings) UnmarshalJSON(data []byte) error {
	out := FrameworkFindings{}
	err := unmarshalOrdered(data, func(key string, raw []byte) error {
		bucket := FrameworkBucket{Framework: controlmap.Framework(key)}
		if err := json.Unmarshal(raw, &bucket.Findings); err != nil {
			return fmt.Errorf("findings for %s: %w", key, err)
		}
		out = append(out, bucket)
		return nil
	})
	if err != nil {
		return err
	}
	*b = out
	return nil
}

type ControlArea struct {
	ControlFamily string    `json:"control_family"`
	TotalChecks   int       `json:"total_checks"`
	Passed        int       `json:"passed"`
	Failed        int       `json:"failed"`
	Findings      []Finding `json:"findings"`
}

type ControlAreas struct {
	AccessControl       ControlArea `json:"access_control"`
	Authentication      ControlArea `json:"authentication"`
	AuditAccountability ControlArea `json:"audit_accountability"`
	SystemProtection    ControlArea `json:"system_protection"`
}

// FamilyArea pairs a control area with its family.
type FamilyArea struct {
	Family Family
	Area   ControlArea
}

// Areas returns the four areas in report order.
func (c ControlAreas) Areas() []FamilyArea {
	return []FamilyArea{
		{Family: FamilyAccessControl, Area: c.AccessControl},
		{Family: FamilyAuthentication, Area: c.Authentication},
		{Family: FamilyAuditAccountability, Area: c.AuditAccountability},
		{Family: FamilySystemProtection, Area: c.SystemProtection},
	}
}

type MSPSummary struct {
	TotalOpportunities       int               `json:"total_opportunities"`
	CostOptimization         []CostOpportunity `json:"cost_optimization"`
	LicensingRecommendations []LicensingImpact `json:"licensing_recommendations"`
}

// synthesis carries everything the report is built from.
type synthesis struct {
	id           string
	domain       string
	now          time.Time
	assessed     []string
	findings     []Finding
	classes      Classification
	counts       RiskCounts
	costs        []CostOpportunity
	licensing    []LicensingImpact
	contextNotes string
	warnings     []Warning
}

func synthesize(s synthesis) *Report {
	r := &Report{
		Metadata: Metadata{
			ReportID:           s.id,
			Domain:             s.domain,
			GeneratedAt:        s.now.UTC(),
			AuditScope:         AuditScope,
			FrameworksAssessed: s.assessed,
			TotalChecks:        s.counts.Total,
			Passed:             s.counts.Passed(),
			Failed:             s.counts.Failed(),
			Warnings:           s.warnings,
		},
		Summary: ExecutiveSummary{
			OverallStatus:          StatusNeedsAttention,
			CriticalIssues:         s.counts.Critical,
			HighPriorityIssues:     s.counts.High,
			MediumPriorityIssues:   s.counts.Medium,
			OverallComplianceScore: percent(s.counts.Passed(), s.counts.Total),
			FrameworkScores:        FrameworkScores{},
			KeyFindings:            keyFindings(s.counts, len(s.costs)),
		},
		ByFramework:             FrameworkFindings(s.classes.Frameworks),
		PriorityRecommendations: priorityRecommendations(s.counts, len(s.licensing)),
		MSPSummary: MSPSummary{
			TotalOpportunities:       len(s.costs),
			CostOptimization:         s.costs,
			LicensingRecommendations: s.licensing,
		},
		AdditionalContext: s.contextNotes,
		NextSteps:         append([]string(nil), NextSteps...),
	}
	if s.counts.Acceptable() {
		r.Summary.OverallStatus = StatusAcceptable
	}
	if r.ByFramework == nil {
		r.ByFramework = FrameworkFindings{}
	}
	if strings.TrimSpace(r.AdditionalContext) == "" {
		r.AdditionalContext = defaultContext
	}

	for _, bucket := range s.classes.Frameworks {
		total, passed := len(bucket.Findings), bucket.Passed()
		score := ScoreNotApplicable
		if total > 0 {
			score = percent(passed, total)
		}
		r.Summary.FrameworkScores = append(r.Summary.FrameworkScores, FrameworkScore{
			Framework:     bucket.Framework,
			TotalControls: total,
			Passed:        passed,
			Failed:        total - passed,
			Score:         score,
		})
	}

	r.ByControlArea = ControlAreas{
		AccessControl:       controlArea(FamilyAccessControl, s.classes.Families[FamilyAccessControl]),
		Authentication:      controlArea(FamilyAuthentication, s.classes.Families[FamilyAuthentication]),
		AuditAccountability: controlArea(FamilyAuditAccountability, s.classes.Families[FamilyAuditAccountability]),
		SystemProtection:    controlArea(FamilySystemProtection, s.classes.Families[FamilySystemProtection]),
	}
	return r
}

func controlArea(f Family, findings []Finding) ControlArea {
	if findings == nil {
		findings = []Finding{}
	}
	failed := Score(findings).Failed()
	return ControlArea{
		ControlFamily: f.Label(),
		TotalChecks:   len(findings),
		Passed:        len(findings) - failed,
		Failed:        failed,
		Findings:      findings,
	}
}

func keyFindings(c RiskCounts, opportunities int) []string {
	out := []string{}
	if c.Critical > 0 {
		out = append(out, fmt.Sprintf("%d critical security issues require immediate attention", c.Critical))
	}
	if c.High > 0 {
		out = append(out, fmt.Sprintf("%d high-priority issues identified", c.High))
	}
	if opportunities > 0 {
		out = append(out, fmt.Sprintf("%d opportunities for cost optimization identified", opportunities))
	}
	return out
}

func priorityRecommendations(c RiskCounts, licensing int) []string {
	out := []string{}
	if c.Critical > 0 {
		out = append(out, recommendCritical)
	}
	if c.High > 0 {
		out = append(out, recommendHigh)
	}
	if licensing > 0 {
		out = append(out, recommendLicensing)
	}
	return out
}

// percent rounds half up. A zero total reads as 0%.
func percent(passed, total int) string {
	if total == 0 {
		return "0%"
	}
	return strconv.Itoa(int(math.Floor(100*float64(passed)/float64(total)+0.5))) + "%"
}

// ParseScore reads a "NN%" score. "N/A" and anything else return false.
func ParseScore(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil || !strings.HasSuffix(strings.TrimSpace(s), "%") {
		return 0, false
	}
	return n, true
}
