package engine

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user/workspace-audit/pkg/controlmap"
	"github.com/user/workspace-audit/pkg/logging"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(cm *controlmap.ControlMap) *Engine {
	return New(cm,
		WithLogger(logging.NewTestLog()),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "report-1" }),
	)
}

func TestGenerate2FAScenario(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	report, warnings, err := e.Generate(Request{
		Domain:     "example.com",
		Frameworks: []string{"CMMC"},
		Findings:   `{"check_2fa_status": {"users_without_mfa": 3, "compliance_mappings": {"CMMC": "IA.L2-3.5.3"}}}`,
	})
	r.NoError(err)
	r.Empty(warnings)

	r.Equal("report-1", report.Metadata.ReportID)
	r.Equal(fixedNow, report.Metadata.GeneratedAt)
	r.Equal(AuditScope, report.Metadata.AuditScope)
	r.Equal(1, report.Metadata.TotalChecks)
	r.Equal(0, report.Metadata.Passed)
	r.Equal(1, report.Metadata.Failed)

	r.Equal(1, report.Summary.CriticalIssues)
	r.Equal(StatusNeedsAttention, report.Summary.OverallStatus)
	r.Equal("0%", report.Summary.OverallComplianceScore)

	score, ok := report.Summary.FrameworkScores.Get(controlmap.CMMC)
	r.True(ok)
	r.Equal("0%", score.Score)
	r.Equal(1, score.TotalControls)

	auth := report.ByControlArea.Authentication
	r.Equal(1, auth.TotalChecks)
	r.Equal(1, auth.Failed)
	f := auth.Findings[0]
	r.Equal(StatusFail, f.Status)
	r.Equal(SeverityCritical, f.Severity)
	r.Equal(FamilyAuthentication, f.Family)
	r.Equal([]string{"users_without_mfa"}, f.Signals)
	r.Equal(noRecommendation, f.Recommendation)

	cmmc, ok := report.ByFramework.Get(controlmap.CMMC)
	r.True(ok)
	r.Len(cmmc, 1)
	r.Equal("IA.L2-3.5.3", cmmc[0].ControlCode)

	r.Equal([]string{"1 critical security issues require immediate attention"}, report.Summary.KeyFindings)
	r.Equal([]string{recommendCritical}, report.PriorityRecommendations)
	r.Equal(NextSteps, report.NextSteps)
	r.Equal(defaultContext, report.AdditionalContext)
}

func TestManualCheckPassesByDefault(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	report, _, err := e.Generate(Request{
		Findings: map[string]interface{}{
			"check_calendar_sharing": map[string]interface{}{"status": "Manual verification required"},
		},
	})
	r.NoError(err)
	r.Equal(1, report.Metadata.Passed)
	r.Equal(StatusAcceptable, report.Summary.OverallStatus)
	r.Equal("100%", report.Summary.OverallComplianceScore)
	r.Equal([]string{"CMMC"}, report.Metadata.FrameworksAssessed)

	f := report.ByControlArea.AccessControl.Findings[0]
	r.Equal(StatusPass, f.Status)
	r.Empty(f.Severity)
}

func TestEmptyFindings(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	for _, in := range []interface{}{map[string]interface{}{}, "{}", NewRawFindings()} {
		report, _, err := e.Generate(Request{Findings: in, Frameworks: []string{"CMMC", "HIPAA"}})
		r.NoError(err)
		r.Equal(0, report.Metadata.TotalChecks)
		r.Equal("0%", report.Summary.OverallComplianceScore)
		r.Equal(StatusAcceptable, report.Summary.OverallStatus)
		for _, fs := range report.Summary.FrameworkScores {
			r.Equal(ScoreNotApplicable, fs.Score)
		}
		r.Len(report.NextSteps, 6)
	}
}

func TestDegradedEntries(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	report, warnings, err := e.Generate(Request{
		Findings: `{"check_admin_roles": null, "check_groups_external": "oops", "check_inactive_accounts": {"inactive_accounts": 2}}`,
	})
	r.NoError(err)
	r.Equal(1, report.Metadata.TotalChecks)
	r.Equal(1, report.Summary.HighPriorityIssues)

	r.Len(warnings, 2)
	r.Equal(WarningDegradedEntry, warnings[0].Kind)
	r.Equal("check_admin_roles", warnings[0].Subject)
	r.Contains(warnings[0].Message, "null")
	r.Equal("check_groups_external", warnings[1].Subject)
	r.Contains(warnings[1].Message, "string")
	r.Equal(warnings, report.Metadata.Warnings)
}

func TestMalformedInput(t *testing.T) {
	e := newTestEngine(controlmap.Default())

	tests := []struct {
		name     string
		in       interface{}
		received string
		message  string
	}{
		{name: "bad json", in: `{"check_2fa_status": `, received: "string", message: parseFailedMessage},
		{name: "json array", in: `[1, 2]`, received: "string", message: parseFailedMessage},
		{name: "number", in: 42, received: "number", message: invalidFormatMessage},
		{name: "bool", in: true, received: "boolean", message: invalidFormatMessage},
		{name: "nil", in: nil, received: "null", message: invalidFormatMessage},
		{name: "slice", in: []interface{}{"a"}, received: "array", message: invalidFormatMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			_, _, err := e.Generate(Request{Findings: tt.in})
			var malformed *MalformedInputError
			r.True(errors.As(err, &malformed))
			r.Equal(tt.received, malformed.ReceivedType)

			var doc ErrorDocument
			r.NoError(json.Unmarshal(e.Render(Request{Findings: tt.in}), &doc))
			r.Equal(tt.message, doc.Error)
			r.Equal(findingsHelp, doc.Help)
			r.Equal(tt.received, doc.ReceivedType)
		})
	}
}

func TestInputFormEquivalence(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	text := `{
		"check_admin_roles": {"admin_count": 4, "recommendation": "Reduce super admins"},
		"check_2fa_status": {"users_without_mfa": 0, "mfa_enforced": true},
		"check_external_sharing": {"drives_with_external_access": 2, "compliance_mappings": {"CMMC": "AC.L2-3.1.22", "HIPAA": "164.312(e)(1)"}}
	}`
	asMap := map[string]interface{}{
		"check_admin_roles":      map[string]interface{}{"admin_count": 4, "recommendation": "Reduce super admins"},
		"check_2fa_status":       map[string]interface{}{"users_without_mfa": 0, "mfa_enforced": true},
		"check_external_sharing": map[string]interface{}{"drives_with_external_access": 2, "compliance_mappings": map[string]interface{}{"CMMC": "AC.L2-3.1.22", "HIPAA": "164.312(e)(1)"}},
	}
	sorted := `{
		"check_2fa_status": {"mfa_enforced": true, "users_without_mfa": 0},
		"check_admin_roles": {"admin_count": 4, "recommendation": "Reduce super admins"},
		"check_external_sharing": {"compliance_mappings": {"CMMC": "AC.L2-3.1.22", "HIPAA": "164.312(e)(1)"}, "drives_with_external_access": 2}
	}`

	req := Request{Domain: "example.com", Frameworks: []string{"CMMC", "HIPAA"}}

	req.Findings = text
	fromText := e.Render(req)
	req.Findings = []byte(text)
	r.Equal(string(fromText), string(e.Render(req)))

	// Go maps have no order, so they match the key-sorted document.
	req.Findings = asMap
	fromMap := e.Render(req)
	req.Findings = sorted
	r.Equal(string(e.Render(req)), string(fromMap))

	// Document order is preserved for text input.
	r.Less(strings.Index(string(fromText), `"check_admin_roles"`), strings.Index(string(fromText), `"check_2fa_status"`))
}

func TestFrameworkResolution(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	report, warnings, err := e.Generate(Request{
		Frameworks: []string{"HIPAA", "SOC2", "hipaa", "NIST 800-171"},
		Findings:   map[string]interface{}{"check_2fa_status": map[string]interface{}{"mfa_enforced": false}},
	})
	r.NoError(err)
	r.Equal([]string{"HIPAA", "SOC2", "NIST_800_171"}, report.Metadata.FrameworksAssessed)

	r.Len(report.Summary.FrameworkScores, 2)
	r.Equal(controlmap.HIPAA, report.Summary.FrameworkScores[0].Framework)
	r.Equal(controlmap.NIST800171, report.Summary.FrameworkScores[1].Framework)
	_, ok := report.ByFramework.Get(controlmap.Framework("SOC2"))
	r.False(ok)

	r.Len(warnings, 1)
	r.Equal(WarningUnknownFramework, warnings[0].Kind)
	r.Equal("SOC2", warnings[0].Subject)

	out := string(e.Render(Request{Frameworks: []string{"ISO_27001", "CMMC"}, Findings: "{}"}))
	r.Less(strings.Index(out, `"ISO_27001": {`), strings.Index(out, `"CMMC": {`))
}

func TestUnknownFrameworkKeepsCallerSpelling(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	report, warnings, err := e.Generate(Request{
		Frameworks: []string{"hipaa", " sox-2 ", "SOX_2", "pci dss"},
		Findings:   "{}",
	})
	r.NoError(err)
	r.Equal([]string{"HIPAA", "sox-2", "pci dss"}, report.Metadata.FrameworksAssessed)
	r.Len(report.Summary.FrameworkScores, 1)

	r.Len(warnings, 2)
	r.Equal("sox-2", warnings[0].Subject)
	r.Equal("pci dss", warnings[1].Subject)
}

func TestFamilyIndependentOfActiveFrameworks(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())
	findings := `{"check_suspicious_activity": {"suspicious_events_found": 1}}`

	a, _, err := e.Generate(Request{Frameworks: []string{"CMMC"}, Findings: findings})
	r.NoError(err)
	b, _, err := e.Generate(Request{Frameworks: []string{"HIPAA"}, Findings: findings})
	r.NoError(err)

	r.Equal(1, a.ByControlArea.AuditAccountability.TotalChecks)
	r.Equal(1, b.ByControlArea.AuditAccountability.TotalChecks)
	r.Equal(SeverityMedium, b.ByControlArea.AuditAccountability.Findings[0].Severity)
}

func TestCountsAddUp(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	findings := map[string]interface{}{
		"check_2fa_status":              map[string]interface{}{"users_without_mfa": 1},
		"check_admin_roles":             map[string]interface{}{"mfa_enforced": false},
		"check_inactive_accounts":       map[string]interface{}{"inactive_accounts": "5"},
		"check_groups_external_members": map[string]interface{}{"groups_with_external_members": true},
		"check_mobile_devices":          map[string]interface{}{"unencrypted_devices": 2},
		"check_audit_log_settings":      map[string]interface{}{"suspicious_events_found": 0},
		"check_password_policy":         map[string]interface{}{"status": "Manual verification required"},
		"check_unknown":                 map[string]interface{}{"users_without_mfa": ""},
		"check_broken":                  nil,
	}
	report, warnings, err := e.Generate(Request{Findings: findings})
	r.NoError(err)

	s := report.Summary
	r.Equal(2, s.CriticalIssues)
	r.Equal(2, s.HighPriorityIssues)
	r.Equal(1, s.MediumPriorityIssues)
	r.Equal(8, report.Metadata.TotalChecks)
	r.Equal(report.Metadata.TotalChecks, report.Metadata.Passed+s.CriticalIssues+s.HighPriorityIssues+s.MediumPriorityIssues)
	r.Equal("38%", s.OverallComplianceScore)
	r.Equal([]string{recommendCritical, recommendHigh}, report.PriorityRecommendations)

	kinds := map[WarningKind]int{}
	for _, w := range warnings {
		kinds[w.Kind]++
	}
	r.Equal(1, kinds[WarningDegradedEntry])
	r.Equal(1, kinds[WarningUnmappedControl])
}

func TestMappingResolution(t *testing.T) {
	cm := controlmap.New(controlmap.Row{
		CheckID: "check_static",
		Mapping: controlmap.NewMapping(controlmap.Entry{Framework: controlmap.CMMC, Code: "SC.L2-3.13.1"}),
	})
	n := NewNormalizer(cm, logging.NewTestLog())

	tests := []struct {
		name    string
		checkID string
		payload *RawFinding
		want    string
		family  Family
	}{
		{
			name:    "payload mapping wins",
			checkID: "check_static",
			payload: NewRawFinding().Set("compliance_mappings", NewRawFinding().Set("CMMC", "AC.L2-3.1.1")),
			want:    `{"CMMC":"AC.L2-3.1.1"}`,
			family:  FamilyAccessControl,
		},
		{
			name:    "empty payload mapping falls back",
			checkID: "check_static",
			payload: NewRawFinding().Set("compliance_mappings", NewRawFinding()),
			want:    `{"CMMC":"SC.L2-3.13.1"}`,
			family:  FamilySystemProtection,
		},
		{
			name:    "control map wins over cmmc_control",
			checkID: "check_static",
			payload: NewRawFinding().Set("cmmc_control", "AU.L2-3.3.1"),
			want:    `{"CMMC":"SC.L2-3.13.1"}`,
			family:  FamilySystemProtection,
		},
		{
			name:    "cmmc_control for an unmapped check",
			checkID: "check_other",
			payload: NewRawFinding().Set("cmmc_control", "AU.L2-3.3.1"),
			want:    `{"CMMC":"AU.L2-3.3.1"}`,
			family:  FamilyAuditAccountability,
		},
		{
			name:    "cmmc_control classifies a mapping without CMMC",
			checkID: "check_other",
			payload: NewRawFinding().
				Set("compliance_mappings", NewRawFinding().Set("NIST_800_171", "3.1.1")).
				Set("cmmc_control", "AC.L2-3.1.1"),
			want:   `{"NIST_800_171":"3.1.1"}`,
			family: FamilyAccessControl,
		},
		{
			name:    "unmapped",
			checkID: "check_other",
			payload: NewRawFinding(),
			want:    `{}`,
			family:  FamilyUnclassified,
		},
		{
			name:    "non cmmc prefix",
			checkID: "check_other",
			payload: NewRawFinding().Set("compliance_mappings", map[string]interface{}{"CMMC": "CM.L2-3.4.1", "ISO_27001": "A.12.1.2"}),
			want:    `{"CMMC":"CM.L2-3.4.1","ISO_27001":"A.12.1.2"}`,
			family:  FamilyUnclassified,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			f, warnings := n.normalizeEntry(tt.checkID, tt.payload)
			out, err := f.Mapping.MarshalJSON()
			r.NoError(err)
			r.Equal(tt.want, string(out))
			r.Equal(tt.family, f.Family)
			if f.Mapping.IsEmpty() {
				r.Len(warnings, 1)
				r.Equal(WarningUnmappedControl, warnings[0].Kind)
			} else {
				r.Empty(warnings)
			}
		})
	}
}

func TestLegacyControlKeepsStaticMapping(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	report, _, err := e.Generate(Request{
		Frameworks: []string{"CMMC", "NIST_800_171", "HIPAA"},
		Findings: `{
			"check_2fa_status": {"users_without_mfa": 2, "cmmc_control": "IA.L2-3.5.3"},
			"check_x": {"compliance_mappings": {"NIST_800_171": "3.1.1"}, "cmmc_control": "AC.L2-3.1.1"}
		}`,
	})
	r.NoError(err)

	scores := report.Summary.FrameworkScores
	cmmc, _ := scores.Get(controlmap.CMMC)
	r.Equal(1, cmmc.TotalControls)
	r.Equal("0%", cmmc.Score)
	nist, _ := scores.Get(controlmap.NIST800171)
	r.Equal(2, nist.TotalControls)
	r.Equal("50%", nist.Score)
	hipaa, _ := scores.Get(controlmap.HIPAA)
	r.Equal(1, hipaa.TotalControls)
	r.Equal("0%", hipaa.Score)

	hipaaFindings, _ := report.ByFramework.Get(controlmap.HIPAA)
	r.Equal("164.312(d)", hipaaFindings[0].ControlCode)

	ac := report.ByControlArea.AccessControl
	r.Equal(1, ac.TotalChecks)
	r.Equal("check_x", ac.Findings[0].CheckID)
	r.Equal(1, report.ByControlArea.Authentication.Failed)
}

func TestFrameworkScores(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	report, _, err := e.Generate(Request{
		Frameworks: []string{"HIPAA", "FTC"},
		Findings: `{
			"check_2fa_status": {"users_without_mfa": 0},
			"check_admin_roles": {},
			"check_baa_status": {"status": "Manual verification required"}
		}`,
	})
	r.NoError(err)

	hipaa, _ := report.Summary.FrameworkScores.Get(controlmap.HIPAA)
	r.Equal(3, hipaa.TotalControls)
	r.Equal("100%", hipaa.Score)
	ftc, _ := report.Summary.FrameworkScores.Get(controlmap.FTC)
	r.Equal(2, ftc.TotalControls)

	report, _, err = e.Generate(Request{
		Frameworks: []string{"CMMC"},
		Findings: `{
			"check_2fa_status": {"users_without_mfa": 2},
			"check_admin_roles": {},
			"check_audit_log_settings": {}
		}`,
	})
	r.NoError(err)
	cmmc, _ := report.Summary.FrameworkScores.Get(controlmap.CMMC)
	r.Equal("67%", cmmc.Score)
	r.Equal(1, cmmc.Failed)
}

func TestMSPAndLicensing(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	report, _, err := e.Generate(Request{
		Findings: `{
			"check_license_utilization": {"potential_savings": "$240/month", "msp_recommendation": "Reclaim 20 licenses"},
			"check_inactive_accounts": {"inactive_accounts": 0, "msp_value": "Offboarding service"},
			"check_storage_usage": {"msp_value": "", "potential_savings": 0},
			"check_baa_status": {"licensing_impact": "Enterprise Standard required"},
			"check_data_regions": {"licensing_impact": "Enterprise Plus required", "msp_value": "Data residency review"}
		}`,
		ContextNotes: "Quarterly review",
	})
	r.NoError(err)

	msp := report.MSPSummary
	r.Equal(3, msp.TotalOpportunities)
	r.Equal([]CostOpportunity{
		{CheckID: "check_license_utilization", Value: "Reclaim 20 licenses", Savings: "$240/month"},
		{CheckID: "check_inactive_accounts", Value: "Offboarding service", Savings: ""},
		{CheckID: "check_data_regions", Value: "Data residency review", Savings: ""},
	}, msp.CostOptimization)
	r.Equal([]LicensingImpact{
		{CheckID: "check_baa_status", Impact: "Enterprise Standard required"},
		{CheckID: "check_data_regions", Impact: "Enterprise Plus required"},
	}, msp.LicensingRecommendations)

	r.Equal([]string{recommendLicensing}, report.PriorityRecommendations)
	r.Equal([]string{"3 opportunities for cost optimization identified"}, report.Summary.KeyFindings)
	r.Equal("Quarterly review", report.AdditionalContext)
}

func TestMSPValuesKeepJSONTypes(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	out := string(e.Render(Request{
		Findings: `{
			"check_license_utilization": {"potential_savings": 1200, "msp_value": 3},
			"check_storage_usage": {"potential_savings": 0.5},
			"check_baa_status": {"licensing_impact": true}
		}`,
	}))

	r.Contains(out, `"value": 3,`)
	r.Contains(out, `"savings": 1200`)
	r.Contains(out, `"value": "",`)
	r.Contains(out, `"savings": 0.5`)
	r.Contains(out, `"impact": true`)
}

func TestRenderLayout(t *testing.T) {
	r := require.New(t)
	e := newTestEngine(controlmap.Default())

	out := string(e.Render(Request{
		Domain:   "example.com",
		Findings: `{"check_2fa_status": {"users_without_mfa": 3, "extra": {"b": 1, "a": [true, null]}}}`,
	}))

	keys := []string{
		`"report_metadata"`, `"report_id"`, `"domain"`, `"generated_at"`, `"audit_scope"`,
		`"frameworks_assessed"`, `"total_checks"`, `"passed"`, `"failed"`,
		`"executive_summary"`, `"overall_status"`, `"critical_issues"`, `"high_priority_issues"`,
		`"medium_priority_issues"`, `"overall_compliance_score"`, `"framework_scores"`, `"key_findings"`,
		`"findings_by_framework"`, `"findings_by_control_area"`, `"access_control"`, `"authentication"`,
		`"audit_accountability"`, `"system_protection"`, `"priority_recommendations"`,
		`"msp_value_summary"`, `"additional_context"`, `"next_steps"`,
	}
	last := -1
	for _, k := range keys {
		i := strings.Index(out, k)
		r.Greater(i, last, k)
		last = i
	}
	r.Contains(out, `"generated_at": "2024-03-01T12:00:00Z"`)
	r.Contains(out, `"control_family": "IA - Identification and Authentication"`)
	r.Contains(out, `"extra": {
            "b": 1,
            "a": [`)

	var back Report
	r.NoError(json.Unmarshal([]byte(out), &back))
	r.Equal("example.com", back.Metadata.Domain)
	r.Equal(1, back.ByControlArea.Authentication.Failed)
	cmmc, ok := back.Summary.FrameworkScores.Get(controlmap.CMMC)
	r.True(ok)
	r.Equal("0%", cmmc.Score)
}

func TestPercentRounding(t *testing.T) {
	tests := []struct {
		passed, total int
		want          string
	}{
		{0, 0, "0%"},
		{1, 2, "50%"},
		{1, 8, "13%"},
		{2, 3, "67%"},
		{1, 3, "33%"},
		{5, 5, "100%"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, percent(tt.passed, tt.total))
	}
}
