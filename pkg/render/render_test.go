package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user/workspace-audit/pkg/controlmap"
	"github.com/user/workspace-audit/pkg/engine"
)

func testReport(t *testing.T, findings string) *engine.Report {
	e := engine.New(controlmap.Default(),
		engine.WithClock(func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }),
		engine.WithIDGenerator(func() string { return "r-1" }),
	)
	report, _, err := e.Generate(engine.Request{
		Domain:     "example.com",
		Frameworks: []string{"CMMC", "HIPAA"},
		Findings:   findings,
	})
	require.NoError(t, err)
	return report
}

func TestGet(t *testing.T) {
	r := require.New(t)

	j, err := Get("JSON", false)
	r.NoError(err)
	r.IsType(&JSONRenderer{}, j)

	txt, err := Get("text", true)
	r.NoError(err)
	r.IsType(&TextRenderer{}, txt)

	_, err = Get("sarif", false)
	r.Error(err)
}

func TestTextRenderer(t *testing.T) {
	r := require.New(t)
	report := testReport(t, `{
		"check_2fa_status": {"users_without_mfa": 2, "recommendation": "Enforce 2-Step Verification"},
		"check_license_utilization": {"potential_savings": "$96/month", "msp_recommendation": "Reclaim unused seats"},
		"check_storage_usage": {"potential_savings": 1200, "msp_value": "Archive old drives"},
		"check_custom_encryption": {"unencrypted_devices": 1, "compliance_mappings": {"HIPAA": "164.312(a)(2)(iv)"}}
	}`)

	out, err := (&TextRenderer{NoColor: true}).Render(report)
	r.NoError(err)
	s := string(out)

	r.Contains(s, "Compliance report for example.com")
	r.Contains(s, "Status:     NEEDS ATTENTION")
	r.Contains(s, "CMMC")
	r.Contains(s, "IA - Identification and Authentication")
	r.Contains(s, "Enforce 2-Step Verification")
	r.Contains(s, "check_license_utilization: Reclaim unused seats (savings: $96/month)")
	r.Contains(s, "check_storage_usage: Archive old drives (savings: 1200)")
	r.Contains(s, "CRITICAL: Address 2FA and admin access issues immediately")
	r.Equal(1, strings.Count(s, "check_custom_encryption"))
	r.NotContains(s, "\x1b[")
}

func TestJSONRenderer(t *testing.T) {
	report := testReport(t, `{}`)
	out, err := (&JSONRenderer{}).Render(report)
	require.NoError(t, err)
	require.Contains(t, string(out), `"total_checks": 0`)
	require.Contains(t, string(out), `"findings_by_framework": {
    "CMMC": [],
    "HIPAA": []
  }`)
}

func TestRenderDiff(t *testing.T) {
	out := RenderDiff(engine.Diff{
		NewFailures:     []string{"check_mobile_devices"},
		Fixed:           []string{},
		BaselineOverall: "50%",
		CurrentOverall:  "75%",
		OverallChange:   25,
		Frameworks: []engine.ScoreDelta{
			{Framework: controlmap.CMMC, Baseline: "50%", Current: "75%", Change: 25, Comparable: true},
			{Framework: controlmap.HIPAA, Baseline: "N/A", Current: "100%"},
		},
	})
	require.Contains(t, out, "+25")
	require.Contains(t, out, "New failures (1)")
	require.Contains(t, out, "  - check_mobile_devices")
	require.NotContains(t, out, "Fixed (0)")
}
