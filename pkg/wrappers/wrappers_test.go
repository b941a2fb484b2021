package wrappers

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user/workspace-audit/pkg/adk"
	"github.com/user/workspace-audit/pkg/checks"
	"github.com/user/workspace-audit/pkg/controlmap"
	"github.com/user/workspace-audit/pkg/engine"
)

// Every wrapper is offered to the agent.
var (
	_ adk.Tool = (*CheckWrapper)(nil)
	_ adk.Tool = (*RunChecksWrapper)(nil)
	_ adk.Tool = (*StartAuditWrapper)(nil)
	_ adk.Tool = (*ReportWrapper)(nil)
	_ adk.Tool = (*SaveSnapshotWrapper)(nil)
	_ adk.Tool = (*DiffSnapshotWrapper)(nil)
)

func manualEnv() *checks.Env {
	return &checks.Env{Domain: "example.com", Controls: controlmap.Default()}
}

func TestCheckWrapper(t *testing.T) {
	r := require.New(t)
	tools := CheckTools(checks.NewRegistry(), manualEnv())
	r.Len(tools, 19)
	r.Equal("check_2fa_status", tools[0].Name())

	out, err := tools[0].Execute(context.Background(), map[string]interface{}{"domain": "example.com"}, nil)
	r.NoError(err)
	r.Contains(out, "no Workspace credentials")

	var session *CheckWrapper
	for _, tool := range tools {
		if tool.Name() == "check_session_settings" {
			session = tool
		}
	}
	r.NotNil(session)
	out, err = session.Execute(context.Background(), map[string]interface{}{"domain": "other.org"}, nil)
	r.NoError(err)
	r.True(strings.HasPrefix(out, "{\n  \"domain\": \"other.org\",\n  \"compliance_mappings\": {"), out)
	r.Contains(out, `"status": "Manual verification required"`)
}

func TestRunChecksWithoutDirectory(t *testing.T) {
	r := require.New(t)
	w := &RunChecksWrapper{Registry: checks.NewRegistry(), Env: manualEnv()}

	out, err := w.Execute(context.Background(), map[string]interface{}{
		"domain":     "example.com",
		"frameworks": []interface{}{"HIPAA"},
	}, nil)
	r.NoError(err)
	r.True(strings.HasPrefix(out, "Ran 10 checks (0 could not complete)."), out)
	r.Contains(out, `"check_baa_status"`)

	out, err = w.Execute(context.Background(), map[string]interface{}{"check_ids": "check_password_policy, check_nope"}, nil)
	r.NoError(err)
	r.Contains(out, "unknown check")

	out, err = w.Execute(context.Background(), map[string]interface{}{"check_ids": []interface{}{"check_2fa_status"}}, nil)
	r.NoError(err)
	r.Contains(out, "no Workspace credentials")
}

func TestStartAudit(t *testing.T) {
	r := require.New(t)
	w := &StartAuditWrapper{Registry: checks.NewRegistry()}

	out, err := w.Execute(context.Background(), map[string]interface{}{"domain": "example.com"}, nil)
	r.NoError(err)
	r.True(strings.HasPrefix(out, "ERROR: No compliance frameworks selected."))

	out, err = w.Execute(context.Background(), map[string]interface{}{
		"domain":     "example.com",
		"frameworks": []interface{}{"CMMC", "HIPAA"},
	}, nil)
	r.NoError(err)
	r.Contains(out, "## Selected Frameworks: CMMC, HIPAA")
	r.Contains(out, "check_baa_status")
	r.Contains(out, "Does your organization handle Protected Health Information (PHI)?")

	out, err = w.Execute(context.Background(), map[string]interface{}{"domain": "example.com", "frameworks": "PCI"}, nil)
	r.NoError(err)
	r.True(strings.HasPrefix(out, `Error: unknown framework "PCI"`))
}

func TestReportAndSnapshots(t *testing.T) {
	r := require.New(t)
	eng := engine.New(controlmap.Default(),
		engine.WithClock(func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }),
		engine.WithIDGenerator(func() string { return "r-1" }))
	session := &Session{}
	report := &ReportWrapper{Engine: eng, Session: session}
	save := &SaveSnapshotWrapper{Session: session}
	diff := &DiffSnapshotWrapper{Session: session}
	path := filepath.Join(t.TempDir(), "snap.json")

	out, err := save.Execute(context.Background(), map[string]interface{}{"filename": path}, nil)
	r.NoError(err)
	r.True(strings.HasPrefix(out, "Error: no report generated yet"))

	out, err = report.Execute(context.Background(), map[string]interface{}{
		"domain":   "example.com",
		"findings": 42,
	}, nil)
	r.NoError(err)
	r.Contains(out, `"error": "Invalid findings format. Expected an object with check results."`)
	r.Nil(session.Report())

	out, err = report.Execute(context.Background(), map[string]interface{}{
		"domain": "example.com",
		"findings": map[string]interface{}{
			"check_2fa_status":        map[string]interface{}{"users_without_mfa": 2},
			"check_inactive_accounts": map[string]interface{}{"inactive_accounts": 0},
		},
		"active_frameworks": []interface{}{"CMMC"},
		"context_notes":     "20 person defense supplier",
	}, nil)
	r.NoError(err)
	r.Contains(out, `"report_id": "r-1"`)
	r.Contains(out, "20 person defense supplier")
	r.NotNil(session.Report())

	out, err = save.Execute(context.Background(), map[string]interface{}{"filename": path}, nil)
	r.NoError(err)
	r.Contains(out, "Successfully saved report r-1 (2 checks)")

	_, err = report.Execute(context.Background(), map[string]interface{}{
		"domain":   "example.com",
		"findings": `{"check_2fa_status": {"users_without_mfa": 0}, "check_inactive_accounts": {"inactive_accounts": 5}}`,
	}, nil)
	r.NoError(err)

	out, err = diff.Execute(context.Background(), map[string]interface{}{"filename": path}, nil)
	r.NoError(err)
	r.Contains(out, "New failures (1)\n  - check_inactive_accounts")
	r.Contains(out, "Fixed (1)\n  - check_2fa_status")

	out, err = diff.Execute(context.Background(), map[string]interface{}{"filename": filepath.Join(t.TempDir(), "none.json")}, nil)
	r.NoError(err)
	r.Contains(out, "Error loading baseline snapshot")
}

func TestStringArgs(t *testing.T) {
	require.Equal(t, []string{"CMMC", "NIST 800-171"}, stringArgs("CMMC, NIST 800-171,"))
	require.Equal(t, []string{"a"}, stringArgs([]interface{}{"a", 3}))
	require.Nil(t, stringArgs(nil))
}
