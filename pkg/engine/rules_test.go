package engine

import (
	stdjson "encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/workspace-audit/pkg/controlmap"
)

func TestEvaluateStatus(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value interface{}
		want  Status
	}{
		{"mfa false", "mfa_enforced", false, StatusFail},
		{"mfa true", "mfa_enforced", true, StatusPass},
		{"mfa zero is not false", "mfa_enforced", 0, StatusPass},
		{"mfa null", "mfa_enforced", nil, StatusPass},
		{"mfa string false", "mfa_enforced", "false", StatusPass},
		{"count positive", "users_without_mfa", 3, StatusFail},
		{"count zero", "users_without_mfa", 0, StatusPass},
		{"count negative", "inactive_accounts", -1, StatusPass},
		{"json number", "inactive_accounts", stdjson.Number("2"), StatusFail},
		{"numeric string", "unencrypted_devices", "4", StatusFail},
		{"empty string", "unencrypted_devices", "", StatusPass},
		{"word string", "unencrypted_devices", "many", StatusPass},
		{"true counts as one", "suspicious_events_found", true, StatusFail},
		{"false", "suspicious_events_found", false, StatusPass},
		{"fraction", "drives_with_external_access", 0.5, StatusFail},
		{"unrelated field", "status", "FAIL", StatusPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, signals := evaluateStatus(NewRawFinding().Set(tt.field, tt.value))
			require.Equal(t, tt.want, got)
			if got == StatusFail {
				require.Equal(t, []string{tt.field}, signals)
			}
		})
	}

	got, _ := evaluateStatus(NewRawFinding())
	require.Equal(t, StatusPass, got)
}

func TestSeverityFor(t *testing.T) {
	tests := map[string]Severity{
		"check_2fa_status":           SeverityCritical,
		"check_admin_roles":          SeverityCritical,
		"check_external_admin":       SeverityCritical,
		"check_inactive_accounts":    SeverityHigh,
		"check_external_sharing":     SeverityHigh,
		"check_mobile_devices":       SeverityMedium,
		"check_2FA_status":           SeverityMedium,
		"check_suspicious_activity":  SeverityMedium,
		"check_groups_external_only": SeverityHigh,
	}
	for id, want := range tests {
		require.Equal(t, want, severityFor(id), id)
	}
}

func TestFamilyFor(t *testing.T) {
	tests := []struct {
		mapping controlmap.Mapping
		legacy  string
		want    Family
	}{
		{controlmap.NewMapping(controlmap.Entry{Framework: controlmap.CMMC, Code: "AC.L2-3.1.1"}), "", FamilyAccessControl},
		{controlmap.NewMapping(controlmap.Entry{Framework: controlmap.CMMC, Code: "IA.L2-3.5.3"}), "", FamilyAuthentication},
		{controlmap.NewMapping(controlmap.Entry{Framework: controlmap.CMMC, Code: "AU.L2-3.3.1"}), "", FamilyAuditAccountability},
		{controlmap.NewMapping(controlmap.Entry{Framework: controlmap.CMMC, Code: "SC.L2-3.13.8"}), "", FamilySystemProtection},
		{controlmap.NewMapping(controlmap.Entry{Framework: controlmap.CMMC, Code: "ac.L2-3.1.1"}), "", FamilyUnclassified},
		{controlmap.NewMapping(controlmap.Entry{Framework: controlmap.HIPAA, Code: "AC.1"}), "", FamilyUnclassified},
		{controlmap.Mapping{}, "", FamilyUnclassified},
		{controlmap.NewMapping(controlmap.Entry{Framework: controlmap.NIST800171, Code: "3.1.1"}), "AC.L2-3.1.1", FamilyAccessControl},
		{controlmap.NewMapping(controlmap.Entry{Framework: controlmap.CMMC, Code: "AU.L2-3.3.1"}), "AC.L2-3.1.1", FamilyAuditAccountability},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, familyFor(tt.mapping, tt.legacy))
	}
}

func TestRawFindingOrder(t *testing.T) {
	r := require.New(t)

	var f RawFinding
	r.NoError(json.Unmarshal([]byte(`{"z": 1, "a": {"y": true, "b": null}, "m": [1, "x"]}`), &f))
	r.Equal([]string{"z", "a", "m"}, f.Keys())

	nested, ok := f.Get("a")
	r.True(ok)
	r.Equal([]string{"y", "b"}, nested.(*RawFinding).Keys())

	out, err := json.Marshal(&f)
	r.NoError(err)
	r.Equal(`{"z":1,"a":{"y":true,"b":null},"m":[1,"x"]}`, string(out))

	f.Set("z", 2).Set("new", "v")
	out, err = json.Marshal(&f)
	r.NoError(err)
	r.Equal(`{"z":2,"a":{"y":true,"b":null},"m":[1,"x"],"new":"v"}`, string(out))

	r.Error(json.Unmarshal([]byte(`[1]`), &f))
}

func TestRawFindingsDuplicateKeys(t *testing.T) {
	r := require.New(t)

	var fs RawFindings
	r.NoError(json.Unmarshal([]byte(`{"b": {"n": 1}, "a": null, "b": {"n": 2}}`), &fs))
	entries := fs.Entries()
	r.Len(entries, 2)
	r.Equal("b", entries[0].CheckID)
	v, _ := entries[0].Value.(*RawFinding).Get("n")
	r.Equal(stdjson.Number("2"), v)
	r.Nil(entries[1].Value)
}

func TestTextValues(t *testing.T) {
	f := NewRawFinding().
		Set("s", "Reclaim licenses").
		Set("n", 120.5).
		Set("zero", 0).
		Set("num", stdjson.Number("42")).
		Set("no", false)

	require.Equal(t, "Reclaim licenses", f.text("s"))
	require.Equal(t, "120.5", f.text("n"))
	require.Equal(t, "", f.text("zero"))
	require.Equal(t, "42", f.text("num"))
	require.Equal(t, "", f.text("no"))
	require.Equal(t, "", f.text("missing"))
}
