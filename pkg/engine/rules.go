package engine

import (
	"strings"

	"github.com/user/workspace-audit/pkg/controlmap"
)

// signalRule marks a finding FAIL when test holds for its payload.
type signalRule struct {
	field string
	test  func(r *RawFinding, field string) bool
}

var failSignals = []signalRule{
	{field: "mfa_enforced", test: (*RawFinding).isFalse},
	{field: "users_without_mfa", test: (*RawFinding).positive},
	{field: "inactive_accounts", test: (*RawFinding).positive},
	{field: "groups_with_external_members", test: (*RawFinding).positive},
	{field: "drives_with_external_access", test: (*RawFinding).positive},
	{field: "unencrypted_devices", test: (*RawFinding).positive},
	{field: "suspicious_events_found", test: (*RawFinding).positive},
}

// SignalFields returns the payload fields that can fail a check, in rule order.
func SignalFields() []string {
	out := make([]string, len(failSignals))
	for i, s := range failSignals {
		out[i] = s.field
	}
	return out
}

// evaluateStatus returns FAIL and the fields that fired when any bad signal is present.
func evaluateStatus(r *RawFinding) (Status, []string) {
	var fired []string
	for _, rule := range failSignals {
		if rule.test(r, rule.field) {
			fired = append(fired, rule.field)
		}
	}
	if len(fired) > 0 {
		return StatusFail, fired
	}
	return StatusPass, nil
}

type severityRule struct {
	substrings []string
	severity   Severity
}

// Evaluated in order, first match wins. The final rule always matches.
var severityRules = []severityRule{
	{substrings: []string{"2fa", "admin"}, severity: SeverityCritical},
	{substrings: []string{"inactive", "external"}, severity: SeverityHigh},
	{substrings: nil, severity: SeverityMedium},
}

func severityFor(checkID string) Severity {
	for _, rule := range severityRules {
		if rule.substrings == nil {
			return rule.severity
		}
		for _, s := range rule.substrings {
			if strings.Contains(checkID, s) {
				return rule.severity
			}
		}
	}
	return SeverityMedium
}

type familyRule struct {
	prefix string
	family Family
}

var familyRules = []familyRule{
	{prefix: "AC.", family: FamilyAccessControl},
	{prefix: "IA.", family: FamilyAuthentication},
	{prefix: "AU.", family: FamilyAuditAccountability},
	{prefix: "SC.", family: FamilySystemProtection},
}

// familyFor classifies by the CMMC code only, whatever frameworks are active. legacy
// is the payload's cmmc_control, used when the mapping has no CMMC code.
func familyFor(m controlmap.Mapping, legacy string) Family {
	code, ok := m.Code(controlmap.CMMC)
	if !ok {
		code = legacy
	}
	for _, rule := range familyRules {
		if strings.HasPrefix(code, rule.prefix) {
			return rule.family
		}
	}
	return FamilyUnclassified
}
