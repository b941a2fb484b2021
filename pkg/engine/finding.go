package engine

import (
	"github.com/user/workspace-audit/pkg/controlmap"
)

type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
)

// Family is the CMMC control family a finding is grouped under in the report.
type Family string

const (
	FamilyAccessControl       Family = "ACCESS_CONTROL"
	FamilyAuthentication      Family = "AUTHENTICATION"
	FamilyAuditAccountability Family = "AUDIT_ACCOUNTABILITY"
	FamilySystemProtection    Family = "SYSTEM_PROTECTION"
	FamilyUnclassified        Family = "UNCLASSIFIED"
)

// Families lists the bucketed families in report order.
var Families = []Family{
	FamilyAccessControl,
	FamilyAuthentication,
	FamilyAuditAccountability,
	FamilySystemProtection,
}

// Label is the human readable control family heading.
func (f Family) Label() string {
	switch f {
	case FamilyAccessControl:
		return "AC - Access Control"
	case FamilyAuthentication:
		return "IA - Identification and Authentication"
	case FamilyAuditAccountability:
		return "AU - Audit and Accountability"
	case FamilySystemProtection:
		return "SC - System and Communications Protection"
	default:
		return "Unclassified"
	}
}

const noRecommendation = "No recommendation available"

// Finding is the normalized, scored view of one check result.
type Finding struct {
	CheckID        string             `json:"check_id"`
	Mapping        controlmap.Mapping `json:"compliance_mappings"`
	Status         Status             `json:"status"`
	Severity       Severity           `json:"severity,omitempty"`
	Family         Family             `json:"family"`
	Recommendation string             `json:"recommendation"`
	Signals        []string           `json:"signals,omitempty"`
	Payload        *RawFinding        `json:"data"`
}

func (f Finding) Failed() bool {
	return f.Status == StatusFail
}

// FrameworkFinding is a finding as listed under one framework, with that framework's
// control code.
type FrameworkFinding struct {
	Finding
	ControlCode string `json:"control_code"`
}
