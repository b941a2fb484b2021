package controlmap

import (
	"strings"
)

// Framework identifies a compliance standard with its own control-code namespace.
type Framework string

const (
	CMMC       Framework = "CMMC"
	NIST800171 Framework = "NIST_800_171"
	NISTCSF    Framework = "NIST_CSF"
	ISO27001   Framework = "ISO_27001"
	HIPAA      Framework = "HIPAA"
	FTC        Framework = "FTC"
)

// Frameworks lists the supported frameworks in display order.
var Frameworks = []Framework{CMMC, NIST800171, NISTCSF, ISO27001, HIPAA, FTC}

// FrameworkInfo describes a framework for operators choosing what to assess against.
type FrameworkInfo struct {
	ID          Framework `json:"id" yaml:"id"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Audience    string    `json:"audience" yaml:"audience"`
}

var catalog = map[Framework]FrameworkInfo{
	CMMC:       {ID: CMMC, DisplayName: "CMMC", Audience: "defense contractors"},
	NIST800171: {ID: NIST800171, DisplayName: "NIST 800-171", Audience: "government contractors"},
	NISTCSF:    {ID: NISTCSF, DisplayName: "NIST CSF", Audience: "general cybersecurity"},
	ISO27001:   {ID: ISO27001, DisplayName: "ISO 27001", Audience: "international standard"},
	HIPAA:      {ID: HIPAA, DisplayName: "HIPAA", Audience: "healthcare"},
	FTC:        {ID: FTC, DisplayName: "FTC Safeguards Rule", Audience: "financial services"},
}

var aliases = map[string]Framework{
	"CMMC":                CMMC,
	"CMMC_2":              CMMC,
	"NIST_800_171":        NIST800171,
	"NIST800171":          NIST800171,
	"800_171":             NIST800171,
	"NIST_CSF":            NISTCSF,
	"NISTCSF":             NISTCSF,
	"CSF":                 NISTCSF,
	"ISO_27001":           ISO27001,
	"ISO27001":            ISO27001,
	"HIPAA":               HIPAA,
	"FTC":                 FTC,
	"FTC_SAFEGUARDS":      FTC,
	"FTC_SAFEGUARDS_RULE": FTC,
}

// Info returns the catalog entry for a framework.
func Info(f Framework) (FrameworkInfo, bool) {
	info, ok := catalog[f]
	return info, ok
}

// Known reports whether f is one of the supported frameworks.
func (f Framework) Known() bool {
	_, ok := catalog[f]
	return ok
}

func (f Framework) String() string {
	return string(f)
}

// ParseFramework normalizes a user supplied framework name. Separators and case are
// ignored, so "nist 800-171" and "NIST_800_171" are the same framework. Unknown
// names are returned upper-cased with ok=false.
func ParseFramework(s string) (Framework, bool) {
	key := normalizeKey(s)
	if f, ok := aliases[key]; ok {
		return f, true
	}
	return Framework(key), false
}

func normalizeKey(s string) string {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(v)
	for strings.Contains(v, "__") {
		v = strings.ReplaceAll(v, "__", "_")
	}
	return v
}
