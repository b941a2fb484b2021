package engine

import (
	"github.com/user/workspace-audit/pkg/controlmap"
	"github.com/user/workspace-audit/pkg/logging"
)

// Normalizer turns raw check results into scored, classified findings.
type Normalizer struct {
	controls *controlmap.ControlMap
	log      *logging.Logger
}

// NewNormalizer creates a normalizer resolving mappings against controls. A nil
// control map means only payload mappings are used.
func NewNormalizer(controls *controlmap.ControlMap, log *logging.Logger) *Normalizer {
	if log == nil {
		log = logging.NewTestLog()
	}
	return &Normalizer{controls: controls, log: log}
}

// Normalize folds the findings mapping into findings plus the warnings raised on the
// way. Only a malformed top-level input is an error.
func (n *Normalizer) Normalize(findings interface{}) ([]Finding, []Warning, error) {
	raw, err := coerceFindings(findings)
	if err != nil {
		return nil, nil, err
	}

	out := make([]Finding, 0, raw.Len())
	var warnings []Warning
	for _, e := range raw.Entries() {
		payload, ok := asPayload(e.Value)
		if !ok {
			w := degradedEntry(e.CheckID, e.Value)
			n.log.WithField("check", e.CheckID).Warnf("%s", w.Message)
			warnings = append(warnings, w)
			continue
		}

		f, ws := n.normalizeEntry(e.CheckID, payload)
		for _, w := range ws {
			n.log.WithField("check", e.CheckID).Warnf("%s", w.Message)
		}
		warnings = append(warnings, ws...)
		out = append(out, f)
	}
	return out, warnings, nil
}

func (n *Normalizer) normalizeEntry(checkID string, payload *RawFinding) (Finding, []Warning) {
	var warnings []Warning

	m := n.resolveMapping(checkID, payload)
	if m.IsEmpty() {
		warnings = append(warnings, unmappedControl(checkID))
	}

	status, signals := evaluateStatus(payload)
	f := Finding{
		CheckID:        checkID,
		Mapping:        m,
		Status:         status,
		Family:         familyFor(m, legacyControl(payload)),
		Recommendation: payload.text("recommendation"),
		Signals:        signals,
		Payload:        payload,
	}
	if f.Recommendation == "" {
		f.Recommendation = noRecommendation
	}
	if status == StatusFail {
		f.Severity = severityFor(checkID)
	}
	return f, warnings
}

// resolveMapping prefers the payload's own compliance_mappings, then the control
// map, then a legacy cmmc_control string.
func (n *Normalizer) resolveMapping(checkID string, payload *RawFinding) controlmap.Mapping {
	if m := payload.mapping("compliance_mappings"); !m.IsEmpty() {
		return m
	}
	if m, ok := n.controls.Lookup(checkID); ok && !m.IsEmpty() {
		return m
	}
	if code := legacyControl(payload); code != "" {
		return controlmap.NewMapping(controlmap.Entry{Framework: controlmap.CMMC, Code: code})
	}
	return controlmap.Mapping{}
}

// legacyControl reads the single CMMC control older checks report.
func legacyControl(payload *RawFinding) string {
	v, _ := payload.Get("cmmc_control")
	code, _ := v.(string)
	return code
}

func asPayload(v interface{}) (*RawFinding, bool) {
	switch t := v.(type) {
	case *RawFinding:
		return t, t != nil
	case map[string]interface{}:
		if t == nil {
			return nil, false
		}
		return RawFindingFromMap(t), true
	default:
		return nil, false
	}
}
