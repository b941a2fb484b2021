package engine

import "github.com/samber/lo"

// RiskCounts are the severity-weighted issue counters for one report.
type RiskCounts struct {
	Total    int
	Critical int
	High     int
	Medium   int
}

func (c RiskCounts) Failed() int {
	return c.Critical + c.High + c.Medium
}

func (c RiskCounts) Passed() int {
	return c.Total - c.Failed()
}

// Acceptable is true when nothing critical or high is open.
func (c RiskCounts) Acceptable() bool {
	return c.Critical == 0 && c.High == 0
}

// Score counts the findings by severity.
func Score(findings []Finding) RiskCounts {
	bySeverity := lo.CountValuesBy(lo.Filter(findings, func(f Finding, _ int) bool {
		return f.Failed()
	}), func(f Finding) Severity {
		return f.Severity
	})
	return RiskCounts{
		Total:    len(findings),
		Critical: bySeverity[SeverityCritical],
		High:     bySeverity[SeverityHigh],
		Medium:   bySeverity[SeverityMedium],
	}
}
