package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"github.com/user/workspace-audit/pkg/engine"
)

// TextRenderer prints a terminal summary of the report.
type TextRenderer struct {
	NoColor bool
}

func (t *TextRenderer) Render(r *engine.Report) ([]byte, error) {
	var sb strings.Builder
	m, s := r.Metadata, r.Summary

	sb.WriteString(t.paint(color.Bold).Sprintf("Compliance report for %s\n", lo.Ternary(m.Domain == "", "(no domain)", m.Domain)))
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&sb, "Report:     %s\n", m.ReportID)
	fmt.Fprintf(&sb, "Generated:  %s\n", m.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Frameworks: %s\n", strings.Join(m.FrameworksAssessed, ", "))
	fmt.Fprintf(&sb, "Checks:     %d total, %d passed, %d failed\n", m.TotalChecks, m.Passed, m.Failed)
	fmt.Fprintf(&sb, "Status:     %s (overall score %s)\n\n", t.status(s.OverallStatus), s.OverallComplianceScore)

	scores := newTable()
	scores.AppendHeader(table.Row{"Framework", "Controls", "Passed", "Failed", "Score"})
	for _, fs := range s.FrameworkScores {
		scores.AppendRow(table.Row{fs.Framework, fs.TotalControls, fs.Passed, fs.Failed, fs.Score})
	}
	sb.WriteString(scores.Render() + "\n\n")

	areas := newTable()
	areas.AppendHeader(table.Row{"Control family", "Checks", "Passed", "Failed"})
	for _, a := range r.ByControlArea.Areas() {
		areas.AppendRow(table.Row{a.Area.ControlFamily, a.Area.TotalChecks, a.Area.Passed, a.Area.Failed})
	}
	sb.WriteString(areas.Render() + "\n\n")

	failing := failingFindings(r)
	if len(failing) > 0 {
		ft := newTable()
		ft.AppendHeader(table.Row{"Check", "Severity", "Family", "Recommendation"})
		ft.SetColumnConfigs([]table.ColumnConfig{{Number: 4, WidthMax: 60}})
		for _, f := range failing {
			ft.AppendRow(table.Row{f.CheckID, t.severity(f.Severity), f.Family, f.Recommendation})
		}
		sb.WriteString(ft.Render() + "\n\n")
	}

	writeSection(&sb, "Key findings", s.KeyFindings)
	writeSection(&sb, "Priority recommendations", r.PriorityRecommendations)

	if r.MSPSummary.TotalOpportunities > 0 || len(r.MSPSummary.LicensingRecommendations) > 0 {
		lines := make([]string, 0, len(r.MSPSummary.CostOptimization)+len(r.MSPSummary.LicensingRecommendations))
		for _, c := range r.MSPSummary.CostOptimization {
			line := fmt.Sprintf("%s: %v", c.CheckID, c.Value)
			if savings := fmt.Sprint(c.Savings); savings != "" {
				line += fmt.Sprintf(" (savings: %s)", savings)
			}
			lines = append(lines, line)
		}
		for _, l := range r.MSPSummary.LicensingRecommendations {
			lines = append(lines, fmt.Sprintf("%s: %v", l.CheckID, l.Impact))
		}
		writeSection(&sb, "MSP and licensing", lines)
	}

	if len(m.Warnings) > 0 {
		writeSection(&sb, "Warnings", lo.Map(m.Warnings, func(w engine.Warning, _ int) string { return w.String() }))
	}
	writeSection(&sb, "Additional context", []string{r.AdditionalContext})
	writeSection(&sb, "Next steps", r.NextSteps)
	return []byte(sb.String()), nil
}

// RenderDiff prints a comparison between two reports.
func RenderDiff(d engine.Diff) string {
	var sb strings.Builder

	scores := newTable()
	scores.AppendHeader(table.Row{"Framework", "Baseline", "Current", "Change"})
	scores.AppendRow(table.Row{"Overall", d.BaselineOverall, d.CurrentOverall, fmt.Sprintf("%+d", d.OverallChange)})
	for _, fd := range d.Frameworks {
		change := "-"
		if fd.Comparable {
			change = fmt.Sprintf("%+d", fd.Change)
		}
		scores.AppendRow(table.Row{fd.Framework, fd.Baseline, fd.Current, change})
	}
	sb.WriteString(scores.Render() + "\n\n")

	writeSection(&sb, fmt.Sprintf("New failures (%d)", len(d.NewFailures)), d.NewFailures)
	writeSection(&sb, fmt.Sprintf("Fixed (%d)", len(d.Fixed)), d.Fixed)
	writeSection(&sb, fmt.Sprintf("Still failing (%d)", len(d.StillFailing)), d.StillFailing)
	return sb.String()
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}

func writeSection(sb *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	sb.WriteString(title + "\n")
	for _, l := range lines {
		sb.WriteString("  - " + l + "\n")
	}
	sb.WriteString("\n")
}

// failingFindings lists every failing finding once, classified ones first.
func failingFindings(r *engine.Report) []engine.Finding {
	var out []engine.Finding
	for _, a := range r.ByControlArea.Areas() {
		out = append(out, lo.Filter(a.Area.Findings, func(f engine.Finding, _ int) bool { return f.Failed() })...)
	}
	for _, bucket := range r.ByFramework {
		for _, f := range bucket.Findings {
			if f.Failed() {
				out = append(out, f.Finding)
			}
		}
	}
	return lo.UniqBy(out, func(f engine.Finding) string { return f.CheckID })
}

func (t *TextRenderer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if t.NoColor {
		c.DisableColor()
	}
	return c
}

func (t *TextRenderer) status(s string) string {
	if s == engine.StatusAcceptable {
		return t.paint(color.FgGreen, color.Bold).Sprint(s)
	}
	return t.paint(color.FgRed, color.Bold).Sprint(s)
}

func (t *TextRenderer) severity(s engine.Severity) string {
	switch s {
	case engine.SeverityCritical:
		return t.paint(color.FgRed).Sprint(s)
	case engine.SeverityHigh:
		return t.paint(color.FgYellow).Sprint(s)
	default:
		return string(s)
	}
}
