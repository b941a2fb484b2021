package engine

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/user/workspace-audit/pkg/controlmap"
)

const DefaultSnapshotPath = ".wsaudit-snapshot.json"

// SaveSnapshot writes a report to path for later comparison.
func SaveSnapshot(r *Report, path string) error {
	data, err := MarshalIndent(r)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	return nil
}

// LoadSnapshot reads a report written by SaveSnapshot or by the report command.
func LoadSnapshot(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}
	return &r, nil
}

// ScoreDelta is the change of one framework score between two reports. Comparable
// is false when either side is N/A.
type ScoreDelta struct {
	Framework  controlmap.Framework `json:"framework"`
	Baseline   string               `json:"baseline"`
	Current    string               `json:"current"`
	Change     int                  `json:"change"`
	Comparable bool                 `json:"comparable"`
}

// Diff compares the failing checks and scores of two reports.
type Diff struct {
	NewFailures     []string     `json:"new_failures"`
	Fixed           []string     `json:"fixed"`
	StillFailing    []string     `json:"still_failing"`
	BaselineOverall string       `json:"baseline_overall_score"`
	CurrentOverall  string       `json:"current_overall_score"`
	OverallChange   int          `json:"overall_change"`
	Frameworks      []ScoreDelta `json:"frameworks"`
}

// Compare reports which checks started failing, which were fixed and which still
// fail, plus score movement for every framework present in either report.
func Compare(baseline, current *Report) Diff {
	before, after := failingChecks(baseline), failingChecks(current)

	d := Diff{
		NewFailures:     append([]string{}, lo.Without(after, before...)...),
		Fixed:           append([]string{}, lo.Without(before, after...)...),
		StillFailing:    append([]string{}, lo.Intersect(before, after)...),
		BaselineOverall: baseline.Summary.OverallComplianceScore,
		CurrentOverall:  current.Summary.OverallComplianceScore,
	}
	sort.Strings(d.StillFailing)
	b, _ := ParseScore(d.BaselineOverall)
	c, _ := ParseScore(d.CurrentOverall)
	d.OverallChange = c - b

	seen := map[controlmap.Framework]bool{}
	for _, scores := range []FrameworkScores{baseline.Summary.FrameworkScores, current.Summary.FrameworkScores} {
		for _, fs := range scores {
			if seen[fs.Framework] {
				continue
			}
			seen[fs.Framework] = true

			delta := ScoreDelta{Framework: fs.Framework, Baseline: ScoreNotApplicable, Current: ScoreNotApplicable}
			if old, ok := baseline.Summary.FrameworkScores.Get(fs.Framework); ok {
				delta.Baseline = old.Score
			}
			if cur, ok := current.Summary.FrameworkScores.Get(fs.Framework); ok {
				delta.Current = cur.Score
			}
			bp, okB := ParseScore(delta.Baseline)
			cp, okC := ParseScore(delta.Current)
			if okB && okC {
				delta.Comparable = true
				delta.Change = cp - bp
			}
			d.Frameworks = append(d.Frameworks, delta)
		}
	}
	return d
}

// Summary is a short human readable form of the diff.
func (d Diff) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Overall score: %s -> %s (%+d)\n", d.BaselineOverall, d.CurrentOverall, d.OverallChange)
	for _, fd := range d.Frameworks {
		if fd.Comparable {
			fmt.Fprintf(&sb, "  %s: %s -> %s (%+d)\n", fd.Framework, fd.Baseline, fd.Current, fd.Change)
		} else {
			fmt.Fprintf(&sb, "  %s: %s -> %s\n", fd.Framework, fd.Baseline, fd.Current)
		}
	}
	writeList(&sb, "New failures", d.NewFailures)
	writeList(&sb, "Fixed", d.Fixed)
	writeList(&sb, "Still failing", d.StillFailing)
	return sb.String()
}

func writeList(sb *strings.Builder, title string, ids []string) {
	fmt.Fprintf(sb, "%s (%d)\n", title, len(ids))
	for _, id := range ids {
		fmt.Fprintf(sb, "  - %s\n", id)
	}
}

// failingChecks collects failing check ids from the control areas and the framework
// buckets, so unclassified checks scored under some framework are not lost.
func failingChecks(r *Report) []string {
	var ids []string
	for _, a := range r.ByControlArea.Areas() {
		for _, f := range a.Area.Findings {
			if f.Failed() {
				ids = append(ids, f.CheckID)
			}
		}
	}
	for _, bucket := range r.ByFramework {
		for _, f := range bucket.Findings {
			if f.Failed() {
				ids = append(ids, f.CheckID)
			}
		}
	}
	ids = lo.Uniq(ids)
	sort.Strings(ids)
	return ids
}
