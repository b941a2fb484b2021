package wrappers

import (
	"context"
	"fmt"

	"github.com/user/workspace-audit/pkg/engine"
)

// SaveSnapshotWrapper implements the Tool interface for saving the last report
type SaveSnapshotWrapper struct {
	Session *Session
}

func (s *SaveSnapshotWrapper) Name() string {
	return "save_snapshot"
}

func (s *SaveSnapshotWrapper) Description() string {
	return "Saves the last generated compliance report to a snapshot file for future comparison."
}

func (s *SaveSnapshotWrapper) Schema() map[string]interface{} {
	return filenameSchema("Optional filename for the snapshot (default: " + engine.DefaultSnapshotPath + ")")
}

func (s *SaveSnapshotWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	report := s.Session.Report()
	if report == nil {
		return "Error: no report generated yet. Call generate_comprehensive_report first.", nil
	}

	filename := snapshotFile(args)
	if err := engine.SaveSnapshot(report, filename); err != nil {
		return fmt.Sprintf("Error saving snapshot: %v", err), nil
	}
	return fmt.Sprintf("Successfully saved report %s (%d checks) to snapshot '%s'.",
		report.Metadata.ReportID, report.Metadata.TotalChecks, filename), nil
}

// DiffSnapshotWrapper implements the Tool interface for comparing the last report with a baseline
type DiffSnapshotWrapper struct {
	Session *Session
}

func (d *DiffSnapshotWrapper) Name() string {
	return "compare_snapshot"
}

func (d *DiffSnapshotWrapper) Description() string {
	return "Compares the last generated report against a previously saved snapshot to identify new failures, fixed checks, checks still failing and score changes."
}

func (d *DiffSnapshotWrapper) Schema() map[string]interface{} {
	return filenameSchema("Optional filename of the baseline snapshot to compare against (default: " + engine.DefaultSnapshotPath + ")")
}

func (d *DiffSnapshotWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	current := d.Session.Report()
	if current == nil {
		return "Error: no report generated yet. Call generate_comprehensive_report first.", nil
	}

	filename := snapshotFile(args)
	baseline, err := engine.LoadSnapshot(filename)
	if err != nil {
		return fmt.Sprintf("Error loading baseline snapshot '%s': %v. Have you saved a snapshot before?", filename, err), nil
	}

	return fmt.Sprintf("Snapshot Comparison (vs %s):\n%s", filename, engine.Compare(baseline, current).Summary()), nil
}

func snapshotFile(args map[string]interface{}) string {
	if val, ok := args["filename"].(string); ok && val != "" {
		return val
	}
	return engine.DefaultSnapshotPath
}

func filenameSchema(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"filename": map[string]interface{}{
				"type":        "string",
				"description": desc,
			},
		},
	}
}
