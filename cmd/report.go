package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/workspace-audit/pkg/engine"
	"github.com/user/workspace-audit/pkg/render"
)

type reportOptions struct {
	findings     string
	domain       string
	frameworks   []string
	contextNotes string
	format       string
	output       string
	noColor      bool
	snapshot     string
}

var reportOpts reportOptions

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build a compliance report from collected check results",
	Long: `Reads a findings object keyed by check id, e.g.
  {"check_2fa_status": {...}, "check_admin_roles": {...}}
and prints the multi-framework compliance report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportOpts.findings == "" {
			return errors.New("--findings is required (use - for stdin)")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)
		cm, err := loadControls(cfg)
		if err != nil {
			return err
		}

		data, err := readInput(cmd, reportOpts.findings)
		if err != nil {
			return fmt.Errorf("reading findings: %w", err)
		}
		req := engine.Request{
			Domain:       reportOpts.domain,
			Frameworks:   reportOpts.frameworks,
			Findings:     data,
			ContextNotes: reportOpts.contextNotes,
		}
		if req.Domain == "" {
			req.Domain = cfg.Workspace.Domain
		}
		if len(req.Frameworks) == 0 {
			req.Frameworks = cfg.Audit.Frameworks
		}
		return emitReport(cmd, newEngine(cm, log), req, reportOpts)
	},
}

// emitReport generates, saves and prints the report. Malformed findings print the
// error document and fail the command.
func emitReport(cmd *cobra.Command, eng *engine.Engine, req engine.Request, opts reportOptions) error {
	renderer, err := render.Get(opts.format, opts.noColor)
	if err != nil {
		return err
	}

	report, _, err := eng.Generate(req)
	if err != nil {
		var malformed *engine.MalformedInputError
		if errors.As(err, &malformed) {
			_ = writeOutput(cmd.OutOrStdout(), opts.output, eng.Render(req))
		}
		return err
	}

	if opts.snapshot != "" {
		if err := engine.SaveSnapshot(report, opts.snapshot); err != nil {
			return err
		}
	}
	out, err := renderer.Render(report)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), opts.output, out)
}

func addReportFlags(cmd *cobra.Command, opts *reportOptions) {
	cmd.Flags().StringVarP(&opts.domain, "domain", "d", "", "Workspace domain (default from config)")
	cmd.Flags().StringSliceVarP(&opts.frameworks, "frameworks", "f", nil, "Frameworks to score, e.g. CMMC,HIPAA (default from config)")
	cmd.Flags().StringVar(&opts.contextNotes, "context", "", "Context notes for the report")
	cmd.Flags().StringVarP(&opts.format, "format", "o", "json", "Output format (json, text)")
	cmd.Flags().StringVar(&opts.output, "output", "", "Write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored text output")
	cmd.Flags().StringVar(&opts.snapshot, "save-snapshot", "", "Also save the report as a snapshot at this path")
}

func init() {
	reportCmd.Flags().StringVar(&reportOpts.findings, "findings", "", "Findings JSON file, or - for stdin")
	addReportFlags(reportCmd, &reportOpts)
	rootCmd.AddCommand(reportCmd)
}
