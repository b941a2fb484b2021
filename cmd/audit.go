package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/workspace-audit/pkg/checks"
	"github.com/user/workspace-audit/pkg/controlmap"
	"github.com/user/workspace-audit/pkg/engine"
)

var (
	auditOpts     reportOptions
	auditChecks   []string
	auditFindings string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the checks against the tenant and build the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)
		cm, err := loadControls(cfg)
		if err != nil {
			return err
		}
		env, err := newEnv(cmd.Context(), cfg, cm, log, auditOpts.domain)
		if err != nil {
			return err
		}
		if env.Domain == "" {
			return errors.New("no domain: pass --domain or set workspace.domain")
		}
		if env.Directory == nil {
			return errors.New("no Workspace credentials: run 'wsaudit config set-workspace' or set GOOGLE_APPLICATION_CREDENTIALS")
		}

		frameworks := auditOpts.frameworks
		if len(frameworks) == 0 {
			frameworks = cfg.Audit.Frameworks
		}

		reg := checks.NewRegistry()
		selected, err := selectChecks(reg, auditChecks, frameworks)
		if err != nil {
			return err
		}

		runner := &checks.Runner{
			Env:         env,
			Concurrency: cfg.Workspace.MaxConcurrentChecks,
			Progress:    func(line string) { fmt.Fprintln(cmd.ErrOrStderr(), line) },
		}
		results, err := runner.Run(cmd.Context(), selected)
		if err != nil {
			return err
		}
		findings := checks.Collect(results)

		if auditFindings != "" {
			data, err := engine.MarshalIndent(findings)
			if err != nil {
				return err
			}
			if err := os.WriteFile(auditFindings, data, 0600); err != nil {
				return fmt.Errorf("writing findings: %w", err)
			}
		}

		req := engine.Request{
			Domain:       env.Domain,
			Frameworks:   frameworks,
			Findings:     findings,
			ContextNotes: auditOpts.contextNotes,
		}
		return emitReport(cmd, newEngine(cm, log), req, auditOpts)
	},
}

// selectChecks picks the named checks, or every check that applies to frameworks.
func selectChecks(reg *checks.Registry, ids, frameworks []string) ([]checks.Check, error) {
	if len(ids) > 0 {
		return reg.Select(ids)
	}
	var active []controlmap.Framework
	for _, id := range frameworks {
		if f, ok := controlmap.ParseFramework(id); ok {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		active = []controlmap.Framework{controlmap.CMMC}
	}
	return reg.ForFrameworks(active), nil
}

func init() {
	addReportFlags(auditCmd, &auditOpts)
	auditCmd.Flags().StringSliceVar(&auditChecks, "checks", nil, "Run only these check ids")
	auditCmd.Flags().StringVar(&auditFindings, "findings-out", "", "Also write the raw findings object to this file")
	rootCmd.AddCommand(auditCmd)
}
