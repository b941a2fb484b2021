package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/workspace-audit/pkg/checks"
	"github.com/user/workspace-audit/pkg/config"
	"github.com/user/workspace-audit/pkg/controlmap"
	"github.com/user/workspace-audit/pkg/engine"
	"github.com/user/workspace-audit/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "wsaudit",
	Short: "Google Workspace compliance audits for MSPs",
	Long: `wsaudit audits a Google Workspace tenant and scores the results against
CMMC, NIST 800-171, NIST CSF, ISO 27001, HIPAA and the FTC Safeguards Rule.`,
	SilenceUsage: true,
}

var (
	DebugMode  bool
	ConfigPath string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "Config file (default ~/.wsaudit/config.yaml)")
}

// loadConfig reads the config file and applies environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.Config{Level: cfg.Audit.LogLevel, Debug: DebugMode})
}

// loadControls returns the configured control map, or the built-in one.
func loadControls(cfg *config.Config) (*controlmap.ControlMap, error) {
	if cfg.Audit.ControlMapFile == "" {
		return controlmap.Default(), nil
	}
	cm, err := controlmap.LoadFile(cfg.Audit.ControlMapFile)
	if err != nil {
		return nil, fmt.Errorf("loading control map: %w", err)
	}
	return cm, nil
}

func newEngine(cm *controlmap.ControlMap, log *logging.Logger) *engine.Engine {
	return engine.New(cm, engine.WithLogger(log))
}

// newEnv builds the check environment. Without credentials the directory is left
// nil and only manual checks can run.
func newEnv(ctx context.Context, cfg *config.Config, cm *controlmap.ControlMap, log *logging.Logger, domain string) (*checks.Env, error) {
	env := &checks.Env{Domain: domain, Controls: cm, Log: log}
	if domain == "" {
		env.Domain = cfg.Workspace.Domain
	}
	if cfg.Workspace.CredentialsFile == "" {
		return env, nil
	}
	dir, err := checks.NewGoogleDirectory(ctx, checks.GoogleConfig{
		CredentialsFile: cfg.Workspace.CredentialsFile,
		AdminEmail:      cfg.Workspace.AdminEmail,
		Customer:        cfg.Workspace.Customer,
		RequestDelay:    cfg.Workspace.RequestDelay,
	}, log)
	if err != nil {
		return nil, err
	}
	env.Directory = dir
	return env, nil
}

// writeOutput writes data to path, or to w when path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		if err == nil && len(data) > 0 && data[len(data)-1] != '\n' {
			_, err = io.WriteString(w, "\n")
		}
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// readInput reads path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
