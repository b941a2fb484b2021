package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/user/workspace-audit/pkg/adk"
	"github.com/user/workspace-audit/pkg/checks"
	"github.com/user/workspace-audit/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration (workspace, provider, model, keys)",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Manually set API key for a provider",
	Run: func(cmd *cobra.Command, args []string) {
		provider, _ := cmd.Flags().GetString("provider")
		key, _ := cmd.Flags().GetString("key")

		if key == "" {
			fmt.Println("Error: --key is required")
			return
		}

		cfg, err := config.LoadConfig(ConfigPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		cfg.SetAPIKey(strings.ToLower(provider), key)
		if err := config.SaveConfig(cfg, ConfigPath); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("API key saved for provider: %s\n", provider)
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model",
	Short: "Manually set the active provider and model",
	Run: func(cmd *cobra.Command, args []string) {
		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")

		cfg, err := config.LoadConfig(ConfigPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		if provider != "" {
			cfg.SelectedProvider = strings.ToLower(provider)
		}
		if model != "" {
			cfg.SelectedModel = model
		}

		if err := config.SaveConfig(cfg, ConfigPath); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("Active configuration updated: Provider=%s, Model=%s\n", cfg.SelectedProvider, cfg.SelectedModel)
	},
}

var setWorkspaceCmd = &cobra.Command{
	Use:   "set-workspace",
	Short: "Set the audited domain and the service account used to read it",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(ConfigPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		flags := cmd.Flags()
		if v, _ := flags.GetString("domain"); v != "" {
			cfg.Workspace.Domain = v
		}
		if v, _ := flags.GetString("admin-email"); v != "" {
			cfg.Workspace.AdminEmail = v
		}
		if v, _ := flags.GetString("credentials"); v != "" {
			cfg.Workspace.CredentialsFile = v
		}
		if v, _ := flags.GetString("customer"); v != "" {
			cfg.Workspace.Customer = v
		}
		if flags.Changed("request-delay") {
			cfg.Workspace.RequestDelay, _ = flags.GetDuration("request-delay")
		}
		if flags.Changed("concurrency") {
			cfg.Workspace.MaxConcurrentChecks, _ = flags.GetInt("concurrency")
		}
		if v, _ := flags.GetStringSlice("frameworks"); len(v) > 0 {
			cfg.Audit.Frameworks = v
		}
		if v, _ := flags.GetString("control-map"); v != "" {
			cfg.Audit.ControlMapFile = v
		}

		if err := config.SaveConfig(cfg, ConfigPath); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("Workspace configuration updated: Domain=%s, Admin=%s\n", cfg.Workspace.Domain, cfg.Workspace.AdminEmail)
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with keys masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for name, p := range cfg.Providers {
			p.APIKey = mask(p.APIKey)
			cfg.Providers[name] = p
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), "", out)
	},
}

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List available models from the configured provider",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Println("Error loading config:", err)
			return
		}

		provider := cfg.SelectedProvider
		if provider == "" {
			fmt.Println("No provider selected. Please run 'wsaudit config setup'.")
			return
		}
		apiKey := cfg.GetAPIKey(provider)
		if apiKey == "" {
			fmt.Printf("No API key found for %s.\n", provider)
			return
		}

		fmt.Printf("Fetching models for %s...\n", provider)
		ctx := context.Background()
		p, err := adk.NewProvider(ctx, provider, apiKey, "")
		if err != nil {
			fmt.Println("Error initializing provider:", err)
			return
		}

		models, err := p.ListModels(ctx)
		if err != nil {
			fmt.Println("Error fetching models:", err)
			return
		}

		fmt.Printf("\nAvailable Models (%s):\n", provider)
		for _, m := range models {
			mark := " "
			if m == cfg.SelectedModel {
				mark = "*"
			}
			fmt.Printf("%s %s\n", mark, m)
		}
	},
}

func mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func init() {
	setKeyCmd.Flags().StringP("provider", "p", config.DefaultProvider, "Provider ("+strings.Join(adk.Providers, ", ")+")")
	setKeyCmd.Flags().StringP("key", "k", "", "API Key")

	setModelCmd.Flags().StringP("provider", "p", "", "Provider ("+strings.Join(adk.Providers, ", ")+")")
	setModelCmd.Flags().StringP("model", "m", "", "Model name")

	setWorkspaceCmd.Flags().String("domain", "", "Workspace domain to audit")
	setWorkspaceCmd.Flags().String("admin-email", "", "Super admin the service account impersonates")
	setWorkspaceCmd.Flags().String("credentials", "", "Service account key file")
	setWorkspaceCmd.Flags().String("customer", "", "Customer id (default my_customer)")
	setWorkspaceCmd.Flags().Duration("request-delay", checks.DefaultRequestDelay, "Delay between API requests")
	setWorkspaceCmd.Flags().Int("concurrency", checks.DefaultConcurrency, "Checks run at once")
	setWorkspaceCmd.Flags().StringSlice("frameworks", nil, "Default frameworks, e.g. CMMC,HIPAA")
	setWorkspaceCmd.Flags().String("control-map", "", "Custom control map file (.yaml or .toml)")

	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(setWorkspaceCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(listModelsCmd)
	rootCmd.AddCommand(configCmd)
}
