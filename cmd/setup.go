package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/workspace-audit/pkg/adk"
	"github.com/user/workspace-audit/pkg/config"
	"github.com/user/workspace-audit/pkg/controlmap"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Run: func(cmd *cobra.Command, args []string) {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		ask := func(prompt, current string) string {
			if current != "" {
				fmt.Printf("%s [%s] > ", prompt, current)
			} else {
				fmt.Printf("%s > ", prompt)
			}
			if !scanner.Scan() {
				return current
			}
			if v := strings.TrimSpace(scanner.Text()); v != "" {
				return v
			}
			return current
		}

		cfg, err := config.LoadConfig(ConfigPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		fmt.Println("Welcome to the wsaudit Setup Wizard")
		fmt.Println("-----------------------------------")

		// 1. Workspace tenant
		fmt.Println("Step 1: Workspace to audit")
		cfg.Workspace.Domain = ask("Domain (e.g. example.com)", cfg.Workspace.Domain)
		cfg.Workspace.AdminEmail = ask("Super admin email the service account impersonates", cfg.Workspace.AdminEmail)
		cfg.Workspace.CredentialsFile = ask("Service account key file", cfg.Workspace.CredentialsFile)
		if cfg.Workspace.CredentialsFile != "" {
			if _, err := os.Stat(cfg.Workspace.CredentialsFile); err != nil {
				fmt.Printf("Warning: %v\n", err)
			}
		}

		// 2. Frameworks
		fmt.Println("\nStep 2: Default compliance frameworks")
		for i, f := range controlmap.Frameworks {
			info, _ := controlmap.Info(f)
			fmt.Printf("%d. %s (%s)\n", i+1, info.DisplayName, info.Audience)
		}
		picked := ask("Enter numbers or names, comma separated", strings.Join(cfg.Audit.Frameworks, ","))
		cfg.Audit.Frameworks = pickFrameworks(picked)

		// 3. Agent key and model
		fmt.Printf("\nStep 3: API key for %s (used by 'wsaudit interactive', leave empty to skip)\n", config.DefaultProvider)
		apiKey := ask("API key", "")
		if apiKey != "" {
			cfg.SelectedProvider = config.DefaultProvider
			cfg.SetAPIKey(config.DefaultProvider, apiKey)
			cfg.SelectedModel = chooseModel(cmd.Context(), apiKey, cfg.SelectedModel, ask)
		}

		// 4. Save
		fmt.Println("\nStep 4: Saving Configuration...")
		if err := config.SaveConfig(cfg, ConfigPath); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}

		fmt.Println("-----------------------------------")
		fmt.Println("Setup Complete!")
		fmt.Printf("Domain:     %s\n", cfg.Workspace.Domain)
		fmt.Printf("Frameworks: %s\n", strings.Join(cfg.Audit.Frameworks, ", "))
		fmt.Printf("Model:      %s\n", cfg.SelectedModel)
		fmt.Println("You can now run 'wsaudit audit' or 'wsaudit interactive'")
	},
}

// pickFrameworks maps menu numbers and names to framework ids. Unknown entries are
// dropped; nothing valid means CMMC.
func pickFrameworks(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if n, err := strconv.Atoi(part); err == nil && n >= 1 && n <= len(controlmap.Frameworks) {
			out = append(out, string(controlmap.Frameworks[n-1]))
			continue
		}
		if f, ok := controlmap.ParseFramework(part); ok {
			out = append(out, string(f))
		}
	}
	if len(out) == 0 {
		return []string{string(controlmap.CMMC)}
	}
	return out
}

func chooseModel(ctx context.Context, apiKey, current string, ask func(string, string) string) string {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Println("Validating key and fetching available models...")
	provider, err := adk.NewProvider(ctx, config.DefaultProvider, apiKey, "")
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
		return ask("Model name", current)
	}
	if closer, ok := provider.(interface{ Close() }); ok {
		defer closer.Close()
	}

	models, err := provider.ListModels(ctx)
	if err != nil || len(models) == 0 {
		fmt.Printf("Warning: Could not fetch models from API: %v\n", err)
		return ask("Model name", current)
	}
	fmt.Printf("Successfully retrieved %d models.\n", len(models))
	for i, m := range models {
		fmt.Printf("%d. %s\n", i+1, m)
	}
	sel, err := strconv.Atoi(ask("Select Model (number)", ""))
	if err != nil || sel < 1 || sel > len(models) {
		fmt.Println("Invalid selection. Using first available model.")
		return models[0]
	}
	return models[sel-1]
}

func init() {
	configCmd.AddCommand(setupCmd)
}
