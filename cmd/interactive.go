package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/workspace-audit/pkg/adk"
	"github.com/user/workspace-audit/pkg/checks"
	"github.com/user/workspace-audit/pkg/config"
	"github.com/user/workspace-audit/pkg/wrappers"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start the interactive audit agent",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}
		log := newLogger(cfg)

		providerName := cfg.SelectedProvider
		if providerName == "" {
			providerName = config.DefaultProvider
		}
		apiKey := cfg.GetAPIKey(providerName)
		if apiKey == "" {
			fmt.Println("Error: API Key not found.")
			fmt.Println("Please run 'wsaudit config setup' to configure your keys.")
			return
		}

		ctx := context.Background()
		fmt.Printf("Connecting to %s (Model: %s)...\n", providerName, cfg.SelectedModel)
		provider, err := adk.NewProvider(ctx, providerName, apiKey, cfg.SelectedModel)
		if err != nil {
			fmt.Printf("Error creating AI provider: %v\n", err)
			return
		}
		if closer, ok := provider.(interface{ Close() }); ok {
			defer closer.Close()
		}

		cm, err := loadControls(cfg)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		env, err := newEnv(ctx, cfg, cm, log, "")
		if err != nil {
			fmt.Printf("Warning: Workspace API unavailable, only manual checks will run: %v\n", err)
			env = &checks.Env{Domain: cfg.Workspace.Domain, Controls: cm, Log: log}
		}
		reg := checks.NewRegistry()
		session := &wrappers.Session{}

		agent := adk.NewAgent(provider, log)
		agent.RegisterTool(&wrappers.StartAuditWrapper{Registry: reg})
		for _, t := range wrappers.CheckTools(reg, env) {
			agent.RegisterTool(t)
		}
		agent.RegisterTool(&wrappers.RunChecksWrapper{Registry: reg, Env: env, Concurrency: cfg.Workspace.MaxConcurrentChecks})
		agent.RegisterTool(&wrappers.ReportWrapper{Engine: newEngine(cm, log), Session: session})
		agent.RegisterTool(&wrappers.SaveSnapshotWrapper{Session: session})
		agent.RegisterTool(&wrappers.DiffSnapshotWrapper{Session: session})

		progress := func(msg string) {
			fmt.Printf("\r\033[K[Progress]: %s\nAgent thinking... ", msg)
		}

		if pre := adk.SessionPreamble(cfg.Workspace.Domain, cfg.Audit.Frameworks); pre != "" {
			fmt.Print("Agent thinking... ")
			resp, err := agent.Chat(ctx, pre, progress)
			fmt.Print("\r\033[K")
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			} else {
				fmt.Printf("\n[Agent]: %s\n", resp)
			}
		}

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("\n---------------------------------------------------------")
		fmt.Println("wsaudit agent initialized. Ready for commands.")
		fmt.Println("Example: 'Run a CMMC and HIPAA audit of example.com'")
		fmt.Println("Example: 'Which users have no 2-step verification?'")
		fmt.Println("Type 'quit' or 'exit' to stop.")
		fmt.Println("---------------------------------------------------------")

		for {
			fmt.Print("\n> ")
			if !scanner.Scan() {
				break
			}
			input := scanner.Text()
			if input == "quit" || input == "exit" {
				break
			}
			if input == "" {
				continue
			}

			fmt.Print("Agent thinking... ")
			resp, err := agent.Chat(ctx, input, progress)
			fmt.Print("\r\033[K")

			if err != nil {
				fmt.Printf("Error: %v\n", err)
			} else {
				fmt.Printf("\n[Agent]: %s\n", resp)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}
