package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/user/workspace-audit/pkg/controlmap"
)

var frameworksCmd = &cobra.Command{
	Use:   "frameworks",
	Short: "List the supported compliance frameworks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cm, err := loadControls(cfg)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"ID", "Name", "For", "Mapped checks"})
		for _, f := range controlmap.Frameworks {
			info, _ := controlmap.Info(f)
			t.AppendRow(table.Row{info.ID, info.DisplayName, info.Audience, len(cm.ChecksFor(f))})
		}
		return writeOutput(cmd.OutOrStdout(), "", []byte(t.Render()))
	},
}

func init() {
	rootCmd.AddCommand(frameworksCmd)
}
