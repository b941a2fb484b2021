package cmd

import (
	"github.com/spf13/cobra"

	"github.com/user/workspace-audit/pkg/engine"
	"github.com/user/workspace-audit/pkg/render"
)

var compareJSON bool

var compareCmd = &cobra.Command{
	Use:   "compare <baseline.json> [current.json]",
	Short: "Compare a report against a saved baseline",
	Long: `Shows which checks started failing, which were fixed, which still fail and how
the scores moved. The current report defaults to ` + engine.DefaultSnapshotPath + `.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseline, err := engine.LoadSnapshot(args[0])
		if err != nil {
			return err
		}
		currentPath := engine.DefaultSnapshotPath
		if len(args) == 2 {
			currentPath = args[1]
		}
		current, err := engine.LoadSnapshot(currentPath)
		if err != nil {
			return err
		}

		d := engine.Compare(baseline, current)
		if compareJSON {
			out, err := engine.MarshalIndent(d)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), "", out)
		}
		return writeOutput(cmd.OutOrStdout(), "", []byte(render.RenderDiff(d)))
	},
}

func init() {
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "Print the comparison as JSON")
	rootCmd.AddCommand(compareCmd)
}
