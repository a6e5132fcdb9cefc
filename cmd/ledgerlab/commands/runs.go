package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/ledgerlab/cmd/ledgerlab/handlers"
)

// Runs returns the runs command group for archived genesis artifacts.
func Runs() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived bootstrap runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ListRuns(cmd.Context(), configPath)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the run configuration file")

	cmd.AddCommand(fetchRun(&configPath))
	return cmd
}

func fetchRun(configPath *string) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "fetch RUN_ID [FILE]",
		Short: "Show an archived run's manifest or download one of its files",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 2 {
				file = args[1]
			}
			return handlers.FetchRun(cmd.Context(), *configPath, args[0], file, outPath)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "Write the file here instead of stdout")
	return cmd
}
