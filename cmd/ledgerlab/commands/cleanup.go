package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/ledgerlab/cmd/ledgerlab/handlers"
)

// Cleanup returns the cleanup command.
func Cleanup() *cobra.Command {
	var (
		configPath string
		scaleDown  bool
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove every ledgerlab workload and node allocation",
		Long: `Cleanup resets the scheduler: it deletes all managed pods, jobs and
secrets and releases every node allocation.

With --scale-down the compute pool is resized to zero afterwards.

Example:
  ledgerlab cleanup -c ledgerlab.yaml --scale-down`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Cleanup(cmd.Context(), configPath, scaleDown, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the run configuration file")
	cmd.Flags().BoolVar(&scaleDown, "scale-down", false, "Resize the compute pool to zero after cleanup")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
