package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/ledgerlab/cmd/ledgerlab/handlers"
)

// Plan returns the plan command.
func Plan() *cobra.Command {
	var (
		topo       topologyFlags
		configPath string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the node slots a bootstrap would allocate",
		Long: `Plan prints the number of scheduler nodes a bootstrap needs and the slot
name of every node, without contacting any remote system.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Plan(configPath, topo.topology(cmd), output)
		},
	}

	topo.bind(cmd)
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the run configuration file")
	cmd.Flags().StringVarP(&output, "output", "o", handlers.OutputText, "Output format: text, yaml or json")

	return cmd
}
