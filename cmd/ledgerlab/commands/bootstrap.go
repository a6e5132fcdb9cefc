package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/ledgerlab/cmd/ledgerlab/handlers"
)

// Bootstrap returns the bootstrap command.
func Bootstrap() *cobra.Command {
	var (
		topo            topologyFlags
		configPath      string
		cleanData       bool
		yes             bool
		output          string
		metricsTextfile string
	)

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap a ledger test cluster",
		Long: `Bootstrap provisions a complete ledger test cluster.

Every validator, fullnode, signing proxy and secret store gets a dedicated
scheduler node. With the vault backend the genesis ceremony registers each
validator's keys in its secret store, finalizes the genesis blob and copies
it to every validator before the validators start.

A clean run (--clean-data) first scales the compute pool to zero, scales it
back up to the required size and wipes all per-node state.

Example:
  ledgerlab bootstrap -c ledgerlab.yaml --num-validators 4 --cfg max_peers=8

WARNING: --clean-data destroys the state of any running test cluster.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Bootstrap(cmd.Context(), handlers.BootstrapOptions{
				ConfigPath:      configPath,
				Topology:        topo.topology(cmd),
				CleanData:       cleanData,
				Yes:             yes,
				Output:          output,
				MetricsTextfile: metricsTextfile,
			})
		},
	}

	topo.bind(cmd)
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the run configuration file")
	cmd.Flags().BoolVar(&cleanData, "clean-data", false, "Recycle the pool and wipe per-node state before spawning")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the clean-run confirmation prompt")
	cmd.Flags().StringVarP(&output, "output", "o", handlers.OutputText, "Output format: text, yaml or json")
	cmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write run metrics in Prometheus text format to this file")

	return cmd
}
