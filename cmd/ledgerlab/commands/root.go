// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import (
	goflag "flag"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/imamik/ledgerlab/cmd/ledgerlab/handlers"
)

// Root returns the root command for the ledgerlab CLI.
func Root() *cobra.Command {
	logOpts := zap.Options{
		Development: os.Getenv("DEBUG") == "true" || isatty.IsTerminal(os.Stderr.Fd()),
	}

	cmd := &cobra.Command{
		Use:           "ledgerlab",
		Short:         "Bootstrap ledger test clusters on Kubernetes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			handlers.SetLogger(zap.New(zap.UseFlagOptions(&logOpts)))
		},
	}

	goflags := goflag.NewFlagSet("zap", goflag.ContinueOnError)
	logOpts.BindFlags(goflags)
	cmd.PersistentFlags().AddGoFlagSet(goflags)

	cmd.AddCommand(Bootstrap())
	cmd.AddCommand(Cleanup())
	cmd.AddCommand(Plan())
	cmd.AddCommand(Runs())
	cmd.AddCommand(Version())

	return cmd
}
