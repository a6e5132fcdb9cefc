package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/ledgerlab/cmd/ledgerlab/handlers"
)

// topologyFlags binds the flags that override the run file's topology.
type topologyFlags struct {
	numValidators         int
	fullnodesPerValidator int
	enableSecretTier      bool
	secretBackend         string
	overrides             []string
	imageTag              string
}

func (f *topologyFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVar(&f.numValidators, "num-validators", 0, "Number of validators")
	flags.IntVar(&f.fullnodesPerValidator, "fullnodes-per-validator", 0, "Number of fullnodes attached to each validator")
	flags.BoolVar(&f.enableSecretTier, "enable-secret-tier", true, "Run signing proxies (and secret stores with the vault backend)")
	flags.StringVar(&f.secretBackend, "secret-backend", "", "Signing proxy key backend: in-memory, on-disk or vault")
	flags.StringSliceVar(&f.overrides, "cfg", nil, "Node config overrides as key=value (comma-delimited, repeatable)")
	flags.StringVar(&f.imageTag, "image-tag", "", "Image tag for validator, fullnode and signing proxy workloads")
}

// topology returns the overrides for the flags the user set.
func (f *topologyFlags) topology(cmd *cobra.Command) handlers.TopologyOverrides {
	flags := cmd.Flags()
	var o handlers.TopologyOverrides
	if flags.Changed("num-validators") {
		o.NumValidators = &f.numValidators
	}
	if flags.Changed("fullnodes-per-validator") {
		o.FullnodesPerValidator = &f.fullnodesPerValidator
	}
	if flags.Changed("enable-secret-tier") {
		o.EnableSecretTier = &f.enableSecretTier
	}
	if flags.Changed("secret-backend") {
		o.SecretBackend = &f.secretBackend
	}
	if flags.Changed("image-tag") {
		o.ImageTag = &f.imageTag
	}
	o.ConfigOverrides = f.overrides
	return o
}
