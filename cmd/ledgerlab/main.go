// Package main is the entry point for the ledgerlab CLI.
//
// ledgerlab bootstraps ledger test clusters on Kubernetes: it allocates a
// node per validator, fullnode, signing proxy and secret store, runs the
// genesis ceremony against the secret stores and starts every workload.
//
// Commands: bootstrap, cleanup, plan, runs, version.
//
// For detailed usage information, run:
//
//	ledgerlab --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/ledgerlab/cmd/ledgerlab/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
