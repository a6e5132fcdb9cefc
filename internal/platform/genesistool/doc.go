// Package genesistool drives the ledger's genesis tool binary. Every
// GenesisTool operation is one subcommand invocation; the shared namespace
// lives in a local on-disk store that persists between invocations of a run.
package genesistool
