// Package bootstrap implements the Orchestrator, which takes a cluster
// topology to a running ledger test cluster.
//
// Phases run strictly in order; each phase fans out over node indices and
// waits for every task before the next phase starts:
//
//	cleanup     reset the scheduler
//	capacity    drain and resize the server pool (clean runs only)
//	allocation  reserve one node per slot, all roles concurrently
//	support     spawn secret stores and signing proxies
//	secret-init create key slots on each secret store, with retries
//	genesis     run the genesis ceremony and distribute the blob
//	spawn       spawn validators and fullnodes
//	archive     upload genesis artifacts (optional)
//
// A failing phase aborts the run with the first error. Instances already
// spawned are left in place; Cleanup removes them.
package bootstrap
