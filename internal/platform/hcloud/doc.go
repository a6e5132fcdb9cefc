// Package hcloud sizes the Hetzner Cloud server pool that backs the
// scheduler's worker nodes.
//
// # Pool Model
//
// A pool is the set of servers labeled ledgerlab.io/pool=<name>. Servers are
// named <pool>-<index> and indices are reused from the lowest free one on
// scale-up. Scale-down removes the highest indices first so the surviving
// names stay dense.
//
// # Headroom
//
// A resize to N with H percent headroom provisions ceil(N * (1 + H/100))
// servers but only waits for N of them to be running. The extra servers
// absorb slow or failed boots without delaying the bootstrap.
//
// # Retries
//
// Server creation and deletion use exponential backoff from
// internal/util/retry. Invalid-parameter errors from the API are fatal and
// never retried; locked or conflicting resources are.
package hcloud
