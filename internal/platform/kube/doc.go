// Package kube implements the node provisioner on a Kubernetes cluster.
//
// Every slot of a bootstrap plan is pinned to one cluster node through the
// ledgerlab.io/slot node label. Workloads run as host-network pods on their
// node, so an instance is reachable on the node's internal IP. Per-slot state
// lives in a host directory under the configured data dir; wipe and copy
// operations run short-lived jobs on the node that mount it.
package kube
