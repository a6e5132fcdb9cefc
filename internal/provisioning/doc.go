// Package provisioning provides shared types, boundary interfaces, and phase
// orchestration for bootstrapping a ledger test cluster.
//
// # Subpackages
//
//   - bootstrap/: the Orchestrator: capacity, allocation, secret tier, genesis, spawn
//   - genesis/: the sequential genesis ceremony and artifact distribution
//   - secrets/: key-slot creation on secret-store nodes
//
// # Core Types
//
// Context carries configuration, state, observer, metrics and timeouts.
// Phase defines a provisioning step with Name() and Provision() methods.
// State accumulates results from each phase (node handles, spawned instances,
// the genesis artifact) and is turned into a ClusterDescriptor at the end.
//
// RoleConfig is a closed set: ValidatorConfig, FullnodeConfig,
// SigningProxyConfig and SecretStoreConfig are its only implementations.
package provisioning
