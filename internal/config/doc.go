// Package config defines the run configuration consumed by the bootstrap
// orchestrator and the platform clients.
//
// A run file is YAML with five sections:
//
//	topology:    cluster shape (validators, fullnodes, secret tier, overrides)
//	settings:    ports, chain id, credentials and transient paths
//	kubernetes:  scheduler access and workload images
//	pool:        Hetzner Cloud server pool backing the cluster
//	archive:     optional S3 upload of the genesis artifacts
//
// [LoadFile] decodes, applies defaults, and validates. [Default] returns the
// same defaults without a file. Timeouts come from the environment, see
// [LoadTimeouts].
package config
