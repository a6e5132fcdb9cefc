package provisioning

import (
	"context"

	ma "github.com/multiformats/go-multiaddr"
)

// Phase defines the interface for a provisioning phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the provisioning logic for this phase.
	Provision(ctx *Context) error
}

// NodeProvisioner is the scheduler boundary.
// Implemented by internal/platform/kube.Provisioner.
type NodeProvisioner interface {
	// Cleanup removes every workload and allocation from earlier runs.
	Cleanup(ctx context.Context) error

	// AllocateNode reserves a node for the slot name. Allocating a slot that
	// is already held returns the existing handle.
	AllocateNode(ctx context.Context, name string) (NodeHandle, error)

	// WipeData deletes persistent state on the node allocated to the slot.
	WipeData(ctx context.Context, name string) error

	// SpawnInstance starts the workload described by cfg on node and returns
	// once it is running.
	SpawnInstance(ctx context.Context, node NodeHandle, cfg RoleConfig) (Instance, error)

	// CopyFile writes data to destPath inside the node allocated to the slot,
	// where it is visible to the named container.
	CopyFile(ctx context.Context, name, containerName, destPath string, data []byte) error
}

// ResizeRequest describes a pool resize.
type ResizeRequest struct {
	Target int
	// HeadroomPercent adds capacity on top of Target when scaling up.
	HeadroomPercent  float64
	WaitForScaleUp   bool
	WaitForScaleDown bool
}

// PoolScaler resizes the compute pool backing the scheduler.
// Implemented by internal/platform/hcloud.PoolScaler.
type PoolScaler interface {
	Resize(ctx context.Context, req ResizeRequest) error
}

// SecretStore creates named cryptographic keys. Creating a key that already
// exists succeeds.
type SecretStore interface {
	CreateKey(ctx context.Context, name string) error
}

// SecretStoreDialer opens a SecretStore client for one node.
// Implemented by internal/platform/vault.Dialer.
type SecretStoreDialer interface {
	Dial(url, token, namespace string) (SecretStore, error)
}

// BackendRef addresses a secret-store backend for the genesis tool.
type BackendRef struct {
	Backend   string
	ServerURL string
	TokenPath string
	Namespace string
}

// ValidatorConfigRequest registers a validator's network endpoints.
type ValidatorConfigRequest struct {
	Identity         string
	ValidatorAddress ma.Multiaddr
	FullnodeAddress  ma.Multiaddr
	ChainID          int
	Backend          BackendRef
}

// GenesisTool is the boundary to the genesis document tool.
// Implemented by internal/platform/genesistool.Tool.
type GenesisTool interface {
	SetLayout(ctx context.Context, path, namespace string) error
	RegisterRootKey(ctx context.Context, ref BackendRef, identity string) error
	RegisterOwnerKey(ctx context.Context, ref BackendRef, identity string) error
	RegisterOperatorKey(ctx context.Context, ref BackendRef, identity string) error
	RegisterValidatorConfig(ctx context.Context, req ValidatorConfigRequest) error
	SetOperator(ctx context.Context, owner, operator string) error
	Finalize(ctx context.Context, chainID int, outputPath string) error
	CreateWaypoint(ctx context.Context, chainID int, ref BackendRef, identity string) (string, error)
	ExtractPrivateKey(ctx context.Context, keyName, outputPath string, ref BackendRef) error
}

// ArtifactArchiver stores the genesis artifacts of a run.
// Implemented by internal/platform/s3.Archiver.
type ArtifactArchiver interface {
	Archive(ctx context.Context, runID string, files map[string][]byte) error
}
