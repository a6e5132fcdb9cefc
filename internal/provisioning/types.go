package provisioning

import "github.com/imamik/ledgerlab/internal/util/naming"

// Role identifies the workload a node slot runs.
type Role string

const (
	RoleValidator    Role = "validator"
	RoleFullnode     Role = "fullnode"
	RoleSigningProxy Role = "signing-proxy"
	RoleSecretStore  Role = "secret-store"
)

// Roles lists every role in spawn-report order.
var Roles = []Role{RoleSecretStore, RoleSigningProxy, RoleValidator, RoleFullnode}

// NodeHandle is an allocated execution slot. It is created by the allocator
// and never modified afterwards.
type NodeHandle struct {
	// Name is the slot name, unique within the run (e.g. validator-3).
	Name string `json:"name"`
	// Host is the scheduler node backing the slot.
	Host string `json:"host"`
	// InternalAddress is the address other nodes use to reach the slot.
	InternalAddress string `json:"internalAddress"`
}

// Instance is a running workload.
type Instance struct {
	Role    Role       `json:"role"`
	Index   int        `json:"index"`
	Name    string     `json:"name"`
	Node    NodeHandle `json:"node"`
	Address string     `json:"address"`
	Image   string     `json:"image"`
}

// ClusterDescriptor is the result of a successful bootstrap. Each sequence is
// ordered by role index.
type ClusterDescriptor struct {
	RunID          string           `json:"runId"`
	Validators     []Instance       `json:"validators"`
	Fullnodes      []Instance       `json:"fullnodes"`
	SigningProxies []Instance       `json:"signingProxies,omitempty"`
	SecretStores   []Instance       `json:"secretStores,omitempty"`
	Genesis        *GenesisArtifact `json:"genesis,omitempty"`
}

// InstanceCount returns the number of instances across all roles.
func (d *ClusterDescriptor) InstanceCount() int {
	return len(d.Validators) + len(d.Fullnodes) + len(d.SigningProxies) + len(d.SecretStores)
}

// Layout is the genesis topology document.
type Layout struct {
	Owners    []string `toml:"owners" json:"owners"`
	Operators []string `toml:"operators" json:"operators"`
	Root      []string `toml:"ledger_root" json:"root"`
}

// NewLayout names every validator as both owner and operator.
func NewLayout(numValidators int, rootIdentity string) Layout {
	owners := make([]string, numValidators)
	for i := range owners {
		owners[i] = naming.Validator(i)
	}
	return Layout{
		Owners:    owners,
		Operators: append([]string(nil), owners...),
		Root:      []string{rootIdentity},
	}
}

// GenesisArtifact is the output of the genesis ceremony. It is produced once
// per run and never modified after finalization.
type GenesisArtifact struct {
	Blob        []byte            `json:"-"`
	Digest      string            `json:"digest"`
	Layout      Layout            `json:"layout"`
	Waypoints   map[string]string `json:"waypoints"`
	GenesisPath string            `json:"genesisPath"`
	LayoutPath  string            `json:"layoutPath"`
	TokenPath   string            `json:"tokenPath"`
	RootKeyPath string            `json:"rootKeyPath"`
}
