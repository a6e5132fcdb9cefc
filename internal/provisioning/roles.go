package provisioning

import (
	"fmt"

	"github.com/imamik/ledgerlab/internal/util/naming"
)

// RoleConfig is the per-workload configuration handed to SpawnInstance.
// The set of implementations is closed; see the type switch in SlotName.
type RoleConfig interface {
	Role() Role
	// RoleIndex is the index within the role (validator index for all roles
	// except fullnodes, which use their flat index).
	RoleIndex() int
	roleConfig()
}

// ValidatorConfig configures a validator workload.
type ValidatorConfig struct {
	Index         int
	NumValidators int
	NumFullnodes  int
	ImageTag      string
	Overrides     []string
	SeedPeer      string

	EnableSigningProxy  bool
	SigningProxyAddress string
}

// FullnodeConfig configures a fullnode attached to a validator.
type FullnodeConfig struct {
	ValidatorIndex        int
	FullnodeIndex         int
	NumValidators         int
	FullnodesPerValidator int
	ImageTag              string
	Overrides             []string
	SeedPeer              string
}

// SigningProxyConfig configures the signing service a validator delegates to.
type SigningProxyConfig struct {
	Index         int
	NumValidators int
	ImageTag      string
	Backend       string
	// SecretStoreURL is set when the backend is a remote secret store.
	SecretStoreURL string
}

// SecretStoreConfig configures a secret-store node.
type SecretStoreConfig struct {
	Index int
}

func (ValidatorConfig) Role() Role    { return RoleValidator }
func (FullnodeConfig) Role() Role     { return RoleFullnode }
func (SigningProxyConfig) Role() Role { return RoleSigningProxy }
func (SecretStoreConfig) Role() Role  { return RoleSecretStore }

func (c ValidatorConfig) RoleIndex() int { return c.Index }
func (c FullnodeConfig) RoleIndex() int {
	return c.ValidatorIndex*c.FullnodesPerValidator + c.FullnodeIndex
}
func (c SigningProxyConfig) RoleIndex() int { return c.Index }
func (c SecretStoreConfig) RoleIndex() int  { return c.Index }

func (ValidatorConfig) roleConfig()    {}
func (FullnodeConfig) roleConfig()     {}
func (SigningProxyConfig) roleConfig() {}
func (SecretStoreConfig) roleConfig()  {}

// SlotName returns the deterministic slot name for cfg.
func SlotName(cfg RoleConfig) string {
	switch c := cfg.(type) {
	case ValidatorConfig:
		return naming.Validator(c.Index)
	case FullnodeConfig:
		return naming.Fullnode(c.ValidatorIndex, c.FullnodeIndex)
	case SigningProxyConfig:
		return naming.SigningProxy(c.Index)
	case SecretStoreConfig:
		return naming.SecretStore(c.Index)
	default:
		panic(fmt.Sprintf("unknown role config %T", cfg))
	}
}
