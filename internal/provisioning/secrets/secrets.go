// Package secrets creates the cryptographic key slots each validator needs on
// its secret-store node.
package secrets

import (
	"context"
	"fmt"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/util/naming"
)

const phase = "secret-init"

// Key slot suffixes. Slot names are <identity>__<key>.
const (
	OwnerKey            = "owner"
	OperatorKey         = "operator"
	ConsensusKey        = "consensus"
	ExecutionKey        = "execution"
	ValidatorNetworkKey = "validator_network"
	FullnodeNetworkKey  = "fullnode_network"
	RootKey             = "ledger_root"
)

// NodeKeys are created on every secret-store node, in this order.
var NodeKeys = []string{
	OwnerKey,
	OperatorKey,
	ConsensusKey,
	ExecutionKey,
	ValidatorNetworkKey,
	FullnodeNetworkKey,
}

// Initializer creates key slots on secret-store nodes. It does not retry;
// callers wrap InitializeNode in their own retry policy. Every key creation
// is idempotent, so repeating a partially failed call converges on the same
// key set.
type Initializer struct {
	dialer   provisioning.SecretStoreDialer
	settings config.Settings
}

// NewInitializer creates an Initializer that reaches stores through dialer.
func NewInitializer(dialer provisioning.SecretStoreDialer, settings config.Settings) *Initializer {
	return &Initializer{dialer: dialer, settings: settings}
}

// RootKeyName is the shared root key created on the index 0 store.
func RootKeyName(rootIdentity string) string {
	return naming.Key(rootIdentity, RootKey)
}

// KeySlots returns the key names InitializeNode creates for index.
func KeySlots(index int, rootIdentity string) []string {
	slots := make([]string, 0, len(NodeKeys)+1)
	if index == 0 {
		slots = append(slots, RootKeyName(rootIdentity))
	}
	identity := naming.Validator(index)
	for _, key := range NodeKeys {
		slots = append(slots, naming.Key(identity, key))
	}
	return slots
}

// InitializeNode creates the key slots for validator index on the secret store
// running on node. The index 0 store additionally receives the root key.
// Store errors that already carry a kind keep it; untyped ones are transient.
func (i *Initializer) InitializeNode(ctx context.Context, index int, node provisioning.NodeHandle) error {
	if node.InternalAddress == "" {
		return provisioning.ConfigurationError(phase, node.Name, fmt.Errorf("node has no internal address"))
	}

	url := i.settings.SecretStoreURL(node.InternalAddress)
	store, err := i.dialer.Dial(url, i.settings.SecretStoreToken, i.settings.SecretStoreNamespace)
	if err != nil {
		return provisioning.ConfigurationError(phase, node.Name, fmt.Errorf("failed to create client for %s: %w", url, err))
	}

	for _, name := range KeySlots(index, i.settings.RootIdentity) {
		if err := store.CreateKey(ctx, name); err != nil {
			err = fmt.Errorf("failed to create %s: %w", name, err)
			if kind, ok := provisioning.KindOf(err); ok {
				return &provisioning.ProvisionError{Kind: kind, Phase: phase, Resource: node.Name, Err: err}
			}
			return provisioning.TransientError(phase, node.Name, err)
		}
	}
	return nil
}
