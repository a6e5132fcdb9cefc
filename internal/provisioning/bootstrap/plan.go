package bootstrap

import (
	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/util/naming"
)

// RequiredInstances returns the number of nodes topology needs:
// validators, their fullnodes, and one signing proxy per validator when the
// secret tier is on, plus one secret store per validator with the vault backend.
func RequiredInstances(t config.Topology) int {
	count := t.NumValidators + t.NumValidators*t.FullnodesPerValidator
	if t.SecretTierEnabled() {
		if t.SecretBackend == config.BackendVault {
			count += 2 * t.NumValidators
		} else {
			count += t.NumValidators
		}
	}
	return count
}

// Plan lists the slot names a topology allocates, per role.
type Plan struct {
	Required       int      `json:"required"`
	SecretStores   []string `json:"secretStores,omitempty"`
	SigningProxies []string `json:"signingProxies,omitempty"`
	Validators     []string `json:"validators"`
	Fullnodes      []string `json:"fullnodes,omitempty"`
}

// NewPlan computes the slot plan for t without touching any remote system.
func NewPlan(t config.Topology) Plan {
	p := Plan{Required: RequiredInstances(t)}
	for i := range t.NumValidators {
		if t.RemoteSecretStores() {
			p.SecretStores = append(p.SecretStores, naming.SecretStore(i))
		}
		if t.SigningProxiesEnabled() {
			p.SigningProxies = append(p.SigningProxies, naming.SigningProxy(i))
		}
		p.Validators = append(p.Validators, naming.Validator(i))
		for f := range t.FullnodesPerValidator {
			p.Fullnodes = append(p.Fullnodes, naming.Fullnode(i, f))
		}
	}
	return p
}

// Slots returns every slot name in the plan.
func (p Plan) Slots() []string {
	out := make([]string, 0, p.Required)
	out = append(out, p.SecretStores...)
	out = append(out, p.SigningProxies...)
	out = append(out, p.Validators...)
	return append(out, p.Fullnodes...)
}
