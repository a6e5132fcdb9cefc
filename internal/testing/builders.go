package testing

import (
	"time"

	"github.com/imamik/ledgerlab/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a builder seeded with defaults, a single validator
// without fullnodes, and a fast secret-init retry policy.
func NewConfigBuilder() *ConfigBuilder {
	cfg := config.Default()
	cfg.Topology.NumValidators = 1
	cfg.Topology.FullnodesPerValidator = 0
	cfg.Settings.SecretInit = config.RetrySettings{Attempts: 3, Delay: time.Millisecond}
	return &ConfigBuilder{cfg: *cfg}
}

// WithValidators sets the validator count.
func (b *ConfigBuilder) WithValidators(n int) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Topology.NumValidators = n
	return nb
}

// WithFullnodesPerValidator sets the fullnode count per validator.
func (b *ConfigBuilder) WithFullnodesPerValidator(n int) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Topology.FullnodesPerValidator = n
	return nb
}

// WithSecretTier enables or disables the secret tier with the given backend.
func (b *ConfigBuilder) WithSecretTier(enabled bool, backend config.SecretBackend) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Topology.EnableSecretTier = &enabled
	nb.cfg.Topology.SecretBackend = backend
	return nb
}

// WithOverrides sets the topology's config overrides.
func (b *ConfigBuilder) WithOverrides(overrides ...string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Topology.ConfigOverrides = overrides
	return nb
}

// WithWorkDir sets the transient file directory.
func (b *ConfigBuilder) WithWorkDir(dir string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Settings.WorkDir = dir
	return nb
}

// WithSecretInitRetry sets the secret-init retry budget.
func (b *ConfigBuilder) WithSecretInitRetry(attempts int, delay time.Duration) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Settings.SecretInit = config.RetrySettings{Attempts: attempts, Delay: delay}
	return nb
}

// Build returns the built configuration.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.clone().cfg
	return &cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	cfg := b.cfg
	if b.cfg.Topology.EnableSecretTier != nil {
		enabled := *b.cfg.Topology.EnableSecretTier
		cfg.Topology.EnableSecretTier = &enabled
	}
	cfg.Topology.ConfigOverrides = append([]string(nil), b.cfg.Topology.ConfigOverrides...)
	cfg.Settings.DefaultOverrides = append([]string(nil), b.cfg.Settings.DefaultOverrides...)
	return &ConfigBuilder{cfg: cfg}
}
