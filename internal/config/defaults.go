package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for settings that are not set in the run file.
const (
	DefaultNumValidators         = 30
	DefaultFullnodesPerValidator = 1
	DefaultImageTag              = "latest"

	DefaultSecretStorePort   = 8200
	DefaultSecretStoreScheme = "http"
	DefaultSecretStoreToken  = "root"
	DefaultRootIdentity      = "ledger"
	DefaultGenesisBackend    = "vault"
	DefaultSharedNamespace   = "common"
	DefaultChainID           = 1
	DefaultGenesisTool       = "ledger-genesis-tool"
	DefaultValidatorPort     = 6180
	DefaultFullnodePort      = 6181
	DefaultGenesisDestPath   = "/opt/ledger/etc/genesis.blob"

	DefaultSecretInitAttempts = 15
	DefaultSecretInitDelay    = 5 * time.Second

	DefaultNamespace = "ledgerlab"
	DefaultDataDir   = "/opt/ledger/data"

	DefaultHeadroomPercent = 5.0
)

// DefaultOverrides are prepended to every node's config overrides.
var DefaultOverrides = []string{"prune_window=50000"}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := newConfig()
	cfg.ApplyDefaults()
	return cfg
}

// newConfig seeds the fields whose zero value is meaningful, so an explicit
// zero in a run file survives decoding.
func newConfig() *Config {
	return &Config{
		Topology: Topology{FullnodesPerValidator: DefaultFullnodesPerValidator},
	}
}

// ApplyDefaults fills unset fields. Values already present are left alone.
func (c *Config) ApplyDefaults() {
	t := &c.Topology
	if t.NumValidators == 0 {
		t.NumValidators = DefaultNumValidators
	}
	if t.EnableSecretTier == nil {
		enabled := true
		t.EnableSecretTier = &enabled
	}
	if t.SecretBackend == "" {
		t.SecretBackend = BackendVault
	}
	if t.ImageTag == "" {
		t.ImageTag = DefaultImageTag
	}

	s := &c.Settings
	setDefault(&s.SecretStorePort, DefaultSecretStorePort)
	setDefault(&s.SecretStoreScheme, DefaultSecretStoreScheme)
	setDefault(&s.SecretStoreToken, firstNonEmpty(os.Getenv("LEDGERLAB_SECRET_STORE_TOKEN"), DefaultSecretStoreToken))
	setDefault(&s.RootIdentity, DefaultRootIdentity)
	setDefault(&s.GenesisBackend, DefaultGenesisBackend)
	setDefault(&s.SharedNamespace, DefaultSharedNamespace)
	setDefault(&s.ChainID, DefaultChainID)
	setDefault(&s.GenesisTool, DefaultGenesisTool)
	setDefault(&s.ValidatorPort, DefaultValidatorPort)
	setDefault(&s.FullnodePort, DefaultFullnodePort)
	setDefault(&s.WorkDir, filepath.Join(os.TempDir(), "ledgerlab"))
	setDefault(&s.GenesisDestPath, DefaultGenesisDestPath)
	if s.DefaultOverrides == nil {
		s.DefaultOverrides = append([]string(nil), DefaultOverrides...)
	}
	setDefault(&s.SecretInit.Attempts, DefaultSecretInitAttempts)
	setDefault(&s.SecretInit.Delay, DefaultSecretInitDelay)

	k := &c.Kubernetes
	setDefault(&k.Namespace, DefaultNamespace)
	setDefault(&k.DataDir, DefaultDataDir)
	setDefault(&k.Images.Validator, "ledger/validator")
	setDefault(&k.Images.Fullnode, "ledger/validator")
	setDefault(&k.Images.SigningProxy, "ledger/safety-rules")
	setDefault(&k.Images.SecretStore, "hashicorp/vault:1.18")
	setDefault(&k.Images.Tools, "busybox:1.37")

	p := &c.Pool
	setDefault(&p.Token, os.Getenv("HCLOUD_TOKEN"))
	setDefault(&p.HeadroomPercent, DefaultHeadroomPercent)

	a := &c.Archive
	setDefault(&a.AccessKey, os.Getenv("LEDGERLAB_S3_ACCESS_KEY"))
	setDefault(&a.SecretKey, os.Getenv("LEDGERLAB_S3_SECRET_KEY"))
	setDefault(&a.Region, "us-east-1")
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
