package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// SecretBackend selects where signing proxies keep consensus keys.
type SecretBackend string

const (
	// BackendInMemory keeps keys in the signing proxy's memory.
	BackendInMemory SecretBackend = "in-memory"
	// BackendOnDisk keeps keys on the signing proxy's local disk.
	BackendOnDisk SecretBackend = "on-disk"
	// BackendVault keeps keys in a dedicated secret-store node per validator.
	BackendVault SecretBackend = "vault"
)

// Config holds the full run configuration.
type Config struct {
	Topology   Topology         `yaml:"topology" json:"topology"`
	Settings   Settings         `yaml:"settings" json:"settings"`
	Kubernetes KubernetesConfig `yaml:"kubernetes" json:"kubernetes"`
	Pool       PoolConfig       `yaml:"pool" json:"pool"`
	Archive    ArchiveConfig    `yaml:"archive" json:"archive"`
}

// Topology describes the shape of the cluster to bootstrap.
type Topology struct {
	NumValidators         int `yaml:"num_validators" json:"numValidators" validate:"min=1"`
	FullnodesPerValidator int `yaml:"fullnodes_per_validator" json:"fullnodesPerValidator" validate:"min=0"`

	// EnableSecretTier turns on signing proxies and, with the vault backend,
	// one secret-store node per validator.
	// Default: true
	EnableSecretTier *bool `yaml:"enable_secret_tier" json:"enableSecretTier"`

	// Default: vault
	SecretBackend SecretBackend `yaml:"secret_backend" json:"secretBackend" validate:"oneof=in-memory on-disk vault"`

	ImageTag string `yaml:"image_tag" json:"imageTag" validate:"required"`

	// ConfigOverrides are key=value node config overrides, passed through in order.
	ConfigOverrides []string `yaml:"config_overrides" json:"configOverrides" validate:"dive,keyvalue"`
}

// SecretTierEnabled reports whether the secret tier is on. Unset means on.
func (t Topology) SecretTierEnabled() bool {
	return t.EnableSecretTier == nil || *t.EnableSecretTier
}

// SigningProxiesEnabled reports whether validators delegate signing to a proxy.
func (t Topology) SigningProxiesEnabled() bool {
	return t.SecretTierEnabled()
}

// RemoteSecretStores reports whether dedicated secret-store nodes are needed.
func (t Topology) RemoteSecretStores() bool {
	return t.SecretTierEnabled() && t.SecretBackend == BackendVault
}

// Overrides returns defaults followed by the topology's own overrides.
// Duplicate keys are kept; the node resolves them in order.
func (t Topology) Overrides(defaults []string) []string {
	out := make([]string, 0, len(defaults)+len(t.ConfigOverrides))
	out = append(out, defaults...)
	return append(out, t.ConfigOverrides...)
}

// Settings replaces the fixed ports, credentials and paths the bootstrap
// sequence depends on.
type Settings struct {
	// Secret store (one per validator when the vault backend is selected)
	SecretStorePort      int    `yaml:"secret_store_port" json:"secretStorePort" validate:"min=1,max=65535"`
	SecretStoreScheme    string `yaml:"secret_store_scheme" json:"secretStoreScheme" validate:"oneof=http https"`
	SecretStoreToken     string `yaml:"secret_store_token" json:"-" validate:"required"`
	SecretStoreNamespace string `yaml:"secret_store_namespace" json:"secretStoreNamespace"`

	// Genesis ceremony
	RootIdentity    string `yaml:"root_identity" json:"rootIdentity" validate:"required,slug"`
	GenesisBackend  string `yaml:"genesis_backend" json:"genesisBackend" validate:"required"`
	SharedNamespace string `yaml:"shared_namespace" json:"sharedNamespace" validate:"required"`
	ChainID         int    `yaml:"chain_id" json:"chainId" validate:"min=1,max=255"`
	GenesisTool     string `yaml:"genesis_tool" json:"genesisTool" validate:"required"`

	// Node networking
	ValidatorPort int `yaml:"validator_port" json:"validatorPort" validate:"min=1,max=65535"`
	FullnodePort  int `yaml:"fullnode_port" json:"fullnodePort" validate:"min=1,max=65535,nefield=ValidatorPort"`

	// WorkDir holds the transient layout, token, genesis and key files.
	// Every run overwrites them.
	WorkDir string `yaml:"work_dir" json:"workDir" validate:"required"`

	// GenesisDestPath is where each validator node receives the genesis blob.
	GenesisDestPath string `yaml:"genesis_dest_path" json:"genesisDestPath" validate:"required,startswith=/"`

	// DefaultOverrides are prepended to the topology's config overrides.
	DefaultOverrides []string `yaml:"default_overrides" json:"defaultOverrides" validate:"dive,keyvalue"`

	// SecretInit bounds the retries around secret-store key creation.
	SecretInit RetrySettings `yaml:"secret_init" json:"secretInit"`
}

// RetrySettings is a fixed-delay retry budget.
type RetrySettings struct {
	Attempts int           `yaml:"attempts" json:"attempts" validate:"min=1"`
	Delay    time.Duration `yaml:"delay" json:"delay"`
}

// SecretStoreURL returns the secret-store endpoint on host.
func (s Settings) SecretStoreURL(host string) string {
	return fmt.Sprintf("%s://%s:%d", s.SecretStoreScheme, host, s.SecretStorePort)
}

// LayoutPath is the genesis layout document.
func (s Settings) LayoutPath() string { return filepath.Join(s.WorkDir, "layout.toml") }

// TokenPath is the secret-store bearer token file read by the genesis tool.
func (s Settings) TokenPath() string { return filepath.Join(s.WorkDir, "token") }

// GenesisPath is the finalized genesis blob.
func (s Settings) GenesisPath() string { return filepath.Join(s.WorkDir, "genesis.blob") }

// RootKeyPath is the extracted root private key.
func (s Settings) RootKeyPath() string { return filepath.Join(s.WorkDir, "mint.key") }

// SharedStoragePath is the genesis tool's local storage for the shared namespace.
func (s Settings) SharedStoragePath() string { return filepath.Join(s.WorkDir, "genesis.json") }

// KubernetesConfig configures access to the scheduler.
type KubernetesConfig struct {
	// Kubeconfig path. Empty uses KUBECONFIG or in-cluster config.
	Kubeconfig string `yaml:"kubeconfig" json:"kubeconfig"`
	Namespace  string `yaml:"namespace" json:"namespace" validate:"required"`

	// NodeSelector restricts which cluster nodes may be allocated.
	NodeSelector map[string]string `yaml:"node_selector" json:"nodeSelector"`

	// DataDir is the host directory holding per-node persistent state.
	DataDir string `yaml:"data_dir" json:"dataDir" validate:"required,startswith=/"`

	Images Images `yaml:"images" json:"images"`
}

// Images are the container images per workload. Ledger images get the
// topology's image tag appended.
type Images struct {
	Validator    string `yaml:"validator" json:"validator" validate:"required"`
	Fullnode     string `yaml:"fullnode" json:"fullnode" validate:"required"`
	SigningProxy string `yaml:"signing_proxy" json:"signingProxy" validate:"required"`
	SecretStore  string `yaml:"secret_store" json:"secretStore" validate:"required"`
	Tools        string `yaml:"tools" json:"tools" validate:"required"`
}

// PoolConfig configures the Hetzner Cloud server pool that backs the cluster.
type PoolConfig struct {
	Enabled    bool     `yaml:"enabled" json:"enabled"`
	Name       string   `yaml:"name" json:"name" validate:"required_if=Enabled true"`
	Token      string   `yaml:"token" json:"-" validate:"required_if=Enabled true"`
	ServerType string   `yaml:"server_type" json:"serverType" validate:"required_if=Enabled true"`
	Image      string   `yaml:"image" json:"image" validate:"required_if=Enabled true"`
	Location   string   `yaml:"location" json:"location" validate:"required_if=Enabled true"`
	SSHKeys    []string `yaml:"ssh_keys" json:"sshKeys"`
	UserData   string   `yaml:"user_data" json:"-"`

	// HeadroomPercent is added on top of the required instance count when scaling up.
	// Default: 5
	HeadroomPercent float64 `yaml:"headroom_percent" json:"headroomPercent" validate:"min=0,max=100"`
}

// ArchiveConfig configures the optional S3 upload of genesis artifacts.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Bucket    string `yaml:"bucket" json:"bucket" validate:"required_if=Enabled true"`
	Endpoint  string `yaml:"endpoint" json:"endpoint" validate:"required_if=Enabled true"`
	Region    string `yaml:"region" json:"region"`
	AccessKey string `yaml:"access_key" json:"-"`
	SecretKey string `yaml:"secret_key" json:"-"`
	// PathStyle addresses buckets as <endpoint>/<bucket> instead of
	// <bucket>.<endpoint>. Most self-hosted S3 servers need it.
	PathStyle bool `yaml:"path_style" json:"pathStyle"`
}
