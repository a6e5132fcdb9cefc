// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic. Every external client is built through a
// package-level factory variable so tests can substitute fakes.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/platform/genesistool"
	"github.com/imamik/ledgerlab/internal/platform/hcloud"
	"github.com/imamik/ledgerlab/internal/platform/kube"
	"github.com/imamik/ledgerlab/internal/platform/s3"
	"github.com/imamik/ledgerlab/internal/platform/vault"
	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/util/prerequisites"
)

// Output formats.
const (
	OutputText = "text"
	OutputYAML = "yaml"
	OutputJSON = "json"
)

// RunArchive stores and reads back the genesis artifacts of bootstrap runs.
type RunArchive interface {
	provisioning.ArtifactArchiver
	Runs(ctx context.Context) ([]string, error)
	Manifest(ctx context.Context, runID string) (*s3.Manifest, error)
	Fetch(ctx context.Context, runID, name string) ([]byte, error)
}

var errAborted = errors.New("aborted by user")

// Factory function variables - can be replaced in tests for dependency injection.
var (
	logger = logr.Discard()

	// stdout receives command output.
	stdout io.Writer = os.Stdout

	loadConfigFile = config.LoadFile

	newNodeProvisioner = func(cfg *config.Config, runID string, log logr.Logger) (provisioning.NodeProvisioner, error) {
		return kube.NewFromKubeconfig(cfg, kube.WithRunID(runID), kube.WithLogger(log.WithName("kube")))
	}

	newPoolScaler = func(cfg config.PoolConfig, log logr.Logger) provisioning.PoolScaler {
		return hcloud.NewPoolScaler(cfg, hcloud.WithLogger(log.WithName("pool")))
	}

	newSecretStoreDialer = func() provisioning.SecretStoreDialer {
		return vault.NewDialer()
	}

	newGenesisTool = func(settings config.Settings, timeouts *config.Timeouts, log logr.Logger) provisioning.GenesisTool {
		return genesistool.New(settings,
			genesistool.WithTimeout(timeouts.GenesisTool),
			genesistool.WithLogger(log.WithName("genesis-tool")))
	}

	newRunArchive = func(ctx context.Context, cfg config.ArchiveConfig) (RunArchive, error) {
		return s3.NewArchiver(ctx, cfg)
	}

	loadTimeouts = config.LoadTimeouts

	// checkPrerequisites looks up the local binaries a run needs.
	checkPrerequisites = prerequisites.Check

	isInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	// confirm asks a yes/no question on the terminal.
	confirm = func(title, description string) (bool, error) {
		var ok bool
		err := huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&ok).
			Run()
		return ok, err
	}
)

// SetLogger sets the logger handlers and the clients they build log to.
func SetLogger(l logr.Logger) {
	logger = l
}

// TopologyOverrides holds the topology fields set on the command line. Nil
// fields keep the run file's value.
type TopologyOverrides struct {
	NumValidators         *int
	FullnodesPerValidator *int
	EnableSecretTier      *bool
	SecretBackend         *string
	ImageTag              *string
	// ConfigOverrides are appended to the run file's overrides.
	ConfigOverrides []string
}

// Apply writes the overrides into t.
func (o TopologyOverrides) Apply(t *config.Topology) {
	if o.NumValidators != nil {
		t.NumValidators = *o.NumValidators
	}
	if o.FullnodesPerValidator != nil {
		t.FullnodesPerValidator = *o.FullnodesPerValidator
	}
	if o.EnableSecretTier != nil {
		enabled := *o.EnableSecretTier
		t.EnableSecretTier = &enabled
	}
	if o.SecretBackend != nil {
		t.SecretBackend = config.SecretBackend(*o.SecretBackend)
	}
	if o.ImageTag != nil {
		t.ImageTag = *o.ImageTag
	}
	t.ConfigOverrides = append(t.ConfigOverrides, o.ConfigOverrides...)
}

// loadConfig loads the run file, or the defaults when no path is given, and
// applies the command-line topology overrides.
func loadConfig(configPath string, overrides TopologyOverrides) (*config.Config, error) {
	var cfg *config.Config
	if configPath == "" {
		cfg = config.Default()
	} else {
		loaded, err := loadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrides.Apply(&cfg.Topology)
	if err := config.ValidateTopology(cfg.Topology); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	return cfg, nil
}

// confirmDestructive asks before a destructive action unless yes is set.
// Without a terminal the action is refused.
func confirmDestructive(yes bool, title, description string) error {
	if yes {
		return nil
	}
	if !isInteractive() {
		return fmt.Errorf("%s: refusing without --yes in a non-interactive session", title)
	}
	ok, err := confirm(title, description)
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return errAborted
	}
	return nil
}
