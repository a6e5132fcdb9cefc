package genesistool

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
)

var waypointPattern = regexp.MustCompile(`\b(\d+:[0-9a-fA-F]{8,})\b`)

// Tool implements provisioning.GenesisTool by shelling out to the genesis
// tool binary.
type Tool struct {
	binary  string
	shared  string
	runner  Runner
	timeout time.Duration
	log     logr.Logger
}

// Option configures a Tool.
type Option func(*Tool)

// WithRunner replaces the process runner (useful for testing).
func WithRunner(r Runner) Option {
	return func(t *Tool) { t.runner = r }
}

// WithTimeout bounds every invocation.
func WithTimeout(d time.Duration) Option {
	return func(t *Tool) { t.timeout = d }
}

// WithLogger sets the logger invocations are reported to.
func WithLogger(l logr.Logger) Option {
	return func(t *Tool) { t.log = l }
}

// New creates a Tool running settings.GenesisTool against the shared store at
// settings.SharedStoragePath().
func New(settings config.Settings, opts ...Option) *Tool {
	t := &Tool{
		binary:  settings.GenesisTool,
		shared:  settings.SharedStoragePath(),
		runner:  ExecRunner{},
		timeout: 2 * time.Minute,
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Backend formats ref as the tool's backend argument.
func Backend(ref provisioning.BackendRef) string {
	parts := []string{"backend=" + ref.Backend}
	if ref.ServerURL != "" {
		parts = append(parts, "server="+ref.ServerURL)
	}
	if ref.TokenPath != "" {
		parts = append(parts, "token="+ref.TokenPath)
	}
	if ref.Namespace != "" {
		parts = append(parts, "namespace="+ref.Namespace)
	}
	return strings.Join(parts, ";")
}

// sharedBackend is the on-disk store holding namespace.
func (t *Tool) sharedBackend(namespace string) string {
	backend := "backend=disk;path=" + t.shared
	if namespace != "" {
		backend += ";namespace=" + namespace
	}
	return backend
}

func (t *Tool) run(ctx context.Context, subcommand string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	argv := append([]string{subcommand}, args...)
	t.log.V(1).Info("Running genesis tool", "subcommand", subcommand)

	out, err := t.runner.Run(ctx, t.binary, argv...)
	output := strings.TrimSpace(string(out))
	if err != nil {
		if output != "" {
			return "", fmt.Errorf("%s failed: %w: %s", subcommand, err, output)
		}
		return "", fmt.Errorf("%s failed: %w", subcommand, err)
	}
	return output, nil
}

func (t *Tool) SetLayout(ctx context.Context, path, namespace string) error {
	_, err := t.run(ctx, "set-layout",
		"--path", path,
		"--shared-backend", t.sharedBackend(namespace))
	return err
}

func (t *Tool) RegisterRootKey(ctx context.Context, ref provisioning.BackendRef, identity string) error {
	return t.registerKey(ctx, "ledger-root-key", ref, identity)
}

func (t *Tool) RegisterOwnerKey(ctx context.Context, ref provisioning.BackendRef, identity string) error {
	return t.registerKey(ctx, "owner-key", ref, identity)
}

func (t *Tool) RegisterOperatorKey(ctx context.Context, ref provisioning.BackendRef, identity string) error {
	return t.registerKey(ctx, "operator-key", ref, identity)
}

func (t *Tool) registerKey(ctx context.Context, subcommand string, ref provisioning.BackendRef, identity string) error {
	_, err := t.run(ctx, subcommand,
		"--validator-backend", Backend(ref),
		"--shared-backend", t.sharedBackend(identity))
	return err
}

func (t *Tool) RegisterValidatorConfig(ctx context.Context, req provisioning.ValidatorConfigRequest) error {
	if req.ValidatorAddress == nil || req.FullnodeAddress == nil {
		return fmt.Errorf("validator-config for %s: missing network address", req.Identity)
	}
	_, err := t.run(ctx, "validator-config",
		"--owner-name", req.Identity,
		"--validator-address", req.ValidatorAddress.String(),
		"--fullnode-address", req.FullnodeAddress.String(),
		"--chain-id", strconv.Itoa(req.ChainID),
		"--validator-backend", Backend(req.Backend),
		"--shared-backend", t.sharedBackend(req.Identity))
	return err
}

func (t *Tool) SetOperator(ctx context.Context, owner, operator string) error {
	_, err := t.run(ctx, "set-operator",
		"--operator-name", operator,
		"--shared-backend", t.sharedBackend(owner))
	return err
}

func (t *Tool) Finalize(ctx context.Context, chainID int, outputPath string) error {
	_, err := t.run(ctx, "genesis",
		"--chain-id", strconv.Itoa(chainID),
		"--shared-backend", t.sharedBackend(""),
		"--path", outputPath)
	return err
}

func (t *Tool) CreateWaypoint(ctx context.Context, chainID int, ref provisioning.BackendRef, identity string) (string, error) {
	out, err := t.run(ctx, "create-and-insert-waypoint",
		"--chain-id", strconv.Itoa(chainID),
		"--validator-backend", Backend(ref),
		"--shared-backend", t.sharedBackend(identity))
	if err != nil {
		return "", err
	}
	return ParseWaypoint(out)
}

func (t *Tool) ExtractPrivateKey(ctx context.Context, keyName, outputPath string, ref provisioning.BackendRef) error {
	_, err := t.run(ctx, "extract-private-key",
		"--key-name", keyName,
		"--output-file", outputPath,
		"--validator-backend", Backend(ref))
	return err
}

// ParseWaypoint returns the last "<version>:<hash>" token in the tool's output.
func ParseWaypoint(output string) (string, error) {
	matches := waypointPattern.FindAllString(output, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("no waypoint in genesis tool output %q", output)
	}
	return matches[len(matches)-1], nil
}
