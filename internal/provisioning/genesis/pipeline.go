package genesis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/provisioning/secrets"
	"github.com/imamik/ledgerlab/internal/util/async"
	"github.com/imamik/ledgerlab/internal/util/naming"
	"github.com/imamik/ledgerlab/internal/util/netaddr"
)

const phase = "genesis"

// Input is the allocation state the ceremony runs against. SecretStoreNodes[i]
// holds the keys of validator i, whose workload runs on ValidatorNodes[i].
type Input struct {
	SecretStoreNodes []provisioning.NodeHandle
	ValidatorNodes   []provisioning.NodeHandle
}

// Pipeline drives the genesis tool and distributes the finalized artifact.
type Pipeline struct {
	tool     provisioning.GenesisTool
	nodes    provisioning.NodeProvisioner
	settings config.Settings
	observer provisioning.Observer
	metrics  *provisioning.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver sets the observer events are reported to.
func WithObserver(o provisioning.Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithMetrics sets the metrics remote calls are recorded on.
func WithMetrics(m *provisioning.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a genesis pipeline.
func NewPipeline(tool provisioning.GenesisTool, nodes provisioning.NodeProvisioner, settings config.Settings, opts ...Option) *Pipeline {
	p := &Pipeline{
		tool:     tool,
		nodes:    nodes,
		settings: settings,
		observer: provisioning.NewNopObserver(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the ceremony and returns the artifact once every validator
// node holds a copy of the genesis blob. Any failure aborts the run; nothing
// is retried.
func (p *Pipeline) Run(ctx context.Context, in Input) (*provisioning.GenesisArtifact, error) {
	n := len(in.ValidatorNodes)
	if n == 0 || len(in.SecretStoreNodes) != n {
		return nil, provisioning.ConfigurationError(phase, "", fmt.Errorf(
			"need one secret store per validator, got %d stores for %d validators", len(in.SecretStoreNodes), n))
	}

	s := p.settings
	layout := provisioning.NewLayout(n, s.RootIdentity)
	if err := p.writeInputs(layout); err != nil {
		return nil, err
	}

	if err := p.call("set_layout", "layout", func() error {
		return p.tool.SetLayout(ctx, s.LayoutPath(), s.SharedNamespace)
	}); err != nil {
		return nil, err
	}

	rootRef := p.backend(in.SecretStoreNodes[0], s.RootIdentity)
	if err := p.call("root_key", s.RootIdentity, func() error {
		return p.tool.RegisterRootKey(ctx, rootRef, s.RootIdentity)
	}); err != nil {
		return nil, err
	}

	for i := range n {
		if err := p.registerValidator(ctx, i, in.SecretStoreNodes[i], in.ValidatorNodes[i]); err != nil {
			return nil, err
		}
		p.observer.Progress(phase, i+1, n)
	}

	if err := p.call("finalize", s.GenesisPath(), func() error {
		return p.tool.Finalize(ctx, s.ChainID, s.GenesisPath())
	}); err != nil {
		return nil, err
	}

	waypoints, err := async.Collect(ctx, n, func(ctx context.Context, i int) (string, error) {
		identity := naming.Validator(i)
		var wp string
		err := p.call("waypoint", identity, func() error {
			var err error
			wp, err = p.tool.CreateWaypoint(ctx, s.ChainID, p.backend(in.SecretStoreNodes[i], identity), identity)
			return err
		})
		return wp, err
	})
	if err != nil {
		return nil, err
	}

	rootKey := secrets.RootKeyName(s.RootIdentity)
	if err := p.call("extract_private_key", rootKey, func() error {
		return p.tool.ExtractPrivateKey(ctx, rootKey, s.RootKeyPath(), p.backend(in.SecretStoreNodes[0], ""))
	}); err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(s.GenesisPath())
	if err != nil {
		return nil, provisioning.NotFoundError(phase, s.GenesisPath(), err)
	}

	if err := p.distribute(ctx, in.ValidatorNodes, blob); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(blob)
	artifact := &provisioning.GenesisArtifact{
		Blob:        blob,
		Digest:      hex.EncodeToString(sum[:]),
		Layout:      layout,
		Waypoints:   make(map[string]string, n),
		GenesisPath: s.GenesisPath(),
		LayoutPath:  s.LayoutPath(),
		TokenPath:   s.TokenPath(),
		RootKeyPath: s.RootKeyPath(),
	}
	for i, wp := range waypoints {
		artifact.Waypoints[naming.Validator(i)] = wp
	}
	return artifact, nil
}

// writeInputs writes the layout document and the token file the genesis tool reads.
func (p *Pipeline) writeInputs(layout provisioning.Layout) error {
	s := p.settings
	if err := os.MkdirAll(s.WorkDir, 0o700); err != nil {
		return provisioning.ConfigurationError(phase, s.WorkDir, fmt.Errorf("failed to create work dir: %w", err))
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(layout); err != nil {
		return fmt.Errorf("failed to encode layout: %w", err)
	}
	if err := os.WriteFile(s.LayoutPath(), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.LayoutPath(), err)
	}
	if err := os.WriteFile(s.TokenPath(), []byte(s.SecretStoreToken), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.TokenPath(), err)
	}
	return nil
}

// registerValidator registers the owner, operator and network config of
// validator i, then binds operator authority to the owner.
func (p *Pipeline) registerValidator(ctx context.Context, i int, store, node provisioning.NodeHandle) error {
	s := p.settings
	identity := naming.Validator(i)
	ref := p.backend(store, identity)

	validatorAddr, err := netaddr.TCP(node.InternalAddress, s.ValidatorPort)
	if err != nil {
		return provisioning.ConfigurationError(phase, identity, fmt.Errorf("validator address: %w", err))
	}
	fullnodeAddr, err := netaddr.TCP(node.InternalAddress, s.FullnodePort)
	if err != nil {
		return provisioning.ConfigurationError(phase, identity, fmt.Errorf("fullnode address: %w", err))
	}

	steps := []struct {
		op string
		fn func() error
	}{
		{"owner_key", func() error { return p.tool.RegisterOwnerKey(ctx, ref, identity) }},
		{"operator_key", func() error { return p.tool.RegisterOperatorKey(ctx, ref, identity) }},
		{"validator_config", func() error {
			return p.tool.RegisterValidatorConfig(ctx, provisioning.ValidatorConfigRequest{
				Identity:         identity,
				ValidatorAddress: validatorAddr,
				FullnodeAddress:  fullnodeAddr,
				ChainID:          s.ChainID,
				Backend:          ref,
			})
		}},
		{"set_operator", func() error { return p.tool.SetOperator(ctx, identity, identity) }},
	}
	for _, step := range steps {
		if err := p.call(step.op, identity, step.fn); err != nil {
			return err
		}
	}

	provisioning.LogResourceCreated(p.observer, phase, "validator registration", identity, map[string]string{
		"validator_address": validatorAddr.String(),
	})
	return nil
}

// distribute copies blob to every validator node concurrently. All copies
// share the same byte slice.
func (p *Pipeline) distribute(ctx context.Context, nodes []provisioning.NodeHandle, blob []byte) error {
	tasks := make([]async.Task, len(nodes))
	for i, node := range nodes {
		container := naming.Validator(i)
		tasks[i] = async.Task{
			Name: node.Name,
			Func: func(ctx context.Context) error {
				return p.call("copy_genesis", node.Name, func() error {
					return p.nodes.CopyFile(ctx, node.Name, container, p.settings.GenesisDestPath, blob)
				})
			},
		}
	}

	start := time.Now()
	if err := async.RunParallel(ctx, tasks); err != nil {
		return fmt.Errorf("failed to copy genesis to validator nodes: %w", err)
	}
	p.observer.Printf("Distributed genesis (%d bytes) to %d validators in %v",
		len(blob), len(nodes), time.Since(start).Round(time.Millisecond))
	return nil
}

// backend returns the tool's view of the secret store on node.
func (p *Pipeline) backend(node provisioning.NodeHandle, namespace string) provisioning.BackendRef {
	return provisioning.BackendRef{
		Backend:   p.settings.GenesisBackend,
		ServerURL: p.settings.SecretStoreURL(node.InternalAddress),
		TokenPath: p.settings.TokenPath(),
		Namespace: namespace,
	}
}

// call runs one remote operation, recording it and wrapping its error with
// the resource it concerns.
func (p *Pipeline) call(op, resource string, fn func() error) error {
	err := fn()
	p.metrics.RemoteCall("genesis_"+op, err)
	if err == nil {
		return nil
	}
	if _, ok := provisioning.KindOf(err); ok {
		return err
	}
	provisioning.LogResourceFailed(p.observer, phase, op, resource, err)
	return provisioning.RemoteError(phase, resource, fmt.Errorf("%s: %w", op, err))
}
