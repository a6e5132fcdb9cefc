package bootstrap

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/provisioning/genesis"
	"github.com/imamik/ledgerlab/internal/provisioning/secrets"
)

// Options control a single bootstrap run.
type Options struct {
	// CleanData drains the pool and wipes per-node state before spawning.
	CleanData bool
	// RunID identifies the run in logs and archives. Generated when empty.
	RunID string
}

// Orchestrator provisions a ledger test cluster. It depends only on the
// provisioning boundary interfaces.
type Orchestrator struct {
	cfg      *config.Config
	nodes    provisioning.NodeProvisioner
	pool     provisioning.PoolScaler
	dialer   provisioning.SecretStoreDialer
	tool     provisioning.GenesisTool
	archiver provisioning.ArtifactArchiver
	observer provisioning.Observer
	metrics  *provisioning.Metrics
	timeouts *config.Timeouts
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPoolScaler sets the pool resized on clean runs. Without one the
// capacity phase is skipped.
func WithPoolScaler(p provisioning.PoolScaler) Option {
	return func(o *Orchestrator) { o.pool = p }
}

// WithSecretStores sets the dialer used to reach secret-store nodes.
func WithSecretStores(d provisioning.SecretStoreDialer) Option {
	return func(o *Orchestrator) { o.dialer = d }
}

// WithGenesisTool sets the genesis tool.
func WithGenesisTool(t provisioning.GenesisTool) Option {
	return func(o *Orchestrator) { o.tool = t }
}

// WithArchiver enables the archive phase.
func WithArchiver(a provisioning.ArtifactArchiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// WithObserver sets the observer events are reported to.
func WithObserver(obs provisioning.Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithMetrics sets the metrics the run records.
func WithMetrics(m *provisioning.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTimeouts overrides the environment-derived timeouts.
func WithTimeouts(t *config.Timeouts) Option {
	return func(o *Orchestrator) { o.timeouts = t }
}

// New creates an Orchestrator over the given scheduler.
func New(cfg *config.Config, nodes provisioning.NodeProvisioner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		nodes:    nodes,
		observer: provisioning.NewNopObserver(),
		timeouts: config.LoadTimeouts(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Bootstrap provisions the cluster described by topology and returns the
// descriptor of every spawned instance. On failure it returns the first
// error; instances spawned before the failure are not removed.
func (o *Orchestrator) Bootstrap(ctx context.Context, topology config.Topology, opts Options) (*provisioning.ClusterDescriptor, error) {
	if err := o.check(topology); err != nil {
		return nil, err
	}

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	cfg := *o.cfg
	cfg.Topology = topology

	pctx := provisioning.NewContext(ctx, &cfg, opts.RunID, o.observer)
	pctx.Metrics = o.metrics
	pctx.Timeouts = o.timeouts

	r := &run{
		Orchestrator: o,
		opts:         opts,
		topo:         topology,
	}
	if topology.RemoteSecretStores() {
		r.initializer = secrets.NewInitializer(o.dialer, cfg.Settings)
		r.genesis = genesis.NewPipeline(o.tool, o.nodes, cfg.Settings,
			genesis.WithObserver(pctx.Observer), genesis.WithMetrics(o.metrics))
	}

	pctx.Observer.Printf("Bootstrapping %d validators, %d fullnodes per validator (secret tier: %t, backend: %s, clean: %t)",
		topology.NumValidators, topology.FullnodesPerValidator, topology.SecretTierEnabled(), topology.SecretBackend, opts.CleanData)

	if err := r.pipeline().Run(pctx); err != nil {
		return nil, err
	}

	return pctx.State.Descriptor(), nil
}

// Cleanup resets the scheduler, removing every workload and allocation.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	err := o.nodes.Cleanup(ctx)
	o.metrics.RemoteCall("cleanup", err)
	if err != nil {
		return provisioning.RemoteError("cleanup", "scheduler", err)
	}
	return nil
}

// ScaleDown resizes the pool to zero and waits for it to drain.
func (o *Orchestrator) ScaleDown(ctx context.Context) error {
	if o.pool == nil {
		return provisioning.ConfigurationError("capacity", "pool", fmt.Errorf("no pool configured"))
	}
	err := o.pool.Resize(ctx, provisioning.ResizeRequest{Target: 0, WaitForScaleUp: true, WaitForScaleDown: true})
	o.metrics.RemoteCall("pool_resize", err)
	if err != nil {
		return provisioning.RemoteError("capacity", "pool", fmt.Errorf("scale down failed: %w", err))
	}
	return nil
}

// check rejects topologies the orchestrator cannot run.
func (o *Orchestrator) check(t config.Topology) error {
	if err := config.ValidateTopology(t); err != nil {
		return provisioning.ConfigurationError("", "topology", err)
	}
	if t.RemoteSecretStores() {
		if o.dialer == nil {
			return provisioning.ConfigurationError("", "topology", fmt.Errorf("backend %q needs a secret-store client", t.SecretBackend))
		}
		if o.tool == nil {
			return provisioning.ConfigurationError("", "topology", fmt.Errorf("backend %q needs a genesis tool", t.SecretBackend))
		}
	}
	return nil
}
