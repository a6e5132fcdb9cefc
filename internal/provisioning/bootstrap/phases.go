package bootstrap

import (
	"context"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/provisioning/genesis"
	"github.com/imamik/ledgerlab/internal/provisioning/secrets"
	"github.com/imamik/ledgerlab/internal/util/async"
	"github.com/imamik/ledgerlab/internal/util/naming"
	"github.com/imamik/ledgerlab/internal/util/retry"
)

// run holds the per-invocation inputs shared by the phases.
type run struct {
	*Orchestrator
	opts        Options
	topo        config.Topology
	initializer *secrets.Initializer
	genesis     *genesis.Pipeline
}

// phase adapts a run method to provisioning.Phase.
type phase struct {
	name string
	fn   func(*provisioning.Context) error
}

func (p phase) Name() string                              { return p.name }
func (p phase) Provision(ctx *provisioning.Context) error { return p.fn(ctx) }

func (r *run) pipeline() *provisioning.Pipeline {
	return provisioning.NewPipeline(
		phase{"cleanup", r.cleanup},
		phase{"capacity", r.capacity},
		phase{"allocation", r.allocate},
		phase{"support", r.spawnSupport},
		phase{"secret-init", r.initSecrets},
		phase{"genesis", r.runGenesis},
		phase{"spawn", r.spawnNodes},
		phase{"archive", r.archive},
	)
}

// wrap attaches phase and slot to err, keeping an existing error kind.
func wrap(phase, resource string, err error) error {
	kind, ok := provisioning.KindOf(err)
	if !ok {
		kind = provisioning.KindRemoteOperation
	}
	return &provisioning.ProvisionError{Kind: kind, Phase: phase, Resource: resource, Err: err}
}

func (r *run) cleanup(ctx *provisioning.Context) error {
	err := r.nodes.Cleanup(ctx)
	r.metrics.RemoteCall("cleanup", err)
	if err != nil {
		return wrap("cleanup", "scheduler", fmt.Errorf("cleanup on startup failed: %w", err))
	}
	return nil
}

func (r *run) capacity(ctx *provisioning.Context) error {
	required := RequiredInstances(r.topo)
	r.metrics.SetRequiredNodes(required)

	if !r.opts.CleanData {
		provisioning.LogPhaseSkipped(ctx.Observer, "capacity", "not a clean run")
		return nil
	}
	if r.pool == nil {
		provisioning.LogPhaseSkipped(ctx.Observer, "capacity", "no pool configured")
		return nil
	}

	// Drain first so nothing is scheduled onto servers that are shutting down.
	err := r.pool.Resize(ctx, provisioning.ResizeRequest{Target: 0, WaitForScaleUp: true, WaitForScaleDown: true})
	r.metrics.RemoteCall("pool_resize", err)
	if err != nil {
		return wrap("capacity", "pool", fmt.Errorf("scale down failed: %w", err))
	}

	err = r.pool.Resize(ctx, provisioning.ResizeRequest{
		Target:          required,
		HeadroomPercent: ctx.Config.Pool.HeadroomPercent,
		WaitForScaleUp:  true,
	})
	r.metrics.RemoteCall("pool_resize", err)
	if err != nil {
		return wrap("capacity", "pool", fmt.Errorf("scale up to %d failed: %w", required, err))
	}

	ctx.Observer.Printf("Pool resized to %d nodes", required)
	return nil
}

// allocateRole allocates count slots concurrently and returns them in index order.
func (r *run) allocateRole(ctx *provisioning.Context, role provisioning.Role, count int, name func(int) string) ([]provisioning.NodeHandle, error) {
	return async.Collect(ctx, count, func(c context.Context, i int) (provisioning.NodeHandle, error) {
		slot := name(i)
		node, err := r.nodes.AllocateNode(c, slot)
		r.metrics.RemoteCall("allocate_node", err)
		if err != nil {
			provisioning.LogResourceFailed(ctx.Observer, "allocation", string(role), slot, err)
			return provisioning.NodeHandle{}, wrap("allocation", slot, err)
		}
		provisioning.LogResourceCreated(ctx.Observer, "allocation", string(role), slot, map[string]string{
			"host":    node.Host,
			"address": node.InternalAddress,
		})
		return node, nil
	})
}

func (r *run) allocate(ctx *provisioning.Context) error {
	n, f := r.topo.NumValidators, r.topo.FullnodesPerValidator
	state := ctx.State

	tasks := []async.Task{
		{Name: "validators", Func: func(context.Context) error {
			nodes, err := r.allocateRole(ctx, provisioning.RoleValidator, n, naming.Validator)
			state.ValidatorNodes = nodes
			return err
		}},
		{Name: "fullnodes", Func: func(context.Context) error {
			nodes, err := r.allocateRole(ctx, provisioning.RoleFullnode, n*f, func(i int) string {
				return naming.Fullnode(i/f, i%f)
			})
			state.FullnodeNodes = nodes
			return err
		}},
	}
	if r.topo.RemoteSecretStores() {
		tasks = append(tasks, async.Task{Name: "secret stores", Func: func(context.Context) error {
			nodes, err := r.allocateRole(ctx, provisioning.RoleSecretStore, n, naming.SecretStore)
			state.SecretStoreNodes = nodes
			return err
		}})
	}
	if r.topo.SigningProxiesEnabled() {
		tasks = append(tasks, async.Task{Name: "signing proxies", Func: func(context.Context) error {
			nodes, err := r.allocateRole(ctx, provisioning.RoleSigningProxy, n, naming.SigningProxy)
			state.SigningProxyNodes = nodes
			return err
		}})
	}

	return async.RunParallel(ctx, tasks)
}

// spawn optionally wipes the slot's node and then starts cfg on it.
func (r *run) spawn(ctx *provisioning.Context, node provisioning.NodeHandle, cfg provisioning.RoleConfig) (provisioning.Instance, error) {
	slot := provisioning.SlotName(cfg)
	if r.opts.CleanData {
		err := r.nodes.WipeData(ctx, node.Name)
		r.metrics.RemoteCall("wipe_data", err)
		if err != nil {
			return provisioning.Instance{}, wrap("spawn", slot, fmt.Errorf("wipe data: %w", err))
		}
	}

	inst, err := r.nodes.SpawnInstance(ctx, node, cfg)
	r.metrics.RemoteCall("spawn_instance", err)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, "spawn", string(cfg.Role()), slot, err)
		return provisioning.Instance{}, wrap("spawn", slot, err)
	}
	provisioning.LogResourceCreated(ctx.Observer, "spawn", string(cfg.Role()), slot, map[string]string{
		"address": inst.Address,
	})
	return inst, nil
}

// spawnRole spawns one instance per node concurrently.
func (r *run) spawnRole(ctx *provisioning.Context, nodes []provisioning.NodeHandle, cfgFor func(int) provisioning.RoleConfig) ([]provisioning.Instance, error) {
	return async.Collect(ctx, len(nodes), func(_ context.Context, i int) (provisioning.Instance, error) {
		return r.spawn(ctx, nodes[i], cfgFor(i))
	})
}

func (r *run) spawnSupport(ctx *provisioning.Context) error {
	state := ctx.State
	if len(state.SecretStoreNodes) == 0 && len(state.SigningProxyNodes) == 0 {
		provisioning.LogPhaseSkipped(ctx.Observer, "support", "secret tier disabled")
		return nil
	}

	settings := ctx.Config.Settings
	tasks := []async.Task{
		{Name: "secret stores", Func: func(context.Context) error {
			insts, err := r.spawnRole(ctx, state.SecretStoreNodes, func(i int) provisioning.RoleConfig {
				return provisioning.SecretStoreConfig{Index: i}
			})
			state.SecretStores = insts
			return err
		}},
		{Name: "signing proxies", Func: func(context.Context) error {
			insts, err := r.spawnRole(ctx, state.SigningProxyNodes, func(i int) provisioning.RoleConfig {
				cfg := provisioning.SigningProxyConfig{
					Index:         i,
					NumValidators: r.topo.NumValidators,
					ImageTag:      r.topo.ImageTag,
					Backend:       string(r.topo.SecretBackend),
				}
				if i < len(state.SecretStoreNodes) {
					cfg.SecretStoreURL = settings.SecretStoreURL(state.SecretStoreNodes[i].InternalAddress)
				}
				return cfg
			})
			state.SigningProxies = insts
			return err
		}},
	}

	if err := async.RunParallel(ctx, tasks); err != nil {
		return err
	}
	r.metrics.SetInstances(provisioning.RoleSecretStore, len(state.SecretStores))
	r.metrics.SetInstances(provisioning.RoleSigningProxy, len(state.SigningProxies))
	return nil
}

func (r *run) initSecrets(ctx *provisioning.Context) error {
	stores := ctx.State.SecretStoreNodes
	if len(stores) == 0 {
		provisioning.LogPhaseSkipped(ctx.Observer, "secret-init", "no secret stores")
		return nil
	}

	budget := ctx.Config.Settings.SecretInit
	_, err := async.Collect(ctx, len(stores), func(c context.Context, i int) (struct{}, error) {
		node := stores[i]
		policy := retry.Fixed(budget.Attempts-1, budget.Delay)
		policy.OnRetry = func(attempt int, err error) {
			provisioning.LogRetry(ctx.Observer, "secret-init", node.Name, attempt, err)
			r.metrics.SecretInitRetry(node.Name)
		}

		err := policy.Do(c, func() error {
			err := r.initializer.InitializeNode(c, i, node)
			r.metrics.RemoteCall("secret_init", err)
			if provisioning.IsKind(err, provisioning.KindConfiguration) {
				return retry.Fatal(err)
			}
			return err
		})
		if err != nil {
			if provisioning.IsKind(err, provisioning.KindConfiguration) {
				return struct{}{}, err
			}
			return struct{}{}, provisioning.RemoteError("secret-init", node.Name, err)
		}
		return struct{}{}, nil
	})
	return err
}

func (r *run) runGenesis(ctx *provisioning.Context) error {
	state := ctx.State
	if len(state.SecretStoreNodes) == 0 {
		provisioning.LogPhaseSkipped(ctx.Observer, "genesis", "no secret stores")
		return nil
	}

	artifact, err := r.genesis.Run(ctx, genesis.Input{
		SecretStoreNodes: state.SecretStoreNodes,
		ValidatorNodes:   state.ValidatorNodes,
	})
	if err != nil {
		return err
	}
	state.Genesis = artifact
	ctx.Observer.Printf("Genesis %s distributed to %d validators", artifact.Digest[:12], len(state.ValidatorNodes))
	return nil
}

func (r *run) spawnNodes(ctx *provisioning.Context) error {
	state := ctx.State
	settings := ctx.Config.Settings
	overrides := r.topo.Overrides(settings.DefaultOverrides)
	n, f := r.topo.NumValidators, r.topo.FullnodesPerValidator
	seed := state.ValidatorNodes[0].InternalAddress

	tasks := []async.Task{
		{Name: "validators", Func: func(context.Context) error {
			insts, err := r.spawnRole(ctx, state.ValidatorNodes, func(i int) provisioning.RoleConfig {
				cfg := provisioning.ValidatorConfig{
					Index:              i,
					NumValidators:      n,
					NumFullnodes:       f,
					ImageTag:           r.topo.ImageTag,
					Overrides:          overrides,
					SeedPeer:           seed,
					EnableSigningProxy: r.topo.SigningProxiesEnabled(),
				}
				if cfg.EnableSigningProxy {
					cfg.SigningProxyAddress = state.SigningProxyNodes[i].InternalAddress
				}
				return cfg
			})
			state.Validators = insts
			return err
		}},
		{Name: "fullnodes", Func: func(context.Context) error {
			insts, err := r.spawnRole(ctx, state.FullnodeNodes, func(i int) provisioning.RoleConfig {
				v := i / f
				return provisioning.FullnodeConfig{
					ValidatorIndex:        v,
					FullnodeIndex:         i % f,
					NumValidators:         n,
					FullnodesPerValidator: f,
					ImageTag:              r.topo.ImageTag,
					Overrides:             overrides,
					SeedPeer:              state.ValidatorNodes[v].InternalAddress,
				}
			})
			state.Fullnodes = insts
			return err
		}},
	}

	if err := async.RunParallel(ctx, tasks); err != nil {
		return err
	}

	r.metrics.SetInstances(provisioning.RoleValidator, len(state.Validators))
	r.metrics.SetInstances(provisioning.RoleFullnode, len(state.Fullnodes))
	ctx.Observer.Printf("Deployed %d validators and %d fullnodes", len(state.Validators), len(state.Fullnodes))
	return nil
}

func (r *run) archive(ctx *provisioning.Context) error {
	artifact := ctx.State.Genesis
	if r.archiver == nil || artifact == nil {
		provisioning.LogPhaseSkipped(ctx.Observer, "archive", "nothing to archive")
		return nil
	}

	layout, err := os.ReadFile(artifact.LayoutPath)
	if err != nil {
		return provisioning.NotFoundError("archive", artifact.LayoutPath, err)
	}
	waypoints, err := yaml.Marshal(artifact.Waypoints)
	if err != nil {
		return fmt.Errorf("failed to encode waypoints: %w", err)
	}

	err = r.archiver.Archive(ctx, ctx.State.RunID, map[string][]byte{
		"genesis.blob":   artifact.Blob,
		"layout.toml":    layout,
		"waypoints.yaml": waypoints,
	})
	r.metrics.RemoteCall("archive", err)
	if err != nil {
		return wrap("archive", ctx.State.RunID, err)
	}
	return nil
}
