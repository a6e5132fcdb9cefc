package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/provisioning/bootstrap"
	"github.com/imamik/ledgerlab/internal/util/prerequisites"
)

// BootstrapOptions are the inputs of the bootstrap command.
type BootstrapOptions struct {
	ConfigPath      string
	Topology        TopologyOverrides
	CleanData       bool
	Yes             bool
	Output          string
	MetricsTextfile string
}

// Bootstrap provisions a test cluster and prints its descriptor.
//
// The workflow is:
//  1. Load the run file and apply the command-line topology overrides
//  2. Check that the genesis tool is installed when the run needs it
//  3. Confirm a clean run unless --yes is set
//  4. Wire the scheduler, pool, secret-store, genesis-tool and archive clients
//  5. Run the orchestrator and render the resulting cluster
//
// Metrics are written to the textfile even when the run fails.
func Bootstrap(ctx context.Context, opts BootstrapOptions) error {
	if err := checkOutput(opts.Output); err != nil {
		return err
	}

	cfg, err := loadConfig(opts.ConfigPath, opts.Topology)
	if err != nil {
		return err
	}

	if err := checkPrerequisites(prerequisites.ForBootstrap(cfg)).Error(); err != nil {
		return err
	}

	if opts.CleanData {
		err := confirmDestructive(opts.Yes, "Clean run",
			"The compute pool is scaled to zero and every node's data is wiped. Continue?")
		if errors.Is(err, errAborted) {
			fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	runID := uuid.NewString()
	log := logger.WithValues("run", runID)
	registry := prometheus.NewRegistry()

	orchestrator, err := newOrchestrator(ctx, cfg, runID, registry)
	if err != nil {
		return err
	}

	descriptor, runErr := orchestrator.Bootstrap(ctx, cfg.Topology, bootstrap.Options{
		CleanData: opts.CleanData,
		RunID:     runID,
	})

	if opts.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsTextfile, registry); err != nil {
			log.Error(err, "Failed to write metrics", "path", opts.MetricsTextfile)
		}
	}

	if runErr != nil {
		return fmt.Errorf("bootstrap failed: %w", runErr)
	}
	return render(opts.Output, descriptor, func() string { return renderDescriptor(descriptor) })
}

// newOrchestrator wires every configured client into an orchestrator.
func newOrchestrator(ctx context.Context, cfg *config.Config, runID string, registry prometheus.Registerer) (*bootstrap.Orchestrator, error) {
	log := logger.WithValues("run", runID)
	timeouts := loadTimeouts()

	nodes, err := newNodeProvisioner(cfg, runID, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler client: %w", err)
	}

	opts := []bootstrap.Option{
		bootstrap.WithObserver(provisioning.NewLogrObserver(log)),
		bootstrap.WithMetrics(provisioning.NewMetrics(registry)),
		bootstrap.WithTimeouts(timeouts),
		bootstrap.WithSecretStores(newSecretStoreDialer()),
		bootstrap.WithGenesisTool(newGenesisTool(cfg.Settings, timeouts, log)),
	}

	if cfg.Pool.Enabled {
		opts = append(opts, bootstrap.WithPoolScaler(newPoolScaler(cfg.Pool, log)))
	}

	if cfg.Archive.Enabled {
		archive, err := newRunArchive(ctx, cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive client: %w", err)
		}
		opts = append(opts, bootstrap.WithArchiver(archive))
	}

	return bootstrap.New(cfg, nodes, opts...), nil
}
