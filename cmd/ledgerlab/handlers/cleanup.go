package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Cleanup removes every workload and node allocation and, with scaleDown,
// resizes the compute pool to zero.
func Cleanup(ctx context.Context, configPath string, scaleDown, yes bool) error {
	cfg, err := loadConfig(configPath, TopologyOverrides{})
	if err != nil {
		return err
	}

	description := fmt.Sprintf("Every ledgerlab workload in namespace %s is deleted.", cfg.Kubernetes.Namespace)
	if scaleDown {
		description += fmt.Sprintf(" Pool %s is scaled to zero.", cfg.Pool.Name)
	}
	err = confirmDestructive(yes, "Cleanup", description+" Continue?")
	if errors.Is(err, errAborted) {
		fmt.Fprintln(stdout, "Aborted.")
		return nil
	}
	if err != nil {
		return err
	}

	orchestrator, err := newOrchestrator(ctx, cfg, "", prometheus.NewRegistry())
	if err != nil {
		return err
	}

	if err := orchestrator.Cleanup(ctx); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Fprintf(stdout, "Scheduler reset in namespace %s\n", cfg.Kubernetes.Namespace)

	if scaleDown {
		if err := orchestrator.ScaleDown(ctx); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Pool %s scaled to zero\n", cfg.Pool.Name)
	}
	return nil
}
