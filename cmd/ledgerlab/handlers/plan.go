package handlers

import (
	"fmt"
	"strings"

	"github.com/imamik/ledgerlab/internal/platform/hcloud"
	"github.com/imamik/ledgerlab/internal/provisioning/bootstrap"
)

// PlanOutput is the machine-readable form of the plan command.
type PlanOutput struct {
	bootstrap.Plan `json:",inline"`
	// PoolServers is how many servers a clean run provisions, including
	// headroom. Zero when no pool is configured.
	PoolServers int `json:"poolServers,omitempty"`
}

// Plan prints the node slots a bootstrap of the configured topology
// allocates.
func Plan(configPath string, overrides TopologyOverrides, output string) error {
	if err := checkOutput(output); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath, overrides)
	if err != nil {
		return err
	}

	out := PlanOutput{Plan: bootstrap.NewPlan(cfg.Topology)}
	if cfg.Pool.Enabled {
		out.PoolServers = hcloud.DesiredServers(out.Required, cfg.Pool.HeadroomPercent)
	}

	return render(output, out, func() string {
		var b strings.Builder
		b.WriteString(titleStyle.Render(fmt.Sprintf("%d nodes required", out.Required)))
		b.WriteString("\n")
		if out.PoolServers > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("pool %s: %d servers with %.0f%% headroom",
				cfg.Pool.Name, out.PoolServers, cfg.Pool.HeadroomPercent)))
			b.WriteString("\n")
		}
		writeSlots(&b, "Secret stores", out.SecretStores)
		writeSlots(&b, "Signing proxies", out.SigningProxies)
		writeSlots(&b, "Validators", out.Validators)
		writeSlots(&b, "Fullnodes", out.Fullnodes)
		return b.String()
	})
}

func writeSlots(b *strings.Builder, section string, slots []string) {
	if len(slots) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(fmt.Sprintf("%s (%d)", section, len(slots))))
	b.WriteString("\n")
	for _, slot := range slots {
		b.WriteString("  " + nameStyle.Render(slot) + "\n")
	}
}
