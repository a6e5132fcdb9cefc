package handlers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"sigs.k8s.io/yaml"

	"github.com/imamik/ledgerlab/internal/provisioning"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f9fafb"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3b82f6"))
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

func checkOutput(output string) error {
	switch output {
	case OutputText, OutputYAML, OutputJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, yaml or json)", output)
	}
}

// render writes v in the requested format. text produces the human form.
func render(output string, v any, text func() string) error {
	var data []byte
	var err error
	switch output {
	case OutputYAML:
		data, err = yaml.Marshal(v)
	case OutputJSON:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	default:
		data = []byte(text())
	}
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = stdout.Write(data)
	return err
}

// renderDescriptor formats a bootstrapped cluster for the terminal.
func renderDescriptor(d *provisioning.ClusterDescriptor) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Cluster ready: %d instances", d.InstanceCount())))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("run " + d.RunID))
	b.WriteString("\n")

	writeInstances(&b, "Secret stores", d.SecretStores)
	writeInstances(&b, "Signing proxies", d.SigningProxies)
	writeInstances(&b, "Validators", d.Validators)
	writeInstances(&b, "Fullnodes", d.Fullnodes)

	if g := d.Genesis; g != nil {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Genesis"))
		b.WriteString("\n")
		writeField(&b, "digest", g.Digest)
		writeField(&b, "blob", g.GenesisPath)
		writeField(&b, "root key", g.RootKeyPath)

		identities := make([]string, 0, len(g.Waypoints))
		for id := range g.Waypoints {
			identities = append(identities, id)
		}
		sort.Strings(identities)
		for _, id := range identities {
			writeField(&b, id, g.Waypoints[id])
		}
	}

	return b.String()
}

func writeInstances(b *strings.Builder, section string, instances []provisioning.Instance) {
	if len(instances) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(fmt.Sprintf("%s (%d)", section, len(instances))))
	b.WriteString("\n")
	for _, inst := range instances {
		fmt.Fprintf(b, "  %-16s %s %s\n",
			nameStyle.Render(inst.Name),
			valueStyle.Render(inst.Address),
			dimStyle.Render(inst.Node.Host+" "+inst.Image))
	}
}

func writeField(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "  %s %s\n", nameStyle.Render(name+":"), valueStyle.Render(value))
}
