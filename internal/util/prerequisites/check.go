// Package prerequisites checks that the local binaries a run shells out to
// are installed.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/imamik/ledgerlab/internal/config"
)

// Tool is a binary that must be resolvable on PATH.
type Tool struct {
	// Name is the binary name or path.
	Name string
	// Required fails the check when the tool is missing.
	Required bool
	// Description explains what the tool is used for.
	Description string
}

// ForBootstrap returns the tools a bootstrap of cfg invokes locally. Only
// the genesis ceremony, which runs with remote secret stores, needs one.
func ForBootstrap(cfg *config.Config) []Tool {
	if !cfg.Topology.RemoteSecretStores() {
		return nil
	}
	return []Tool{{
		Name:        cfg.Settings.GenesisTool,
		Required:    true,
		Description: "builds the genesis blob from the keys held in the secret stores",
	}}
}

// CheckResult is the outcome for one tool.
type CheckResult struct {
	Tool  Tool
	Found bool
	Path  string
}

// CheckResults holds the outcome for a set of tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// Error returns an error naming every missing required tool.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.Description))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Check looks every tool up on PATH.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}
	for _, tool := range tools {
		result := CheckResult{Tool: tool}
		if path, err := exec.LookPath(tool.Name); err == nil {
			result.Found = true
			result.Path = path
		} else {
			results.Missing = append(results.Missing, tool)
		}
		results.Results = append(results.Results, result)
	}
	return results
}
