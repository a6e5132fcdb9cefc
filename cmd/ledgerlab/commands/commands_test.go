package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ledgerlab/cmd/ledgerlab/handlers"
)

func TestRoot_Subcommands(t *testing.T) {
	cmd := Root()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"bootstrap", "cleanup", "plan", "runs", "version"}, names)
}

func TestRoot_LogFlags(t *testing.T) {
	cmd := Root()

	assert.NotNil(t, cmd.PersistentFlags().Lookup("zap-devel"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("zap-log-level"))
}

func TestBootstrap_Flags(t *testing.T) {
	cmd := Bootstrap()

	for _, name := range []string{
		"config", "num-validators", "fullnodes-per-validator", "enable-secret-tier",
		"secret-backend", "cfg", "image-tag", "clean-data", "yes", "output", "metrics-textfile",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}

	flag := cmd.Flags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "o", flag.Shorthand)
	assert.Equal(t, "text", flag.DefValue)
	assert.Contains(t, cmd.Long, "WARNING")
}

func topologyFromArgs(t *testing.T, args ...string) handlers.TopologyOverrides {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	var topo topologyFlags
	topo.bind(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return topo.topology(cmd)
}

func TestTopologyFlags_OnlyChangedFlagsOverride(t *testing.T) {
	o := topologyFromArgs(t, "--num-validators=5", "--cfg", "a=1,b=2", "--cfg", "c=3", "--enable-secret-tier=false")

	require.NotNil(t, o.NumValidators)
	assert.Equal(t, 5, *o.NumValidators)
	require.NotNil(t, o.EnableSecretTier)
	assert.False(t, *o.EnableSecretTier)
	assert.Nil(t, o.FullnodesPerValidator)
	assert.Nil(t, o.SecretBackend)
	assert.Nil(t, o.ImageTag)
	assert.Equal(t, []string{"a=1", "b=2", "c=3"}, o.ConfigOverrides)
}

func TestTopologyFlags_NoneSet(t *testing.T) {
	o := topologyFromArgs(t)

	assert.Nil(t, o.NumValidators)
	assert.Nil(t, o.EnableSecretTier)
	assert.Empty(t, o.ConfigOverrides)
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "today")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	cmd := Version()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	assert.Contains(t, out.String(), "ledgerlab 1.2.3")
	assert.Contains(t, out.String(), "commit: abc")
}
