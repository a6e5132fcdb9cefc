package genesis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
	ltesting "github.com/imamik/ledgerlab/internal/testing"
	"github.com/imamik/ledgerlab/internal/util/naming"
)

type fixture struct {
	settings config.Settings
	tool     *ltesting.FakeGenesisTool
	prov     *ltesting.FakeProvisioner
	input    Input
}

func newFixture(t *testing.T, validators int) *fixture {
	t.Helper()
	settings := ltesting.NewConfigBuilder().WithWorkDir(t.TempDir()).Build().Settings
	prov := ltesting.NewFakeProvisioner()

	var in Input
	for i := range validators {
		store, err := prov.AllocateNode(context.Background(), naming.SecretStore(i))
		require.NoError(t, err)
		node, err := prov.AllocateNode(context.Background(), naming.Validator(i))
		require.NoError(t, err)
		in.SecretStoreNodes = append(in.SecretStoreNodes, store)
		in.ValidatorNodes = append(in.ValidatorNodes, node)
	}

	return &fixture{
		settings: settings,
		tool:     ltesting.NewFakeGenesisTool(),
		prov:     prov,
		input:    in,
	}
}

func (f *fixture) run() (*provisioning.GenesisArtifact, error) {
	return NewPipeline(f.tool, f.prov, f.settings).Run(context.Background(), f.input)
}

func TestRun_CallOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 3)

	_, err := f.run()
	require.NoError(t, err)

	want := []string{"layout:common", "root:ledger"}
	for i := range 3 {
		id := naming.Validator(i)
		want = append(want,
			"owner:"+id, "operator:"+id, "validator-config:"+id, "set-operator:"+id)
	}
	want = append(want, "finalize:1")

	calls := f.tool.Calls
	require.Len(t, calls, len(want)+3+1)
	assert.Equal(t, want, calls[:len(want)], "registration must be strictly ordered by validator index")

	waypoints := append([]string(nil), calls[len(want):len(want)+3]...)
	sort.Strings(waypoints)
	assert.Equal(t, []string{"waypoint:validator-0", "waypoint:validator-1", "waypoint:validator-2"}, waypoints)
	assert.Equal(t, "extract:ledger__ledger_root", calls[len(calls)-1])
}

func TestRun_WritesLayoutAndToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	artifact, err := f.run()
	require.NoError(t, err)

	var layout provisioning.Layout
	_, err = toml.DecodeFile(f.settings.LayoutPath(), &layout)
	require.NoError(t, err)
	assert.Equal(t, []string{"validator-0", "validator-1"}, layout.Owners)
	assert.Equal(t, []string{"validator-0", "validator-1"}, layout.Operators)
	assert.Equal(t, []string{"ledger"}, layout.Root)
	assert.Equal(t, layout, artifact.Layout)

	require.Len(t, f.tool.Layouts, 1)
	assert.Contains(t, f.tool.Layouts[0], "owners")

	token, err := os.ReadFile(f.settings.TokenPath())
	require.NoError(t, err)
	assert.Equal(t, "root", string(token))

	_, err = os.Stat(f.settings.RootKeyPath())
	assert.NoError(t, err)
}

func TestRun_RegistersNetworkAddresses(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	_, err := f.run()
	require.NoError(t, err)

	require.Len(t, f.tool.Requests, 2)
	for i, req := range f.tool.Requests {
		addr := f.input.ValidatorNodes[i].InternalAddress
		assert.Equal(t, naming.Validator(i), req.Identity)
		assert.Equal(t, fmt.Sprintf("/ip4/%s/tcp/6180", addr), req.ValidatorAddress.String())
		assert.Equal(t, fmt.Sprintf("/ip4/%s/tcp/6181", addr), req.FullnodeAddress.String())
		assert.Equal(t, 1, req.ChainID)
		assert.Equal(t, "vault", req.Backend.Backend)
		assert.Equal(t, fmt.Sprintf("http://%s:8200", f.input.SecretStoreNodes[i].InternalAddress), req.Backend.ServerURL)
		assert.Equal(t, f.settings.TokenPath(), req.Backend.TokenPath)
	}
}

func TestRun_DistributesIdenticalBlob(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 3)

	artifact, err := f.run()
	require.NoError(t, err)

	require.Len(t, f.prov.Copies, 3)
	seen := map[string]bool{}
	for _, c := range f.prov.Copies {
		seen[c.Name] = true
		assert.Equal(t, c.Name, c.Container)
		assert.Equal(t, "/opt/ledger/etc/genesis.blob", c.DestPath)
		assert.Equal(t, f.tool.Blob, c.Data)
	}
	assert.Len(t, seen, 3)

	assert.Equal(t, f.tool.Blob, artifact.Blob)
	assert.Len(t, artifact.Digest, 64)
	assert.Equal(t, "0:1-validator-2", artifact.Waypoints["validator-2"])
}

func TestRun_MalformedAddressIsConfigurationError(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	f.input.ValidatorNodes[1].InternalAddress = ""

	_, err := f.run()

	require.Error(t, err)
	assert.True(t, provisioning.IsKind(err, provisioning.KindConfiguration))
	assert.Contains(t, err.Error(), "validator-1")
	assert.Zero(t, f.tool.Count("finalize"))
	assert.Zero(t, f.tool.Count("owner:validator-1"))
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 3)
	f.tool.Fail("owner:validator-1", errors.New("permission denied"))

	_, err := f.run()

	require.Error(t, err)
	assert.True(t, provisioning.IsKind(err, provisioning.KindRemoteOperation))
	assert.Contains(t, err.Error(), "validator-1")
	assert.Contains(t, err.Error(), "owner_key")
	assert.Zero(t, f.tool.Count("owner:validator-2"))
	assert.Zero(t, f.tool.Count("finalize"))
	assert.Empty(t, f.prov.Copies)
}

func TestRun_CopyFailureIsFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 3)
	f.prov.FailCopy("validator-2", errors.New("node unreachable"))

	_, err := f.run()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "validator-2")
	// the other copies still ran to completion
	assert.Len(t, f.prov.Copies, 2)
}

func TestRun_MismatchedInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	f.input.SecretStoreNodes = f.input.SecretStoreNodes[:1]

	_, err := f.run()

	require.Error(t, err)
	assert.True(t, provisioning.IsKind(err, provisioning.KindConfiguration))
	assert.Empty(t, f.tool.Calls)
}

func TestRun_FinalizeFailureWithMock(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)

	tool := &ltesting.MockGenesisTool{}
	tool.On("SetLayout", mock.Anything, f.settings.LayoutPath(), "common").Return(nil)
	tool.On("RegisterRootKey", mock.Anything, mock.Anything, "ledger").Return(nil)
	tool.On("RegisterOwnerKey", mock.Anything, mock.Anything, "validator-0").Return(nil)
	tool.On("RegisterOperatorKey", mock.Anything, mock.Anything, "validator-0").Return(nil)
	tool.On("RegisterValidatorConfig", mock.Anything, mock.Anything).Return(nil)
	tool.On("SetOperator", mock.Anything, "validator-0", "validator-0").Return(nil)
	tool.On("Finalize", mock.Anything, 1, f.settings.GenesisPath()).Return(errors.New("invalid layout"))

	_, err := NewPipeline(tool, f.prov, f.settings).Run(context.Background(), f.input)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "finalize")
	tool.AssertExpectations(t)
	tool.AssertNotCalled(t, "CreateWaypoint", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
