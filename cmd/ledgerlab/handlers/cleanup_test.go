package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
)

func TestCleanup(t *testing.T) {
	s := stubClients(t, vaultTopology())

	require.NoError(t, Cleanup(context.Background(), "run.yaml", false, true))
	assert.Equal(t, 1, s.nodes.CleanupCalls)
	assert.Empty(t, s.pool.Requests)
	assert.Contains(t, s.out.String(), "Scheduler reset in namespace ledgerlab")
}

func TestCleanup_ScaleDown(t *testing.T) {
	s := stubClients(t, vaultTopology())
	s.cfg.Pool = config.PoolConfig{Enabled: true, Name: "ledger"}

	require.NoError(t, Cleanup(context.Background(), "run.yaml", true, true))
	require.Len(t, s.pool.Requests, 1)
	assert.Equal(t, provisioning.ResizeRequest{Target: 0, WaitForScaleUp: true, WaitForScaleDown: true}, s.pool.Requests[0])
	assert.Contains(t, s.out.String(), "Pool ledger scaled to zero")
}

func TestCleanup_ScaleDownWithoutPool(t *testing.T) {
	stubClients(t, vaultTopology())

	err := Cleanup(context.Background(), "run.yaml", true, true)
	require.Error(t, err)
	assert.True(t, provisioning.IsKind(err, provisioning.KindConfiguration))
}

func TestCleanup_Declined(t *testing.T) {
	s := stubClients(t, vaultTopology())
	s.interactive = true

	require.NoError(t, Cleanup(context.Background(), "run.yaml", false, false))
	assert.Equal(t, []string{"Cleanup"}, s.prompts)
	assert.Zero(t, s.nodes.CleanupCalls)
}

func TestCleanup_SchedulerError(t *testing.T) {
	s := stubClients(t, vaultTopology())
	s.nodes.CleanupErr = errors.New("forbidden")

	err := Cleanup(context.Background(), "run.yaml", false, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}
