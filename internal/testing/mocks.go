package testing

import (
	"context"

	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/stretchr/testify/mock"
)

// MockNodeProvisioner is a testify mock of provisioning.NodeProvisioner.
type MockNodeProvisioner struct {
	mock.Mock
}

func (m *MockNodeProvisioner) Cleanup(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockNodeProvisioner) AllocateNode(ctx context.Context, name string) (provisioning.NodeHandle, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(provisioning.NodeHandle), args.Error(1)
}

func (m *MockNodeProvisioner) WipeData(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockNodeProvisioner) SpawnInstance(ctx context.Context, node provisioning.NodeHandle, cfg provisioning.RoleConfig) (provisioning.Instance, error) {
	args := m.Called(ctx, node, cfg)
	return args.Get(0).(provisioning.Instance), args.Error(1)
}

func (m *MockNodeProvisioner) CopyFile(ctx context.Context, name, containerName, destPath string, data []byte) error {
	return m.Called(ctx, name, containerName, destPath, data).Error(0)
}

// MockPoolScaler is a testify mock of provisioning.PoolScaler.
type MockPoolScaler struct {
	mock.Mock
}

func (m *MockPoolScaler) Resize(ctx context.Context, req provisioning.ResizeRequest) error {
	return m.Called(ctx, req).Error(0)
}

// MockSecretStore is a testify mock of provisioning.SecretStore.
type MockSecretStore struct {
	mock.Mock
}

func (m *MockSecretStore) CreateKey(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

// MockSecretStoreDialer is a testify mock of provisioning.SecretStoreDialer.
type MockSecretStoreDialer struct {
	mock.Mock
}

func (m *MockSecretStoreDialer) Dial(url, token, namespace string) (provisioning.SecretStore, error) {
	args := m.Called(url, token, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(provisioning.SecretStore), args.Error(1)
}

// MockGenesisTool is a testify mock of provisioning.GenesisTool.
type MockGenesisTool struct {
	mock.Mock
}

func (m *MockGenesisTool) SetLayout(ctx context.Context, path, namespace string) error {
	return m.Called(ctx, path, namespace).Error(0)
}

func (m *MockGenesisTool) RegisterRootKey(ctx context.Context, ref provisioning.BackendRef, identity string) error {
	return m.Called(ctx, ref, identity).Error(0)
}

func (m *MockGenesisTool) RegisterOwnerKey(ctx context.Context, ref provisioning.BackendRef, identity string) error {
	return m.Called(ctx, ref, identity).Error(0)
}

func (m *MockGenesisTool) RegisterOperatorKey(ctx context.Context, ref provisioning.BackendRef, identity string) error {
	return m.Called(ctx, ref, identity).Error(0)
}

func (m *MockGenesisTool) RegisterValidatorConfig(ctx context.Context, req provisioning.ValidatorConfigRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockGenesisTool) SetOperator(ctx context.Context, owner, operator string) error {
	return m.Called(ctx, owner, operator).Error(0)
}

func (m *MockGenesisTool) Finalize(ctx context.Context, chainID int, outputPath string) error {
	return m.Called(ctx, chainID, outputPath).Error(0)
}

func (m *MockGenesisTool) CreateWaypoint(ctx context.Context, chainID int, ref provisioning.BackendRef, identity string) (string, error) {
	args := m.Called(ctx, chainID, ref, identity)
	return args.String(0), args.Error(1)
}

func (m *MockGenesisTool) ExtractPrivateKey(ctx context.Context, keyName, outputPath string, ref provisioning.BackendRef) error {
	return m.Called(ctx, keyName, outputPath, ref).Error(0)
}
