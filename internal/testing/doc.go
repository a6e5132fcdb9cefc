// Package testing provides test utilities, builders, and fakes for unit and scenario tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for run configurations
//   - FakeProvisioner, FakeGenesisTool, FakeSecretStores, FakePoolScaler: stateful,
//     concurrency-safe fakes of the provisioning boundaries that record every call
//   - MockNodeProvisioner, MockPoolScaler, MockGenesisTool, MockSecretStore: testify
//     mocks for expectation-style tests
//   - RecordingObserver: an Observer that keeps every event
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithValidators(3).
//	    WithFullnodesPerValidator(1).
//	    Build()
//
//	prov := testing.NewFakeProvisioner()
//	prov.FailAllocate("fullnode-1-2", errors.New("no capacity"))
package testing
