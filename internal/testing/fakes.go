package testing

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync"

	"github.com/imamik/ledgerlab/internal/provisioning"
)

// CopyCall records a CopyFile invocation.
type CopyCall struct {
	Name      string
	Container string
	DestPath  string
	Data      []byte
}

// SpawnCall records a SpawnInstance invocation.
type SpawnCall struct {
	Node   provisioning.NodeHandle
	Config provisioning.RoleConfig
}

// AddressFor returns the deterministic internal address FakeProvisioner
// assigns to slot.
func AddressFor(slot string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(slot))
	v := h.Sum32()
	return fmt.Sprintf("10.%d.%d.%d", (v>>16)&0xff, (v>>8)&0xff, v&0xff)
}

// FakeProvisioner is an in-memory NodeProvisioner. Every call is recorded in
// a single ordered log so tests can assert phase ordering.
type FakeProvisioner struct {
	mu sync.Mutex

	nodes   map[string]provisioning.NodeHandle
	failing map[string]error

	CleanupErr   error
	CleanupCalls int
	Allocations  []string
	Wipes        []string
	Spawns       []SpawnCall
	Copies       []CopyCall
	// Log holds "op:slot" entries in call order.
	Log []string
}

// NewFakeProvisioner creates an empty fake scheduler.
func NewFakeProvisioner() *FakeProvisioner {
	return &FakeProvisioner{
		nodes:   make(map[string]provisioning.NodeHandle),
		failing: make(map[string]error),
	}
}

// FailAllocate makes AllocateNode fail for slot.
func (f *FakeProvisioner) FailAllocate(slot string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing["allocate:"+slot] = err
}

// FailSpawn makes SpawnInstance fail for slot.
func (f *FakeProvisioner) FailSpawn(slot string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing["spawn:"+slot] = err
}

// FailCopy makes CopyFile fail for slot.
func (f *FakeProvisioner) FailCopy(slot string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing["copy:"+slot] = err
}

func (f *FakeProvisioner) Cleanup(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CleanupCalls++
	f.Log = append(f.Log, "cleanup")
	if f.CleanupErr != nil {
		return f.CleanupErr
	}
	f.nodes = make(map[string]provisioning.NodeHandle)
	return nil
}

func (f *FakeProvisioner) AllocateNode(_ context.Context, name string) (provisioning.NodeHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Log = append(f.Log, "allocate:"+name)
	if err := f.failing["allocate:"+name]; err != nil {
		return provisioning.NodeHandle{}, err
	}
	if node, ok := f.nodes[name]; ok {
		return node, nil
	}
	f.Allocations = append(f.Allocations, name)
	node := provisioning.NodeHandle{
		Name:            name,
		Host:            "worker-" + name,
		InternalAddress: AddressFor(name),
	}
	f.nodes[name] = node
	return node, nil
}

func (f *FakeProvisioner) WipeData(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Log = append(f.Log, "wipe:"+name)
	if _, ok := f.nodes[name]; !ok {
		return provisioning.NotFoundError("", name, fmt.Errorf("no node allocated"))
	}
	f.Wipes = append(f.Wipes, name)
	return nil
}

func (f *FakeProvisioner) SpawnInstance(_ context.Context, node provisioning.NodeHandle, cfg provisioning.RoleConfig) (provisioning.Instance, error) {
	slot := provisioning.SlotName(cfg)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Log = append(f.Log, "spawn:"+slot)
	if err := f.failing["spawn:"+slot]; err != nil {
		return provisioning.Instance{}, err
	}
	f.Spawns = append(f.Spawns, SpawnCall{Node: node, Config: cfg})
	return provisioning.Instance{
		Role:    cfg.Role(),
		Index:   cfg.RoleIndex(),
		Name:    slot,
		Node:    node,
		Address: node.InternalAddress,
		Image:   "fake/" + string(cfg.Role()),
	}, nil
}

func (f *FakeProvisioner) CopyFile(_ context.Context, name, containerName, destPath string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Log = append(f.Log, "copy:"+name)
	if err := f.failing["copy:"+name]; err != nil {
		return err
	}
	if _, ok := f.nodes[name]; !ok {
		return provisioning.NotFoundError("", name, fmt.Errorf("no node allocated"))
	}
	f.Copies = append(f.Copies, CopyCall{
		Name:      name,
		Container: containerName,
		DestPath:  destPath,
		Data:      append([]byte(nil), data...),
	})
	return nil
}

// SpawnsOf returns the recorded spawn calls for role.
func (f *FakeProvisioner) SpawnsOf(role provisioning.Role) []SpawnCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SpawnCall
	for _, s := range f.Spawns {
		if s.Config.Role() == role {
			out = append(out, s)
		}
	}
	return out
}

// Node returns the handle allocated to slot.
func (f *FakeProvisioner) Node(slot string) (provisioning.NodeHandle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[slot]
	return node, ok
}

// FakePoolScaler records resize requests.
type FakePoolScaler struct {
	mu       sync.Mutex
	Requests []provisioning.ResizeRequest
	Err      error
}

func (f *FakePoolScaler) Resize(_ context.Context, req provisioning.ResizeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	return f.Err
}

// FakeSecretStores is a SecretStoreDialer whose stores live in memory, keyed
// by URL. A store can be told to fail its first N CreateKey calls or to
// reject every key.
type FakeSecretStores struct {
	mu        sync.Mutex
	stores    map[string]*FakeSecretStore
	failFirst map[string]int
	rejects   map[string]bool
	DialErr   error
}

// NewFakeSecretStores creates an empty set of stores.
func NewFakeSecretStores() *FakeSecretStores {
	return &FakeSecretStores{
		stores:    make(map[string]*FakeSecretStore),
		failFirst: make(map[string]int),
		rejects:   make(map[string]bool),
	}
}

// FailFirst makes the store at url fail its first n CreateKey calls.
func (f *FakeSecretStores) FailFirst(url string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFirst[url] = n
}

// Reject makes the store at url refuse every CreateKey call with a
// configuration error.
func (f *FakeSecretStores) Reject(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejects[url] = true
}

func (f *FakeSecretStores) Dial(url, token, namespace string) (provisioning.SecretStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DialErr != nil {
		return nil, f.DialErr
	}
	store, ok := f.stores[url]
	if !ok {
		store = &FakeSecretStore{URL: url, keys: make(map[string]int), parent: f}
		f.stores[url] = store
	}
	store.Token = token
	store.Namespace = namespace
	return store, nil
}

// Store returns the store dialed at url.
func (f *FakeSecretStores) Store(url string) *FakeSecretStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores[url]
}

// FakeSecretStore is one in-memory secret store.
type FakeSecretStore struct {
	URL       string
	Token     string
	Namespace string

	parent *FakeSecretStores
	keys   map[string]int
	calls  int
}

func (s *FakeSecretStore) CreateKey(_ context.Context, name string) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.calls++
	if s.parent.rejects[s.URL] {
		return provisioning.ConfigurationError("", name, fmt.Errorf("permission denied"))
	}
	if s.parent.failFirst[s.URL] > 0 {
		s.parent.failFirst[s.URL]--
		return provisioning.TransientError("", s.URL, fmt.Errorf("secret store sealed"))
	}
	s.keys[name]++
	return nil
}

// Keys returns the key names present in the store.
func (s *FakeSecretStore) Keys() map[string]bool {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	out := make(map[string]bool, len(s.keys))
	for k := range s.keys {
		out[k] = true
	}
	return out
}

// Calls returns the number of CreateKey calls, including failed ones.
func (s *FakeSecretStore) Calls() int {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	return s.calls
}

// FakeGenesisTool records every call in order and writes placeholder files
// for Finalize and ExtractPrivateKey.
type FakeGenesisTool struct {
	mu    sync.Mutex
	Calls []string
	// Requests holds every RegisterValidatorConfig request.
	Requests []provisioning.ValidatorConfigRequest
	Layouts  []string
	fail     map[string]error
	// Blob is written by Finalize.
	Blob []byte
}

// NewFakeGenesisTool creates a tool that produces a fixed genesis blob.
func NewFakeGenesisTool() *FakeGenesisTool {
	return &FakeGenesisTool{
		fail: make(map[string]error),
		Blob: []byte("genesis-blob"),
	}
}

// Fail makes the call recorded as key (e.g. "owner:validator-1") fail.
func (f *FakeGenesisTool) Fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[key] = err
}

func (f *FakeGenesisTool) record(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, key)
	return f.fail[key]
}

func (f *FakeGenesisTool) SetLayout(_ context.Context, path, namespace string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.Layouts = append(f.Layouts, string(data))
	f.mu.Unlock()
	return f.record("layout:" + namespace)
}

func (f *FakeGenesisTool) RegisterRootKey(_ context.Context, _ provisioning.BackendRef, identity string) error {
	return f.record("root:" + identity)
}

func (f *FakeGenesisTool) RegisterOwnerKey(_ context.Context, _ provisioning.BackendRef, identity string) error {
	return f.record("owner:" + identity)
}

func (f *FakeGenesisTool) RegisterOperatorKey(_ context.Context, _ provisioning.BackendRef, identity string) error {
	return f.record("operator:" + identity)
}

func (f *FakeGenesisTool) RegisterValidatorConfig(_ context.Context, req provisioning.ValidatorConfigRequest) error {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	f.mu.Unlock()
	return f.record("validator-config:" + req.Identity)
}

func (f *FakeGenesisTool) SetOperator(_ context.Context, owner, _ string) error {
	return f.record("set-operator:" + owner)
}

func (f *FakeGenesisTool) Finalize(_ context.Context, chainID int, outputPath string) error {
	if err := f.record(fmt.Sprintf("finalize:%d", chainID)); err != nil {
		return err
	}
	return os.WriteFile(outputPath, f.Blob, 0o600)
}

func (f *FakeGenesisTool) CreateWaypoint(_ context.Context, chainID int, _ provisioning.BackendRef, identity string) (string, error) {
	if err := f.record("waypoint:" + identity); err != nil {
		return "", err
	}
	return fmt.Sprintf("0:%d-%s", chainID, identity), nil
}

func (f *FakeGenesisTool) ExtractPrivateKey(_ context.Context, keyName, outputPath string, _ provisioning.BackendRef) error {
	if err := f.record("extract:" + keyName); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("private-key"), 0o600)
}

// Count returns how many recorded calls start with prefix.
func (f *FakeGenesisTool) Count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// FakeArchiver keeps archived files in memory.
type FakeArchiver struct {
	mu   sync.Mutex
	Runs map[string]map[string][]byte
	Err  error
}

func (f *FakeArchiver) Archive(_ context.Context, runID string, files map[string][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if f.Runs == nil {
		f.Runs = make(map[string]map[string][]byte)
	}
	f.Runs[runID] = files
	return nil
}
