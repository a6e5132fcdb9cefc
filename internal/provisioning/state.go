package provisioning

// State holds the shared results of provisioning phases.
// It is progressively populated as each phase completes and is passed
// to subsequent phases that need earlier results. Slices are index-aligned
// with role indices; fullnodes use the flat index
// validator*fullnodesPerValidator + fullnode.
type State struct {
	RunID string

	// Allocation results
	SecretStoreNodes  []NodeHandle
	SigningProxyNodes []NodeHandle
	ValidatorNodes    []NodeHandle
	FullnodeNodes     []NodeHandle

	// Spawn results
	SecretStores   []Instance
	SigningProxies []Instance
	Validators     []Instance
	Fullnodes      []Instance

	// Genesis result (nil when the secret tier has no remote stores)
	Genesis *GenesisArtifact
}

// NewState creates an empty provisioning state for a run.
func NewState(runID string) *State {
	return &State{RunID: runID}
}

// Descriptor assembles the cluster descriptor from the spawn results.
func (s *State) Descriptor() *ClusterDescriptor {
	return &ClusterDescriptor{
		RunID:          s.RunID,
		Validators:     s.Validators,
		Fullnodes:      s.Fullnodes,
		SigningProxies: s.SigningProxies,
		SecretStores:   s.SecretStores,
		Genesis:        s.Genesis,
	}
}
