package labels

import (
	"sort"
	"strings"
)

// Standard label keys.
const (
	// KeyPool identifies the server pool a node belongs to
	KeyPool = "ledgerlab.io/pool"

	// KeyRole identifies the workload role (validator, fullnode, ...)
	KeyRole = "ledgerlab.io/role"

	// KeySlot identifies the slot a node is allocated to or a workload runs in
	KeySlot = "ledgerlab.io/slot"

	// KeyRun identifies the bootstrap run that created a workload
	KeyRun = "ledgerlab.io/run"

	// KeyComponent identifies helper workloads (wipe, copy)
	KeyComponent = "ledgerlab.io/component"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "ledgerlab.io/managed-by"
)

// ManagedByLedgerlab is the value every created resource carries under KeyManagedBy.
const ManagedByLedgerlab = "ledgerlab"

// Component values
const (
	ComponentWipe = "wipe"
	ComponentCopy = "copy"
)

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the managed-by label pre-set.
func NewLabelBuilder() *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyManagedBy: ManagedByLedgerlab,
		},
	}
}

// WithPool adds a pool name label.
func (lb *LabelBuilder) WithPool(pool string) *LabelBuilder {
	lb.labels[KeyPool] = pool
	return lb
}

// WithRole adds a role label.
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// WithSlot adds a slot label.
func (lb *LabelBuilder) WithSlot(slot string) *LabelBuilder {
	lb.labels[KeySlot] = slot
	return lb
}

// WithRunIfSet adds a run label only if runID is non-empty.
func (lb *LabelBuilder) WithRunIfSet(runID string) *LabelBuilder {
	if runID != "" {
		lb.labels[KeyRun] = runID
	}
	return lb
}

// WithComponent adds a helper component label.
func (lb *LabelBuilder) WithComponent(component string) *LabelBuilder {
	lb.labels[KeyComponent] = component
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// Selector returns the labels as an equality-based selector string with keys
// in sorted order, e.g. "ledgerlab.io/managed-by=ledgerlab,ledgerlab.io/pool=p".
func (lb *LabelBuilder) Selector() string {
	return Selector(lb.labels)
}

// Selector formats labels as a sorted equality-based selector string.
func Selector(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}

// SelectorForPool returns a label selector for all servers in a pool.
func SelectorForPool(pool string) string {
	return NewLabelBuilder().WithPool(pool).Selector()
}

// SelectorManaged returns a label selector for every resource ledgerlab created.
func SelectorManaged() string {
	return KeyManagedBy + "=" + ManagedByLedgerlab
}
