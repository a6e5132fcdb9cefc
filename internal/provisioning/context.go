package provisioning

import (
	"context"

	"github.com/imamik/ledgerlab/internal/config"
)

// Context wraps all dependencies and state needed for a provisioning phase.
type Context struct {
	context.Context
	Config   *config.Config
	State    *State
	Observer Observer
	Metrics  *Metrics
	Timeouts *config.Timeouts
}

// NewContext creates a new provisioning context. A nil observer discards events.
func NewContext(ctx context.Context, cfg *config.Config, runID string, observer Observer) *Context {
	if observer == nil {
		observer = NewNopObserver()
	}
	return &Context{
		Context:  ctx,
		Config:   cfg,
		State:    NewState(runID),
		Observer: observer.WithFields(map[string]string{"run": runID}),
		Timeouts: config.LoadTimeouts(),
	}
}
