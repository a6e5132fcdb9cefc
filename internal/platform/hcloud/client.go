package hcloud

import (
	"github.com/go-logr/logr"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/ledgerlab/internal/config"
)

// PoolScaler implements provisioning.PoolScaler on a Hetzner Cloud server pool.
type PoolScaler struct {
	client   *hcloud.Client
	pool     config.PoolConfig
	timeouts *config.Timeouts
	log      logr.Logger
}

// Option configures a PoolScaler.
type Option func(*PoolScaler)

// WithTimeouts sets custom timeouts for the scaler.
func WithTimeouts(t *config.Timeouts) Option {
	return func(s *PoolScaler) {
		s.timeouts = t
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) Option {
	return func(s *PoolScaler) {
		s.client = hc
	}
}

// WithLogger sets the logger resize progress is reported to.
func WithLogger(l logr.Logger) Option {
	return func(s *PoolScaler) {
		s.log = l
	}
}

// NewPoolScaler creates a scaler for pool, authenticating with pool.Token.
func NewPoolScaler(pool config.PoolConfig, opts ...Option) *PoolScaler {
	s := &PoolScaler{
		pool:     pool,
		timeouts: config.LoadTimeouts(),
		log:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = hcloud.NewClient(
			hcloud.WithToken(pool.Token),
			hcloud.WithApplication("ledgerlab", ""),
		)
	}
	s.log = s.log.WithValues("pool", pool.Name)
	return s
}
