package vault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/imamik/ledgerlab/internal/provisioning"
)

// DefaultMount is the transit engine mount path.
const DefaultMount = "transit"

// DefaultKeyType is the transit key type created for every slot.
const DefaultKeyType = "ed25519"

// Dialer creates Vault clients for secret-store nodes.
type Dialer struct {
	timeout time.Duration
	mount   string
	keyType string
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(dl *Dialer) { dl.timeout = d }
}

// WithMount sets the transit mount path.
func WithMount(mount string) Option {
	return func(dl *Dialer) { dl.mount = mount }
}

// WithKeyType sets the transit key type.
func WithKeyType(keyType string) Option {
	return func(dl *Dialer) { dl.keyType = keyType }
}

// NewDialer creates a Dialer.
func NewDialer(opts ...Option) *Dialer {
	d := &Dialer{
		timeout: 30 * time.Second,
		mount:   DefaultMount,
		keyType: DefaultKeyType,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial returns a store for the Vault at url. No request is made until the
// first CreateKey.
func (d *Dialer) Dial(url, token, namespace string) (provisioning.SecretStore, error) {
	cfg := api.DefaultConfig()
	if cfg.Error != nil {
		return nil, fmt.Errorf("failed to read vault environment: %w", cfg.Error)
	}
	cfg.Address = url
	cfg.Timeout = d.timeout
	// The bootstrap owns the retry budget for key creation.
	cfg.MaxRetries = 0

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(token)
	if namespace != "" {
		client.SetNamespace(namespace)
	}

	return &Store{client: client, mount: d.mount, keyType: d.keyType}, nil
}

// Store is one Vault server's transit engine.
type Store struct {
	client  *api.Client
	mount   string
	keyType string
}

// CreateKey creates the transit key name. Sealed or unreachable servers
// yield transient errors; rejected requests yield configuration errors.
func (s *Store) CreateKey(ctx context.Context, name string) error {
	path := fmt.Sprintf("%s/keys/%s", s.mount, name)
	_, err := s.client.Logical().WriteWithContext(ctx, path, map[string]any{
		"type": s.keyType,
	})
	if err == nil {
		return nil
	}

	if rejected(err) {
		return provisioning.ConfigurationError("", name, fmt.Errorf("vault rejected key creation: %w", err))
	}
	return provisioning.TransientError("", name, err)
}

// rejected reports whether Vault answered with a client error that retrying
// cannot fix.
func rejected(err error) bool {
	var respErr *api.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	return respErr.StatusCode >= http.StatusBadRequest &&
		respErr.StatusCode < http.StatusInternalServerError &&
		respErr.StatusCode != http.StatusTooManyRequests
}
