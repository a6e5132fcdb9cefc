package hcloud

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/util/async"
	"github.com/imamik/ledgerlab/internal/util/labels"
	"github.com/imamik/ledgerlab/internal/util/naming"
	"github.com/imamik/ledgerlab/internal/util/retry"
)

// DesiredServers returns how many servers a resize to target provisions.
func DesiredServers(target int, headroomPercent float64) int {
	if target <= 0 {
		return 0
	}
	return int(math.Ceil(float64(target) * (1 + headroomPercent/100)))
}

// Resize grows or shrinks the pool to fit req.Target nodes plus headroom.
func (s *PoolScaler) Resize(ctx context.Context, req provisioning.ResizeRequest) error {
	if req.Target < 0 {
		return fmt.Errorf("invalid pool target %d", req.Target)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.PoolResize)
	defer cancel()

	desired := DesiredServers(req.Target, req.HeadroomPercent)
	servers, err := s.list(ctx)
	if err != nil {
		return err
	}

	s.log.Info("Resizing pool", "current", len(servers), "desired", desired, "target", req.Target)

	switch {
	case len(servers) < desired:
		if err := s.scaleUp(ctx, servers, desired); err != nil {
			return err
		}
	case len(servers) > desired:
		if err := s.scaleDown(ctx, servers, desired); err != nil {
			return err
		}
	}

	if req.WaitForScaleUp && req.Target > 0 {
		if err := s.waitFor(ctx, fmt.Sprintf("%d running servers", req.Target), func(servers []*hcloud.Server) bool {
			return countRunning(servers) >= req.Target
		}); err != nil {
			return err
		}
	}
	if req.WaitForScaleDown {
		if err := s.waitFor(ctx, fmt.Sprintf("at most %d servers", desired), func(servers []*hcloud.Server) bool {
			return len(servers) <= desired
		}); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of servers in the pool and how many are running.
func (s *PoolScaler) Size(ctx context.Context) (total, running int, err error) {
	servers, err := s.list(ctx)
	if err != nil {
		return 0, 0, err
	}
	return len(servers), countRunning(servers), nil
}

func (s *PoolScaler) list(ctx context.Context) ([]*hcloud.Server, error) {
	servers, err := s.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: labels.SelectorForPool(s.pool.Name)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pool servers: %w", err)
	}
	return servers, nil
}

func (s *PoolScaler) scaleUp(ctx context.Context, existing []*hcloud.Server, desired int) error {
	opts, err := s.buildCreateOpts(ctx)
	if err != nil {
		return err
	}

	used := make(map[string]bool, len(existing))
	for _, srv := range existing {
		used[srv.Name] = true
	}

	var tasks []async.Task
	for i := 0; len(existing)+len(tasks) < desired; i++ {
		name := naming.PoolServer(s.pool.Name, i)
		if used[name] {
			continue
		}
		serverOpts := opts
		serverOpts.Name = name
		tasks = append(tasks, async.Task{
			Name: name,
			Func: func(ctx context.Context) error { return s.createServer(ctx, serverOpts) },
		})
	}

	return async.RunParallel(ctx, tasks)
}

// buildCreateOpts resolves the server type, image, location and SSH keys once
// for every server a scale-up creates.
func (s *PoolScaler) buildCreateOpts(ctx context.Context) (hcloud.ServerCreateOpts, error) {
	serverType, _, err := s.client.ServerType.Get(ctx, s.pool.ServerType)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get server type: %w", err)
	}
	if serverType == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("server type not found: %s", s.pool.ServerType)
	}

	image, _, err := s.client.Image.GetForArchitecture(ctx, s.pool.Image, serverType.Architecture)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("image not found: %s (%s)", s.pool.Image, serverType.Architecture)
	}

	opts := hcloud.ServerCreateOpts{
		ServerType: serverType,
		Image:      image,
		Labels:     labels.NewLabelBuilder().WithPool(s.pool.Name).Build(),
		UserData:   s.pool.UserData,
	}

	if s.pool.Location != "" {
		location, _, err := s.client.Location.Get(ctx, s.pool.Location)
		if err != nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get location %s: %w", s.pool.Location, err)
		}
		if location == nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("location not found: %s", s.pool.Location)
		}
		opts.Location = location
	}

	for _, key := range s.pool.SSHKeys {
		sshKey, _, err := s.client.SSHKey.Get(ctx, key)
		if err != nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get ssh key %s: %w", key, err)
		}
		if sshKey == nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("ssh key not found: %s", key)
		}
		opts.SSHKeys = append(opts.SSHKeys, sshKey)
	}

	return opts, nil
}

func (s *PoolScaler) createServer(ctx context.Context, opts hcloud.ServerCreateOpts) error {
	var result hcloud.ServerCreateResult
	err := retry.WithExponentialBackoff(ctx, func() error {
		res, _, err := s.client.Server.Create(ctx, opts)
		if err != nil {
			if rejected(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	}, retry.WithMaxRetries(s.timeouts.RetryMaxAttempts), retry.WithInitialDelay(s.timeouts.RetryInitialDelay))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if result.Action != nil {
		if err := s.client.Action.WaitFor(ctx, result.Action); err != nil {
			return fmt.Errorf("failed to wait for server creation: %w", err)
		}
	}
	s.log.V(1).Info("Created pool server", "server", opts.Name)
	return nil
}

func (s *PoolScaler) scaleDown(ctx context.Context, existing []*hcloud.Server, desired int) error {
	victims := append([]*hcloud.Server(nil), existing...)
	sort.SliceStable(victims, func(i, j int) bool {
		return s.index(victims[i].Name) > s.index(victims[j].Name)
	})
	victims = victims[:len(existing)-desired]

	tasks := make([]async.Task, 0, len(victims))
	for _, srv := range victims {
		tasks = append(tasks, async.Task{
			Name: srv.Name,
			Func: func(ctx context.Context) error { return s.deleteServer(ctx, srv) },
		})
	}
	return async.RunParallel(ctx, tasks)
}

func (s *PoolScaler) deleteServer(ctx context.Context, srv *hcloud.Server) error {
	err := retry.WithExponentialBackoff(ctx, func() error {
		_, _, err := s.client.Server.DeleteWithResult(ctx, srv)
		switch {
		case err == nil, IsNotFound(err):
			return nil
		case retryable(err):
			return err
		default:
			return retry.Fatal(err)
		}
	}, retry.WithMaxRetries(s.timeouts.RetryMaxAttempts), retry.WithInitialDelay(s.timeouts.RetryInitialDelay))
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	s.log.V(1).Info("Deleted pool server", "server", srv.Name)
	return nil
}

// waitFor polls the pool until done reports true or ctx expires.
func (s *PoolScaler) waitFor(ctx context.Context, what string, done func([]*hcloud.Server) bool) error {
	ticker := time.NewTicker(s.timeouts.PoolPoll)
	defer ticker.Stop()

	for {
		servers, err := s.list(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("timeout waiting for %s in pool %s: %w", what, s.pool.Name, ctx.Err())
			}
			return err
		}
		if done(servers) {
			return nil
		}
		s.log.V(1).Info("Waiting for pool", "condition", what, "servers", len(servers), "running", countRunning(servers))

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s in pool %s: %w", what, s.pool.Name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// index returns the numeric suffix of a pool server name, or -1.
func (s *PoolScaler) index(name string) int {
	suffix, ok := strings.CutPrefix(name, s.pool.Name+"-")
	if !ok {
		return -1
	}
	i, err := strconv.Atoi(suffix)
	if err != nil {
		return -1
	}
	return i
}

func countRunning(servers []*hcloud.Server) int {
	n := 0
	for _, srv := range servers {
		if srv.Status == hcloud.ServerStatusRunning {
			n++
		}
	}
	return n
}
