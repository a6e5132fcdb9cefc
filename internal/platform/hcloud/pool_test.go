package hcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/hetznercloud/hcloud-go/v2/hcloud/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/util/labels"
)

// fakeAPI is an in-memory Hetzner Cloud API covering the endpoints the pool
// scaler uses.
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu      sync.Mutex
	servers map[string]*fakeServer
	nextID  int64
	lists   int
	creates int
	deletes int

	// bootAfter is the number of list calls a new server stays initializing.
	bootAfter int
	// neverBoot keeps every created server initializing.
	neverBoot bool
	// createErr is returned as the API error code for every create.
	createErr hcloud.ErrorCode
	// deleteErr is returned for the first deleteFailures deletes.
	deleteErr      hcloud.ErrorCode
	deleteFailures int
}

type fakeServer struct {
	id        int64
	name      string
	labels    map[string]string
	createdAt int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{t: t, servers: make(map[string]*fakeServer), nextID: 100}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /servers", api.listServers)
	mux.HandleFunc("POST /servers", api.createServer)
	mux.HandleFunc("DELETE /servers/{id}", api.deleteServer)
	mux.HandleFunc("GET /server_types", func(w http.ResponseWriter, r *http.Request) {
		types := []schema.ServerType{}
		if r.URL.Query().Get("name") == "cx22" {
			types = append(types, schema.ServerType{ID: 1, Name: "cx22", Architecture: "x86"})
		}
		jsonResponse(w, http.StatusOK, schema.ServerTypeListResponse{ServerTypes: types})
	})
	mux.HandleFunc("GET /images", func(w http.ResponseWriter, r *http.Request) {
		images := []schema.Image{}
		if r.URL.Query().Get("name") == "ubuntu-24.04" {
			name := "ubuntu-24.04"
			images = append(images, schema.Image{ID: 2, Name: &name, Architecture: "x86", Status: "available", Type: "system"})
		}
		jsonResponse(w, http.StatusOK, schema.ImageListResponse{Images: images})
	})

	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func jsonResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func (a *fakeAPI) seed(names ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, name := range names {
		a.nextID++
		a.servers[name] = &fakeServer{
			id:     a.nextID,
			name:   name,
			labels: labels.NewLabelBuilder().WithPool("ledger").Build(),
		}
	}
}

func (a *fakeAPI) names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.servers))
	for name := range a.servers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (a *fakeAPI) listServers(w http.ResponseWriter, r *http.Request) {
	assert.Equal(a.t, labels.SelectorForPool("ledger"), r.URL.Query().Get("label_selector"))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.lists++

	resp := schema.ServerListResponse{Servers: []schema.Server{}}
	for _, srv := range a.servers {
		status := "running"
		if a.neverBoot || a.lists-srv.createdAt <= a.bootAfter {
			status = "initializing"
		}
		resp.Servers = append(resp.Servers, schema.Server{
			ID:     srv.id,
			Name:   srv.name,
			Status: status,
			Labels: srv.labels,
		})
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (a *fakeAPI) createServer(w http.ResponseWriter, r *http.Request) {
	var req schema.ServerCreateRequest
	require.NoError(a.t, json.NewDecoder(r.Body).Decode(&req))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.creates++

	if a.createErr != "" {
		jsonResponse(w, http.StatusUnprocessableEntity, schema.ErrorResponse{
			Error: schema.Error{Code: string(a.createErr), Message: "rejected"},
		})
		return
	}

	var lbls map[string]string
	if req.Labels != nil {
		lbls = *req.Labels
	}
	a.nextID++
	a.servers[req.Name] = &fakeServer{id: a.nextID, name: req.Name, labels: lbls, createdAt: a.lists}

	jsonResponse(w, http.StatusCreated, schema.ServerCreateResponse{
		Server: schema.Server{ID: a.nextID, Name: req.Name, Status: "initializing", Labels: lbls},
		Action: schema.Action{ID: a.nextID, Command: "create_server", Status: "success", Progress: 100},
	})
}

func (a *fakeAPI) deleteServer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	require.NoError(a.t, err)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.deletes++
	if a.deleteFailures > 0 {
		a.deleteFailures--
		status := http.StatusUnprocessableEntity
		if a.deleteErr == hcloud.ErrorCodeLocked {
			status = http.StatusLocked
		}
		jsonResponse(w, status, schema.ErrorResponse{
			Error: schema.Error{Code: string(a.deleteErr), Message: "busy"},
		})
		return
	}
	for name, srv := range a.servers {
		if srv.id == id {
			delete(a.servers, name)
		}
	}
	jsonResponse(w, http.StatusOK, schema.ServerDeleteResponse{
		Action: schema.Action{ID: id, Command: "delete_server", Status: "success", Progress: 100},
	})
}

func (a *fakeAPI) scaler() *PoolScaler {
	return NewPoolScaler(config.PoolConfig{
		Enabled:    true,
		Name:       "ledger",
		Token:      "test-token",
		ServerType: "cx22",
		Image:      "ubuntu-24.04",
	},
		WithHCloudClient(hcloud.NewClient(
			hcloud.WithToken("test-token"),
			hcloud.WithEndpoint(a.server.URL),
		)),
		WithTimeouts(config.TestTimeouts()),
	)
}

func TestDesiredServers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		target   int
		headroom float64
		want     int
	}{
		{0, 5, 0},
		{10, 0, 10},
		{10, 5, 11},
		{20, 5, 21},
		{1, 5, 2},
		{3, 100, 6},
		{-1, 5, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d+%.0f%%", tt.target, tt.headroom), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DesiredServers(tt.target, tt.headroom))
		})
	}
}

func TestResize_ScaleUpFromEmpty(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)

	err := api.scaler().Resize(context.Background(), provisioning.ResizeRequest{Target: 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"ledger-0", "ledger-1", "ledger-2"}, api.names())
	for _, srv := range api.servers {
		assert.Equal(t, "ledger", srv.labels[labels.KeyPool])
		assert.Equal(t, labels.ManagedByLedgerlab, srv.labels[labels.KeyManagedBy])
	}
}

func TestResize_Headroom(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)

	err := api.scaler().Resize(context.Background(), provisioning.ResizeRequest{Target: 10, HeadroomPercent: 5})
	require.NoError(t, err)

	assert.Len(t, api.names(), 11)
}

func TestResize_ReusesFreeIndices(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.seed("ledger-0", "ledger-2")

	err := api.scaler().Resize(context.Background(), provisioning.ResizeRequest{Target: 4})
	require.NoError(t, err)

	assert.Equal(t, []string{"ledger-0", "ledger-1", "ledger-2", "ledger-3"}, api.names())
	assert.Equal(t, 2, api.creates)
}

func TestResize_ScaleDownRemovesHighestIndices(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.seed("ledger-0", "ledger-1", "ledger-2", "ledger-3", "ledger-10")

	err := api.scaler().Resize(context.Background(), provisioning.ResizeRequest{Target: 2, WaitForScaleDown: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"ledger-0", "ledger-1"}, api.names())
	assert.Equal(t, 3, api.deletes)
}

func TestResize_RetriesLockedDelete(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.seed("ledger-0")
	api.deleteErr = hcloud.ErrorCodeLocked
	api.deleteFailures = 1

	err := api.scaler().Resize(context.Background(), provisioning.ResizeRequest{Target: 0, WaitForScaleDown: true})
	require.NoError(t, err)

	assert.Empty(t, api.names())
	assert.GreaterOrEqual(t, api.deletes, 2)
}

func TestResize_InvalidDeleteIsNotRetried(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.seed("ledger-0")
	api.deleteErr = hcloud.ErrorCodeInvalidInput
	api.deleteFailures = 5

	err := api.scaler().Resize(context.Background(), provisioning.ResizeRequest{Target: 0})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "failed to delete server")
	assert.Equal(t, 1, api.deletes)
	assert.Equal(t, []string{"ledger-0"}, api.names())
}

func TestResize_ScaleToZero(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.seed("ledger-0", "ledger-1")

	err := api.scaler().Resize(context.Background(), provisioning.ResizeRequest{
		Target:           0,
		WaitForScaleUp:   true,
		WaitForScaleDown: true,
	})
	require.NoError(t, err)

	assert.Empty(t, api.names())
	assert.Equal(t, 0, api.creates)
}

func TestResize_NoChange(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.seed("ledger-0", "ledger-1")

	err := api.scaler().Resize(context.Background(), provisioning.ResizeRequest{Target: 2})
	require.NoError(t, err)

	assert.Equal(t, 0, api.creates)
	assert.Equal(t, 0, api.deletes)
}

func TestResize_WaitsForServersToBoot(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.bootAfter = 3

	err := api.scaler().Resize(context.Background(), provisioning.ResizeRequest{Target: 2, WaitForScaleUp: true})
	require.NoError(t, err)

	total, running, err := api.scaler().Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, running)
	assert.Greater(t, api.lists, 3)
}

func TestResize_TimesOutWaitingForBoot(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.neverBoot = true

	s := api.scaler()
	s.timeouts.PoolResize = 100 * time.Millisecond

	err := s.Resize(context.Background(), provisioning.ResizeRequest{Target: 1, WaitForScaleUp: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout waiting for 1 running servers")
}

func TestResize_InvalidInputIsNotRetried(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.createErr = hcloud.ErrorCodeInvalidInput

	err := api.scaler().Resize(context.Background(), provisioning.ResizeRequest{Target: 1})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "failed to create server")
	assert.Equal(t, 1, api.creates)
}

func TestResize_UnknownServerType(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)

	s := api.scaler()
	s.pool.ServerType = "cx99"

	err := s.Resize(context.Background(), provisioning.ResizeRequest{Target: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server type not found: cx99")
	assert.Equal(t, 0, api.creates)
}

func TestResize_NegativeTarget(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)

	err := api.scaler().Resize(context.Background(), provisioning.ResizeRequest{Target: -1})
	require.Error(t, err)
}

func TestPoolScaler_Index(t *testing.T) {
	t.Parallel()
	s := NewPoolScaler(config.PoolConfig{Name: "ledger"})

	assert.Equal(t, 0, s.index("ledger-0"))
	assert.Equal(t, 12, s.index("ledger-12"))
	assert.Equal(t, -1, s.index("other-1"))
	assert.Equal(t, -1, s.index("ledger-x"))
}
