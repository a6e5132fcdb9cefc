package s3

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ledgerlab/internal/provisioning"
)

// fakeBucketServer is a path-style, in-memory S3 endpoint.
type fakeBucketServer struct {
	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string][]byte
	types    map[string]string
	failPuts bool
}

func newFakeBucketServer() *fakeBucketServer {
	return &fakeBucketServer{
		buckets: make(map[string]bool),
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// xmlResponse is a helper to write S3-style XML responses.
func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func xmlError(w http.ResponseWriter, statusCode int, code string) {
	xmlResponse(w, statusCode, fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>%s</Code>
  <Message>%s</Message>
</Error>`, code, code))
}

func (f *fakeBucketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")

	switch {
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodGet:
		f.list(w, bucket, r.URL.Query().Get("prefix"), r.URL.Query().Get("delimiter"))
	case r.Method == http.MethodPut:
		if f.failPuts {
			xmlError(w, http.StatusForbidden, "AccessDenied")
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+key] = body
		f.types[bucket+"/"+key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[bucket+"/"+key]
		if !ok {
			xmlError(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeBucketServer) list(w http.ResponseWriter, bucket, prefix, delimiter string) {
	seen := map[string]bool{}
	for k := range f.objects {
		key, ok := strings.CutPrefix(k, bucket+"/")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if i := strings.Index(rest, delimiter); delimiter != "" && i >= 0 {
			seen[prefix+rest[:i+1]] = true
		}
	}
	prefixes := make([]string, 0, len(seen))
	for p := range seen {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><Prefix>%s</Prefix><IsTruncated>false</IsTruncated>", bucket, prefix)
	for _, p := range prefixes {
		fmt.Fprintf(&b, "<CommonPrefixes><Prefix>%s</Prefix></CommonPrefixes>", p)
	}
	b.WriteString("</ListBucketResult>")
	xmlResponse(w, http.StatusOK, b.String())
}

// testArchiver creates an Archiver backed by a fake bucket server.
func testArchiver(t *testing.T) (*Archiver, *fakeBucketServer) {
	t.Helper()
	fake := newFakeBucketServer()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(server.URL),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		RetryMaxAttempts:           1,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	a := newArchiver(&Client{s3: client, region: "us-east-1"}, "ledger-runs")
	a.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return a, fake
}

func TestNewArchiver(t *testing.T) {
	t.Parallel()
	a, err := NewArchiver(context.Background(), configFor("https://s3.example.com"))
	require.NoError(t, err)
	assert.Equal(t, "ledger-runs", a.bucket)
	assert.Equal(t, "us-east-1", a.client.region)
}

func TestArchive_UploadsFilesAndManifest(t *testing.T) {
	t.Parallel()
	a, fake := testArchiver(t)

	files := map[string][]byte{
		"genesis.blob":   []byte("genesis"),
		"layout.toml":    []byte("owners = []"),
		"waypoints.yaml": []byte("validator-0: 0:abc"),
	}
	require.NoError(t, a.Archive(context.Background(), "run-1", files))

	assert.True(t, fake.buckets["ledger-runs"])
	for name, data := range files {
		assert.Equal(t, data, fake.objects["ledger-runs/runs/run-1/"+name], name)
	}
	assert.Equal(t, "application/toml", fake.types["ledger-runs/runs/run-1/layout.toml"])
	assert.Equal(t, "application/octet-stream", fake.types["ledger-runs/runs/run-1/genesis.blob"])

	var m Manifest
	require.NoError(t, json.Unmarshal(fake.objects["ledger-runs/runs/run-1/manifest.json"], &m))
	assert.Equal(t, "run-1", m.RunID)
	assert.Len(t, m.Files, 3)
	assert.Equal(t, "2026-01-02T03:04:05Z", m.CreatedAt.Format(time.RFC3339))
}

func TestArchive_RejectsInvalidRunID(t *testing.T) {
	t.Parallel()
	a, fake := testArchiver(t)

	require.Error(t, a.Archive(context.Background(), "", nil))
	require.Error(t, a.Archive(context.Background(), "a/b", nil))
	assert.Empty(t, fake.buckets)
}

func TestArchive_PutFailure(t *testing.T) {
	t.Parallel()
	a, fake := testArchiver(t)
	fake.failPuts = true

	err := a.Archive(context.Background(), "run-1", map[string][]byte{"genesis.blob": []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to archive run run-1")
	assert.Contains(t, err.Error(), "failed to put object runs/run-1/genesis.blob")
	_, hasManifest := fake.objects["ledger-runs/runs/run-1/manifest.json"]
	assert.False(t, hasManifest)
}

func TestRunsAndFetch(t *testing.T) {
	t.Parallel()
	a, fake := testArchiver(t)
	ctx := context.Background()

	runs, err := a.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, a.Archive(ctx, "run-b", map[string][]byte{"genesis.blob": []byte("b")}))
	require.NoError(t, a.Archive(ctx, "run-a", map[string][]byte{"genesis.blob": []byte("a")}))

	runs, err = a.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, runs)

	data, err := a.Fetch(ctx, "run-a", "genesis.blob")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)

	_, err = a.Fetch(ctx, "run-a", "layout.toml")
	require.Error(t, err)
	assert.True(t, provisioning.IsKind(err, provisioning.KindNotFound))

	_, err = a.Fetch(ctx, "run-missing", "genesis.blob")
	require.Error(t, err)
	assert.True(t, provisioning.IsKind(err, provisioning.KindNotFound))

	fake.mu.Lock()
	fake.objects["ledger-runs/runs/run-b/genesis.blob"] = []byte("tampered")
	fake.mu.Unlock()
	_, err = a.Fetch(ctx, "run-b", "genesis.blob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestContentType(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"manifest.json":  "application/json",
		"waypoints.yaml": "application/yaml",
		"layout.toml":    "application/toml",
		"genesis.blob":   "application/octet-stream",
	}
	for name, want := range tests {
		assert.Equal(t, want, contentType(name), name)
	}
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()
	assert.False(t, isNotFoundError(nil))
	assert.False(t, isBucketAlreadyOwnedByYou(nil))
	assert.False(t, isNotFoundError(fmt.Errorf("plain")))
}
