package s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/util/async"
)

const (
	runsPrefix   = "runs/"
	manifestName = "manifest.json"
)

// Manifest describes one archived run.
type Manifest struct {
	RunID     string            `json:"runId"`
	CreatedAt time.Time         `json:"createdAt"`
	Files     map[string]string `json:"files"` // name -> sha256 hex
}

// Archiver implements provisioning.ArtifactArchiver on an S3 bucket.
type Archiver struct {
	client *Client
	bucket string
	now    func() time.Time
}

// NewArchiver connects to the bucket described by cfg.
func NewArchiver(ctx context.Context, cfg config.ArchiveConfig) (*Archiver, error) {
	client, err := NewClient(ctx, cfg.Endpoint, cfg.Region, cfg.AccessKey, cfg.SecretKey, cfg.PathStyle)
	if err != nil {
		return nil, err
	}
	return newArchiver(client, cfg.Bucket), nil
}

func newArchiver(client *Client, bucket string) *Archiver {
	return &Archiver{client: client, bucket: bucket, now: time.Now}
}

var _ provisioning.ArtifactArchiver = (*Archiver)(nil)

// Archive uploads files under runs/<runID>/ and then writes the manifest.
func (a *Archiver) Archive(ctx context.Context, runID string, files map[string][]byte) error {
	if runID == "" || strings.Contains(runID, "/") {
		return fmt.Errorf("invalid run id %q", runID)
	}
	if err := a.client.CreateBucket(ctx, a.bucket); err != nil {
		return err
	}

	manifest := Manifest{RunID: runID, CreatedAt: a.now().UTC(), Files: make(map[string]string, len(files))}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	tasks := make([]async.Task, 0, len(names))
	for _, name := range names {
		data := files[name]
		sum := sha256.Sum256(data)
		manifest.Files[name] = hex.EncodeToString(sum[:])
		tasks = append(tasks, async.Task{
			Name: name,
			Func: func(ctx context.Context) error {
				return a.client.PutObject(ctx, a.bucket, objectKey(runID, name), contentType(name), data)
			},
		})
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		return fmt.Errorf("failed to archive run %s: %w", runID, err)
	}

	body, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return a.client.PutObject(ctx, a.bucket, objectKey(runID, manifestName), "application/json", body)
}

// Runs lists the archived run IDs in lexical order.
func (a *Archiver) Runs(ctx context.Context) ([]string, error) {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	prefixes, err := a.client.ListPrefixes(ctx, a.bucket, runsPrefix)
	if err != nil {
		return nil, err
	}
	runs := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		runs = append(runs, strings.TrimSuffix(strings.TrimPrefix(p, runsPrefix), "/"))
	}
	sort.Strings(runs)
	return runs, nil
}

// Manifest returns the manifest of an archived run.
func (a *Archiver) Manifest(ctx context.Context, runID string) (*Manifest, error) {
	data, err := a.client.GetObject(ctx, a.bucket, objectKey(runID, manifestName))
	if err != nil {
		if isNotFoundError(err) {
			return nil, provisioning.NotFoundError("archive", runID, fmt.Errorf("run not archived"))
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest of run %s: %w", runID, err)
	}
	return &m, nil
}

// Fetch downloads one archived file and verifies it against the manifest.
func (a *Archiver) Fetch(ctx context.Context, runID, name string) ([]byte, error) {
	m, err := a.Manifest(ctx, runID)
	if err != nil {
		return nil, err
	}
	want, ok := m.Files[name]
	if !ok {
		return nil, provisioning.NotFoundError("archive", runID+"/"+name, fmt.Errorf("file not in manifest"))
	}

	data, err := a.client.GetObject(ctx, a.bucket, objectKey(runID, name))
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != want {
		return nil, fmt.Errorf("checksum mismatch for %s/%s: got %s, want %s", runID, name, got, want)
	}
	return data, nil
}

func objectKey(runID, name string) string {
	return path.Join(strings.TrimSuffix(runsPrefix, "/"), runID, name)
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".toml":
		return "application/toml"
	default:
		return "application/octet-stream"
	}
}
