package handlers

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/go-logr/logr"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/platform/s3"
	"github.com/imamik/ledgerlab/internal/provisioning"
	testutil "github.com/imamik/ledgerlab/internal/testing"
	"github.com/imamik/ledgerlab/internal/util/prerequisites"
)

// stubs replaces every client factory with in-memory fakes for one test.
type stubs struct {
	cfg     *config.Config
	out     *bytes.Buffer
	nodes   *testutil.FakeProvisioner
	stores  *testutil.FakeSecretStores
	tool    *testutil.FakeGenesisTool
	pool    *testutil.FakePoolScaler
	archive *fakeRunArchive

	// missing lists tool names the prerequisite check reports as absent.
	missing []string

	interactive bool
	answer      bool
	prompts     []string
}

func stubClients(t *testing.T, builder *testutil.ConfigBuilder) *stubs {
	t.Helper()

	s := &stubs{
		cfg:     builder.WithWorkDir(t.TempDir()).Build(),
		out:     &bytes.Buffer{},
		nodes:   testutil.NewFakeProvisioner(),
		stores:  testutil.NewFakeSecretStores(),
		tool:    testutil.NewFakeGenesisTool(),
		pool:    &testutil.FakePoolScaler{},
		archive: &fakeRunArchive{},
	}

	origLoad := loadConfigFile
	origStdout := stdout
	origNodes := newNodeProvisioner
	origPool := newPoolScaler
	origDialer := newSecretStoreDialer
	origTool := newGenesisTool
	origArchive := newRunArchive
	origTimeouts := loadTimeouts
	origInteractive := isInteractive
	origConfirm := confirm
	origPrereqs := checkPrerequisites
	t.Cleanup(func() {
		loadConfigFile = origLoad
		stdout = origStdout
		newNodeProvisioner = origNodes
		newPoolScaler = origPool
		newSecretStoreDialer = origDialer
		newGenesisTool = origTool
		newRunArchive = origArchive
		loadTimeouts = origTimeouts
		isInteractive = origInteractive
		confirm = origConfirm
		checkPrerequisites = origPrereqs
	})

	loadConfigFile = func(_ string) (*config.Config, error) {
		cfg := *s.cfg
		return &cfg, nil
	}
	stdout = s.out
	newNodeProvisioner = func(_ *config.Config, _ string, _ logr.Logger) (provisioning.NodeProvisioner, error) {
		return s.nodes, nil
	}
	newPoolScaler = func(_ config.PoolConfig, _ logr.Logger) provisioning.PoolScaler { return s.pool }
	newSecretStoreDialer = func() provisioning.SecretStoreDialer { return s.stores }
	newGenesisTool = func(_ config.Settings, _ *config.Timeouts, _ logr.Logger) provisioning.GenesisTool { return s.tool }
	newRunArchive = func(_ context.Context, _ config.ArchiveConfig) (RunArchive, error) { return s.archive, nil }
	loadTimeouts = config.TestTimeouts
	checkPrerequisites = func(tools []prerequisites.Tool) *prerequisites.CheckResults {
		results := &prerequisites.CheckResults{}
		for _, tool := range tools {
			for _, name := range s.missing {
				if tool.Name == name {
					results.Missing = append(results.Missing, tool)
				}
			}
		}
		return results
	}
	isInteractive = func() bool { return s.interactive }
	confirm = func(title, _ string) (bool, error) {
		s.prompts = append(s.prompts, title)
		return s.answer, nil
	}

	return s
}

// fakeRunArchive keeps runs in memory.
type fakeRunArchive struct {
	store testutil.FakeArchiver
}

func (f *fakeRunArchive) Archive(ctx context.Context, runID string, files map[string][]byte) error {
	return f.store.Archive(ctx, runID, files)
}

func (f *fakeRunArchive) Runs(_ context.Context) ([]string, error) {
	var ids []string
	for id := range f.store.Runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeRunArchive) Manifest(_ context.Context, runID string) (*s3.Manifest, error) {
	files, ok := f.store.Runs[runID]
	if !ok {
		return nil, provisioning.NotFoundError("archive", runID, errors.New("no such run"))
	}
	m := &s3.Manifest{RunID: runID, Files: map[string]string{}}
	for name := range files {
		m.Files[name] = "sum-" + name
	}
	return m, nil
}

func (f *fakeRunArchive) Fetch(_ context.Context, runID, name string) ([]byte, error) {
	data, ok := f.store.Runs[runID][name]
	if !ok {
		return nil, provisioning.NotFoundError("archive", runID+"/"+name, errors.New("no such file"))
	}
	return data, nil
}
