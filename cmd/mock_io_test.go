package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eykd/csprocessor-go/internal/catalog"
	"github.com/eykd/csprocessor-go/internal/config"
	"github.com/eykd/csprocessor-go/internal/csnode"
)

const testSpec = `ID = 42
Title = Guide
Product = Product
Version = 1.0
DTD = Docbook 4.5
Copyright Holder = Example

Chapter: One
  Intro [5]
  Section: Details
    Deep [6]
`

// mockIO is a test double for every command's IO interface.
type mockIO struct {
	spec    []byte
	reads   [][]byte // consumed one per ReadSpec before falling back to spec
	readErr error

	lookup      catalog.Lookup
	catalogErr  error
	catalogPath string

	store    *memNodeStore
	storeErr error
	opens    int

	changes  chan struct{}
	watchErr error
}

func (m *mockIO) ReadSpec(_ context.Context, _ string) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if len(m.reads) > 0 {
		data := m.reads[0]
		m.reads = m.reads[1:]
		return data, nil
	}
	return m.spec, nil
}

func (m *mockIO) LoadCatalog(_ context.Context, path string) (catalog.Lookup, error) {
	m.catalogPath = path
	if m.catalogErr != nil {
		return nil, m.catalogErr
	}
	if m.lookup == nil {
		return catalog.New(nil), nil
	}
	return m.lookup, nil
}

func (m *mockIO) OpenStore(_ context.Context, _ config.StoreConfig, _ *zap.Logger) (NodeStore, error) {
	m.opens++
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	if m.store == nil {
		m.store = &memNodeStore{MemoryStore: csnode.NewMemoryStore()}
	}
	return m.store, nil
}

func (m *mockIO) Watch(_ context.Context, _ string, _ *zap.Logger) (<-chan struct{}, error) {
	if m.watchErr != nil {
		return nil, m.watchErr
	}
	if m.changes == nil {
		m.changes = make(chan struct{})
		close(m.changes)
	}
	return m.changes, nil
}

// memNodeStore is an in-memory NodeStore that counts commits.
type memNodeStore struct {
	*csnode.MemoryStore
	commits int
}

func (s *memNodeStore) Commit(_ context.Context) error {
	s.commits++
	return nil
}

func (s *memNodeStore) Close() error { return nil }

// quietEnv keeps the session logger off the test output and pins the config
// to defaults plus whatever the test sets afterwards.
func quietEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CSP_CATALOG", "CSP_STORE_KIND", "CSP_STORE_PATH", "CSP_REDIS_URL", "CSP_REDIS_PREFIX", "CSP_LOG_DEVELOPMENT"} {
		t.Setenv(key, "")
	}
	t.Setenv("CSP_LOG_LEVEL", "error")
}

// run executes c with args, returning stdout, stderr and the error.
func run(c *cobra.Command, args ...string) (string, string, error) {
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	c.SetOut(out)
	c.SetErr(errOut)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), errOut.String(), err
}

func fileStoreConfig(path string) config.StoreConfig {
	return config.StoreConfig{Kind: config.StoreMemory, Path: path}
}

func zapNop() *zap.Logger { return zap.NewNop() }
