package cmd

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eykd/csprocessor-go/internal/config"
)

type fakeInfo struct{}

func (fakeInfo) Name() string       { return config.DefaultPath }
func (fakeInfo) Size() int64        { return 0 }
func (fakeInfo) Mode() fs.FileMode  { return 0 }
func (fakeInfo) ModTime() time.Time { return time.Time{} }
func (fakeInfo) IsDir() bool        { return false }
func (fakeInfo) Sys() any           { return nil }

func TestResolveConfigPath(t *testing.T) {
	exists := func(string) (fs.FileInfo, error) { return fakeInfo{}, nil }
	missing := func(string) (fs.FileInfo, error) { return nil, fs.ErrNotExist }
	broken := func(string) (fs.FileInfo, error) { return nil, fs.ErrPermission }

	tests := []struct {
		name    string
		flag    string
		stat    func(string) (fs.FileInfo, error)
		want    string
		wantErr bool
	}{
		{"flag wins", "custom.yaml", exists, "custom.yaml", false},
		{"default when present", "", exists, config.DefaultPath, false},
		{"none when absent", "", missing, "", false},
		{"stat failure", "", broken, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveConfigPath(tt.flag, tt.stat)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRootCmd_ConfigFlagReachesSubcommands(t *testing.T) {
	quietEnv(t)
	path := filepath.Join(t.TempDir(), "csp.yaml")
	if err := os.WriteFile(path, []byte("store:\n  kind: s3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	root := NewRootCmd()
	_, _, err := run(root, "--config", path, "validate", "spec.txt")
	if err == nil || !strings.Contains(err.Error(), "Store.Kind must be one of") {
		t.Errorf("err = %v, want config validation error", err)
	}
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	quietEnv(t)
	root := NewRootCmd()
	_, _, err := run(root, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "validate", "spec.txt")
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want not-exist error", err)
	}
}
