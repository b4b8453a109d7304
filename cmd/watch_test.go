package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewWatchCmd_RevalidatesOnChange(t *testing.T) {
	quietEnv(t)
	changes := make(chan struct{}, 1)
	changes <- struct{}{}
	close(changes)

	io := &mockIO{
		reads:   [][]byte{[]byte(testSpec), []byte(strings.Replace(testSpec, "Title = Guide\n", "", 1))},
		changes: changes,
	}
	out, errOut, err := run(NewWatchCmd(io), "spec.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "spec.txt: valid\nspec.txt: invalid\n" {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(errOut, "No Title specified") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestNewWatchCmd_ReadErrorKeepsWatching(t *testing.T) {
	quietEnv(t)
	io := &mockIO{readErr: errors.New("file busy")}
	_, errOut, err := run(NewWatchCmd(io), "spec.txt")
	if err != nil {
		t.Fatalf("read errors should not stop the watch: %v", err)
	}
	if !strings.Contains(errOut, "file busy") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestNewWatchCmd_WatchError(t *testing.T) {
	quietEnv(t)
	io := &mockIO{spec: []byte(testSpec), watchErr: errors.New("too many watches")}
	_, _, err := run(NewWatchCmd(io), "spec.txt")
	if err == nil || !strings.Contains(err.Error(), "too many watches") {
		t.Errorf("err = %v, want watch error", err)
	}
}

func TestFileWatchIO_DebouncesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.txt")
	if err := os.WriteFile(path, []byte(testSpec), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &fileWatchIO{debounce: 20 * time.Millisecond}
	changes, err := w.Watch(ctx, path, zap.NewNop())
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(testSpec), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.txt"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("changes channel not closed after cancel")
		}
	}
}

func TestFileWatchIO_MissingDirectory(t *testing.T) {
	w := newDefaultWatchIO()
	_, err := w.Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "spec.txt"), zap.NewNop())
	if err == nil {
		t.Error("expected error watching a missing directory")
	}
}
