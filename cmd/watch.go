package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const watchDebounce = 300 * time.Millisecond

// WatchIO handles all I/O for the watch command.
type WatchIO interface {
	ValidateIO
	// Watch returns a channel that receives once per burst of changes to
	// path. The channel is closed when ctx is done or watching fails.
	Watch(ctx context.Context, path string, logger *zap.Logger) (<-chan struct{}, error)
}

// NewWatchCmd creates the watch subcommand.
func NewWatchCmd(io WatchIO) *cobra.Command {
	return &cobra.Command{
		Use:          "watch <file>",
		Short:        "Re-validate a content specification whenever it changes",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			changes, err := io.Watch(ctx, path, sess.logger)
			if err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}

			check := func() {
				res, err := checkSpec(ctx, io, io, sess, path)
				if err != nil {
					// Read errors are usually transient while an editor saves.
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", sanitizeText(err.Error()))
					return
				}
				printDiagnostics(cmd, res.diags)
				status := "valid"
				if !res.valid {
					status = "invalid"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", sanitizeText(path), status)
			}

			check()
			for range changes {
				check()
			}
			return nil
		},
	}
}

// fileWatchIO implements WatchIO using OS file I/O and fsnotify.
type fileWatchIO struct {
	fileValidateIO
	debounce time.Duration
}

func newDefaultWatchIO() *fileWatchIO {
	return &fileWatchIO{debounce: watchDebounce}
}

// Watch watches the directory holding path so that editors which save by
// renaming a temp file are still seen.
func (f *fileWatchIO) Watch(ctx context.Context, path string, logger *zap.Logger) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		w.Close()
		return nil, err
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer w.Close()

		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				logger.Debug("content spec changed", zap.String("file", ev.Name), zap.String("operation", ev.Op.String()))
				fire = time.After(f.debounce)
			case <-fire:
				fire = nil
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", zap.Error(err))
			}
		}
	}()
	return changes, nil
}
