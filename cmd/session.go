package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eykd/csprocessor-go/internal/config"
)

const configFlag = "config"

// session is the configuration and logger resolved for one command invocation.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
}

// newSession loads the configuration named by --config (or csp.yaml when it
// exists), validates it, and builds the logger it describes.
func newSession(cmd *cobra.Command) (*session, error) {
	path, err := resolveConfigPath(configFlagValue(cmd), os.Stat)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return &session{cfg: cfg, logger: logger}, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
}

// resolveConfigPath returns flag when set, else config.DefaultPath when it
// exists, else "" (defaults and environment only).
func resolveConfigPath(flag string, stat func(string) (fs.FileInfo, error)) (string, error) {
	if flag != "" {
		return flag, nil
	}
	_, err := stat(config.DefaultPath)
	switch {
	case err == nil:
		return config.DefaultPath, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	default:
		return "", fmt.Errorf("checking %s: %w", config.DefaultPath, err)
	}
}

// configFlagValue reads the persistent --config flag; subcommands built
// without a root have none.
func configFlagValue(cmd *cobra.Command) string {
	f := cmd.Flags().Lookup(configFlag)
	if f == nil {
		return ""
	}
	return f.Value.String()
}
