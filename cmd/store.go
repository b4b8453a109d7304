package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eykd/csprocessor-go/internal/config"
	"github.com/eykd/csprocessor-go/internal/csnode"
)

// NodeStore is a node provider opened for one push. Commit makes the writes
// durable; Close releases the store.
type NodeStore interface {
	csnode.Provider
	Commit(ctx context.Context) error
	Close() error
}

// openNodeStore opens the provider selected by cfg.
func openNodeStore(cfg config.StoreConfig, logger *zap.Logger) (NodeStore, error) {
	switch cfg.Kind {
	case config.StoreMemory:
		s, err := csnode.LoadMemoryStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Debug("opened file node store", zap.String("path", cfg.Path))
		return &fileNodeStore{MemoryStore: s, path: cfg.Path}, nil
	case config.StoreRedis:
		s, err := csnode.NewRedisStore(csnode.RedisOptions{URL: cfg.RedisURL, KeyPrefix: cfg.KeyPrefix})
		if err != nil {
			return nil, err
		}
		logger.Debug("opened redis node store", zap.String("prefix", cfg.KeyPrefix))
		return &redisNodeStore{RedisStore: s}, nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

// fileNodeStore holds nodes in memory and writes the YAML snapshot on Commit.
type fileNodeStore struct {
	*csnode.MemoryStore
	path string
}

func (s *fileNodeStore) Commit(_ context.Context) error {
	return s.Save(s.path)
}

func (s *fileNodeStore) Close() error {
	return nil
}

// redisNodeStore writes through to Redis; Commit has nothing left to do.
type redisNodeStore struct {
	*csnode.RedisStore
}

func (s *redisNodeStore) Commit(_ context.Context) error {
	return nil
}
