package csnode

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// URL is the Redis connection string (e.g. "redis://localhost:6379/0").
	URL string

	// KeyPrefix namespaces every key the store writes.
	KeyPrefix string

	// ConnectTimeout bounds the initial PING.
	ConnectTimeout time.Duration
}

// RedisStore is a Provider backed by Redis. Each node is a hash at
// "<prefix>node:<id>"; each content spec owns a set of node ids at
// "<prefix>spec:<id>:nodes". Ids come from INCR on "<prefix>node:seq".
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: opts.KeyPrefix}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) nodeKey(id string) string     { return s.prefix + "node:" + id }
func (s *RedisStore) specKey(specID string) string { return s.prefix + "spec:" + specID + ":nodes" }
func (s *RedisStore) seqKey() string               { return s.prefix + "node:seq" }

// NewNode implements Provider.
func (s *RedisStore) NewNode(contentSpecID string, t Type) *Node {
	return &Node{ContentSpecID: contentSpecID, Type: t}
}

// Create implements Provider.
func (s *RedisStore) Create(ctx context.Context, n *Node) (*Node, error) {
	if n.ContentSpecID == "" {
		return nil, fmt.Errorf("create node: missing content spec id")
	}
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate node id: %w", err)
	}

	stored := n.Clone()
	stored.ID = strconv.FormatInt(seq, 10)
	stored.Parent = nil

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.nodeKey(stored.ID), toHash(stored))
		pipe.SAdd(ctx, s.specKey(stored.ContentSpecID), stored.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create node %s: %w", stored.ID, err)
	}
	return stored, nil
}

// Update implements Provider.
func (s *RedisStore) Update(ctx context.Context, n *Node) error {
	exists, err := s.client.Exists(ctx, s.nodeKey(n.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to update node %s: %w", n.ID, err)
	}
	if exists == 0 {
		return fmt.Errorf("update node %s: %w", n.ID, ErrNotFound)
	}
	if err := s.client.HSet(ctx, s.nodeKey(n.ID), toHash(n)).Err(); err != nil {
		return fmt.Errorf("failed to update node %s: %w", n.ID, err)
	}
	return nil
}

// Delete implements Provider.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.nodeKey(id))
		pipe.SRem(ctx, s.specKey(n.ContentSpecID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete node %s: %w", id, err)
	}
	return nil
}

// Get implements Provider.
func (s *RedisStore) Get(ctx context.Context, id string) (*Node, error) {
	fields, err := s.client.HGetAll(ctx, s.nodeKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("get node %s: %w", id, ErrNotFound)
	}
	return fromHash(id, fields)
}

// ContentSpecNodes implements Provider. Ids are allocated in increasing order,
// so sorting them numerically restores creation order.
func (s *RedisStore) ContentSpecNodes(ctx context.Context, contentSpecID string) ([]*Node, error) {
	ids, err := s.client.SMembers(ctx, s.specKey(contentSpecID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes of %s: %w", contentSpecID, err)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.ParseInt(ids[i], 10, 64)
		b, _ := strconv.ParseInt(ids[j], 10, 64)
		return a < b
	})

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.nodeKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes of %s: %w", contentSpecID, err)
	}

	out := make([]*Node, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		n, err := fromHash(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func toHash(n *Node) map[string]any {
	rev := ""
	if n.EntityRevision != nil {
		rev = strconv.Itoa(*n.EntityRevision)
	}
	return map[string]any{
		"contentSpec":    n.ContentSpecID,
		"type":           int(n.Type),
		"parent":         n.ParentID,
		"title":          n.Title,
		"additionalText": n.AdditionalText,
		"targetId":       n.TargetID,
		"entityId":       n.EntityID,
		"entityRevision": rev,
		"next":           n.NextID,
		"previous":       n.PreviousID,
	}
}

func fromHash(id string, h map[string]string) (*Node, error) {
	n := &Node{
		ID:             id,
		ContentSpecID:  h["contentSpec"],
		ParentID:       h["parent"],
		Title:          h["title"],
		AdditionalText: h["additionalText"],
		TargetID:       h["targetId"],
		NextID:         h["next"],
		PreviousID:     h["previous"],
	}

	t, err := strconv.Atoi(h["type"])
	if err != nil {
		return nil, fmt.Errorf("node %s: invalid type %q: %w", id, h["type"], err)
	}
	n.Type = Type(t)

	if v := h["entityId"]; v != "" {
		if n.EntityID, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("node %s: invalid entity id %q: %w", id, v, err)
		}
	}
	if v := h["entityRevision"]; v != "" {
		rev, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("node %s: invalid entity revision %q: %w", id, v, err)
		}
		n.EntityRevision = &rev
	}
	return n, nil
}
