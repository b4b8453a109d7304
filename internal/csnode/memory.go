package csnode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// MemoryStore is an in-process Provider. Its contents can be saved to and
// loaded from a YAML snapshot file.
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[string]*Node
	order []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string]*Node)}
}

// snapshot is the on-disk YAML shape.
type snapshot struct {
	Nodes []*Node `yaml:"nodes"`
}

// LoadMemoryStore reads the snapshot at path. A missing file yields an empty store.
func LoadMemoryStore(path string) (*MemoryStore, error) {
	s := NewMemoryStore()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read node snapshot %s: %w", path, err)
	}

	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse node snapshot %s: %w", path, err)
	}
	for _, n := range snap.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("parse node snapshot %s: node without id", path)
		}
		s.nodes[n.ID] = n
		s.order = append(s.order, n.ID)
	}
	return s, nil
}

// Save writes the store to path, replacing any existing file.
func (s *MemoryStore) Save(path string) error {
	s.mu.Lock()
	snap := snapshot{Nodes: make([]*Node, 0, len(s.order))}
	for _, id := range s.order {
		snap.Nodes = append(snap.Nodes, s.nodes[id])
	}
	data, err := yaml.Marshal(snap)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode node snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".csnodes-*.yaml")
	if err != nil {
		return fmt.Errorf("write node snapshot %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write node snapshot %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write node snapshot %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write node snapshot %s: %w", path, err)
	}
	return nil
}

// NewNode implements Provider.
func (s *MemoryStore) NewNode(contentSpecID string, t Type) *Node {
	return &Node{ContentSpecID: contentSpecID, Type: t}
}

// Create implements Provider.
func (s *MemoryStore) Create(_ context.Context, n *Node) (*Node, error) {
	if n.ContentSpecID == "" {
		return nil, errors.New("create node: missing content spec id")
	}
	stored := n.Clone()
	stored.ID = uuid.NewString()
	stored.Parent = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[stored.ID] = stored
	s.order = append(s.order, stored.ID)
	return stored.Clone(), nil
}

// Update implements Provider.
func (s *MemoryStore) Update(_ context.Context, n *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[n.ID]; !ok {
		return fmt.Errorf("update node %s: %w", n.ID, ErrNotFound)
	}
	stored := n.Clone()
	stored.Parent = nil
	s.nodes[n.ID] = stored
	return nil
}

// Delete implements Provider.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return fmt.Errorf("delete node %s: %w", id, ErrNotFound)
	}
	delete(s.nodes, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get implements Provider.
func (s *MemoryStore) Get(_ context.Context, id string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("get node %s: %w", id, ErrNotFound)
	}
	return n.Clone(), nil
}

// ContentSpecNodes implements Provider.
func (s *MemoryStore) ContentSpecNodes(_ context.Context, contentSpecID string) ([]*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Node
	for _, id := range s.order {
		if n := s.nodes[id]; n.ContentSpecID == contentSpecID {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}
