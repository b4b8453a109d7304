// Package csnode defines the persisted form of a content specification: a
// flat list of nodes linked to their parent and to their previous and next
// siblings, and the Provider contract that stores them.
package csnode

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a node id is not present in a store.
var ErrNotFound = errors.New("node not found")

// Type tags the kind of content a persisted node holds.
type Type int

const (
	TypeTopic Type = iota + 1
	TypeSection
	TypeChapter
	TypeAppendix
	TypePart
	TypeProcess
	TypeMetaData
	TypeComment
	TypeInnerTopic
	TypeInitialContent
	TypeInitialContentTopic
	TypeFileList
	TypeCommonContent
)

var typeNames = map[Type]string{
	TypeTopic:               "Topic",
	TypeSection:             "Section",
	TypeChapter:             "Chapter",
	TypeAppendix:            "Appendix",
	TypePart:                "Part",
	TypeProcess:             "Process",
	TypeMetaData:            "MetaData",
	TypeComment:             "Comment",
	TypeInnerTopic:          "InnerTopic",
	TypeInitialContent:      "InitialContent",
	TypeInitialContentTopic: "InitialContentTopic",
	TypeFileList:            "FileList",
	TypeCommonContent:       "CommonContent",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// IsLevel reports whether nodes of type t may have children.
func (t Type) IsLevel() bool {
	switch t {
	case TypeSection, TypeChapter, TypeAppendix, TypePart, TypeProcess, TypeInitialContent:
		return true
	}
	return false
}

// Field names a mutable attribute of a Node.
type Field string

const (
	FieldTitle          Field = "title"
	FieldAdditionalText Field = "additionalText"
	FieldParent         Field = "parent"
	FieldTargetID       Field = "targetId"
	FieldEntityRevision Field = "entityRevision"
	FieldNext           Field = "next"
	FieldPrevious       Field = "previous"
)

// Node is one persisted content-spec node.
type Node struct {
	ID             string `yaml:"id"`
	ContentSpecID  string `yaml:"contentSpec"`
	Type           Type   `yaml:"type"`
	ParentID       string `yaml:"parent,omitempty"`
	Title          string `yaml:"title,omitempty"`
	AdditionalText string `yaml:"additionalText,omitempty"`
	TargetID       string `yaml:"targetId,omitempty"`
	EntityID       int    `yaml:"entityId,omitempty"` // 0 when the node references no topic
	EntityRevision *int   `yaml:"entityRevision,omitempty"`
	NextID         string `yaml:"next,omitempty"`
	PreviousID     string `yaml:"previous,omitempty"`

	// Parent is resolved in memory only; it is set for nodes created in the
	// same run whose parent has no id yet.
	Parent *Node `yaml:"-"`
}

// Clone returns a copy of n that shares no mutable state with it.
func (n *Node) Clone() *Node {
	c := *n
	if n.EntityRevision != nil {
		rev := *n.EntityRevision
		c.EntityRevision = &rev
	}
	return &c
}

// Provider stores persisted nodes. Implementations must return copies so that
// callers can modify returned nodes freely before calling Update.
type Provider interface {
	// NewNode returns an unsaved node owned by contentSpecID.
	NewNode(contentSpecID string, t Type) *Node
	// Create assigns n an id, stores it, and returns the stored copy.
	Create(ctx context.Context, n *Node) (*Node, error)
	// Update overwrites the stored node with n.ID.
	Update(ctx context.Context, n *Node) error
	// Delete removes the node with id.
	Delete(ctx context.Context, id string) error
	// Get returns the node with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Node, error)
	// ContentSpecNodes returns every node of the content spec in creation order.
	ContentSpecNodes(ctx context.Context, contentSpecID string) ([]*Node, error)
}

// GroupByParent buckets nodes by ParentID ("" for top-level nodes), each
// bucket ordered by the sibling links.
func GroupByParent(nodes []*Node) map[string][]*Node {
	buckets := make(map[string][]*Node)
	for _, n := range nodes {
		buckets[n.ParentID] = append(buckets[n.ParentID], n)
	}
	for parent, siblings := range buckets {
		buckets[parent] = OrderedChildren(siblings)
	}
	return buckets
}

// OrderedChildren orders siblings by following NextID from the head (the
// node whose PreviousID is empty or outside the set). Nodes that the chain
// does not reach are appended in their input order.
func OrderedChildren(siblings []*Node) []*Node {
	byID := make(map[string]*Node, len(siblings))
	for _, n := range siblings {
		byID[n.ID] = n
	}

	out := make([]*Node, 0, len(siblings))
	seen := make(map[string]bool, len(siblings))
	for _, head := range siblings {
		if _, linked := byID[head.PreviousID]; linked || seen[head.ID] {
			continue
		}
		for n := head; n != nil && !seen[n.ID]; n = byID[n.NextID] {
			seen[n.ID] = true
			out = append(out, n)
		}
	}
	for _, n := range siblings {
		if !seen[n.ID] {
			seen[n.ID] = true
			out = append(out, n)
		}
	}
	return out
}
