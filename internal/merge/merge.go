// Package merge reconciles a parsed content specification with the nodes
// previously persisted for it, producing the nodes to add, update, and remove.
//
// Matching is greedy: each parsed node claims the first unclaimed persisted
// sibling that agrees on type and matching key, scanning left to right. A
// later parsed node never steals a node claimed by an earlier one.
package merge

import (
	"go.uber.org/zap"

	"github.com/eykd/csprocessor-go/internal/contentspec"
	"github.com/eykd/csprocessor-go/internal/csnode"
)

// IdentityMap records which persisted node each parsed node was matched to or
// created as. Passing the same map to a later merge of the same tree lets
// nodes with no natural key (new topics, edited comments) keep their identity.
type IdentityMap map[contentspec.Node]*csnode.Node

// Update is a matched node whose fields changed.
type Update struct {
	Node   *csnode.Node
	Fields []csnode.Field
}

// Scope is the desired child order beneath one parent. Parent is nil for the
// top-level scope.
type Scope struct {
	Parent   *csnode.Node
	Children []*csnode.Node
}

// Result is the outcome of a merge. Added is in pre-order, so every new
// parent precedes its new children. Removed lists each parent before its
// descendants.
type Result struct {
	Added   []*csnode.Node
	Updated []Update
	Removed []*csnode.Node
	Scopes  []Scope
}

// Empty reports whether the merge found nothing to add, update or remove.
func (r *Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Updated) == 0 && len(r.Removed) == 0
}

// Merger matches parsed nodes against one content spec's persisted nodes.
// It never modifies the persisted nodes it is given; matched nodes are cloned
// before any field is changed.
type Merger struct {
	specID    string
	newNode   NodeFactory
	ids       IdentityMap
	logger    *zap.Logger
	persisted []*csnode.Node
	children  map[string][]*csnode.Node
	claimed   map[*csnode.Node]bool
	removed   map[*csnode.Node]bool
}

// NodeFactory builds an unsaved node of type t owned by contentSpecID.
// csnode.Provider.NewNode satisfies it.
type NodeFactory func(contentSpecID string, t csnode.Type) *csnode.Node

func plainNode(contentSpecID string, t csnode.Type) *csnode.Node {
	return &csnode.Node{ContentSpecID: contentSpecID, Type: t}
}

// NewMerger returns a Merger for the content spec specID whose stored nodes
// are persisted. A nil ids starts a fresh identity map; a nil logger logs nothing.
func NewMerger(specID string, persisted []*csnode.Node, ids IdentityMap, logger *zap.Logger) *Merger {
	if ids == nil {
		ids = make(IdentityMap)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{
		specID:    specID,
		newNode:   plainNode,
		ids:       ids,
		logger:    logger,
		persisted: persisted,
		children:  csnode.GroupByParent(persisted),
		claimed:   make(map[*csnode.Node]bool),
		removed:   make(map[*csnode.Node]bool),
	}
}

// WithNodeFactory makes the merger build new nodes with f, typically the
// target provider's NewNode.
func (m *Merger) WithNodeFactory(f NodeFactory) *Merger {
	if f != nil {
		m.newNode = f
	}
	return m
}

// Identities returns the identity map populated by this merger.
func (m *Merger) Identities() IdentityMap {
	return m.ids
}

// MergeContentSpec merges the whole spec: its top-level nodes against the
// persisted nodes without a parent, recursing into levels. Persisted nodes
// that hang off a parent no longer stored are removed as well.
func (m *Merger) MergeContentSpec(spec *contentspec.ContentSpec) *Result {
	r := m.MergeChildren(spec.TopLevelNodes(), m.children[""], nil)

	for _, n := range m.persisted {
		if !m.claimed[n] && !m.removed[n] {
			m.remove(r, n)
		}
	}

	m.logger.Info("merged content spec",
		zap.String("contentSpec", m.specID),
		zap.Int("added", len(r.Added)),
		zap.Int("updated", len(r.Updated)),
		zap.Int("removed", len(r.Removed)),
	)
	return r
}

// MergeChildren merges parsed against persistedChildren, the stored children
// of parent (nil for the top-level scope), recursing into parsed levels.
func (m *Merger) MergeChildren(parsed []contentspec.Node, persistedChildren []*csnode.Node, parent *csnode.Node) *Result {
	r := &Result{}
	m.mergeScope(r, parsed, persistedChildren, parent)
	return r
}

func (m *Merger) mergeScope(r *Result, parsed []contentspec.Node, candidates []*csnode.Node, parent *csnode.Node) {
	scope := Scope{Parent: parent, Children: make([]*csnode.Node, 0, len(parsed))}

	for _, child := range parsed {
		want := m.desired(child, parent)

		var node *csnode.Node
		match := m.find(child, want, candidates)
		if match != nil {
			m.claimed[match] = true
			node = match.Clone()
			node.Parent = parent
			if fields := applyChanges(node, want); len(fields) > 0 {
				r.Updated = append(r.Updated, Update{Node: node, Fields: fields})
				m.logger.Debug("claimed node with changes",
					zap.String("id", node.ID), zap.Stringer("type", node.Type), zap.Any("fields", fields))
			} else {
				m.logger.Debug("claimed node", zap.String("id", node.ID), zap.Stringer("type", node.Type))
			}
		} else {
			node = want
			r.Added = append(r.Added, node)
			m.logger.Debug("new node", zap.Stringer("type", node.Type), zap.String("title", node.Title))
		}

		m.ids[child] = node
		scope.Children = append(scope.Children, node)

		if level, ok := child.(*contentspec.Level); ok {
			var grandchildren []*csnode.Node
			if match != nil {
				grandchildren = m.children[match.ID]
			}
			m.mergeScope(r, levelChildren(level), grandchildren, node)
		}
	}

	for _, c := range candidates {
		if !m.claimed[c] && !m.removed[c] {
			m.remove(r, c)
		}
	}
	r.Scopes = append(r.Scopes, scope)
}

// find returns the first unclaimed candidate for child: the node recorded in
// the identity map if it is among the candidates, else the first candidate
// whose type and matching key agree.
func (m *Merger) find(child contentspec.Node, want *csnode.Node, candidates []*csnode.Node) *csnode.Node {
	if prev, ok := m.ids[child]; ok && prev.ID != "" {
		for _, c := range candidates {
			if !m.claimed[c] && c.ID == prev.ID && c.Type == want.Type {
				return c
			}
		}
	}

	for _, c := range candidates {
		if m.claimed[c] || m.removed[c] || c.Type != want.Type {
			continue
		}
		if keysMatch(child, want, c) {
			return c
		}
	}
	return nil
}

// keysMatch compares the type-specific matching key of a parsed node's
// desired form with a persisted candidate of the same type.
func keysMatch(child contentspec.Node, want, c *csnode.Node) bool {
	switch child.(type) {
	case *contentspec.SpecTopic:
		// Only topics that already exist in the database carry a durable key.
		if want.EntityID == 0 {
			return false
		}
		return c.EntityID == want.EntityID && sameRevision(c.EntityRevision, want.EntityRevision)
	case *contentspec.Comment, *contentspec.KeyValueNode, *contentspec.FileList,
		*contentspec.CommonContent, *contentspec.Level:
		return c.Title == want.Title
	}
	return false
}

// remove marks n and its stored descendants for removal.
func (m *Merger) remove(r *Result, n *csnode.Node) {
	m.removed[n] = true
	r.Removed = append(r.Removed, n)
	m.logger.Debug("removing node", zap.String("id", n.ID), zap.Stringer("type", n.Type))
	for _, c := range m.children[n.ID] {
		if !m.claimed[c] && !m.removed[c] {
			m.remove(r, c)
		}
	}
}

// desired builds the persisted form child should have beneath parent.
func (m *Merger) desired(child contentspec.Node, parent *csnode.Node) *csnode.Node {
	n := m.newNode(m.specID, nodeType(child))
	n.Parent = parent
	if parent != nil {
		n.ParentID = parent.ID
	}

	switch c := child.(type) {
	case *contentspec.Comment:
		n.Title = c.Title()
	case *contentspec.KeyValueNode:
		n.Title = c.Key
		n.AdditionalText = c.Value
	case *contentspec.FileList:
		n.Title = contentspec.FileListKey
		n.AdditionalText = c.Value()
	case *contentspec.CommonContent:
		n.Title = c.Name
	case *contentspec.Level:
		n.Title = c.Title
		n.TargetID = c.TargetID
	case *contentspec.SpecTopic:
		n.Title = c.Title
		n.TargetID = c.TargetID
		n.EntityID = c.DBID()
		if c.Revision != nil {
			rev := *c.Revision
			n.EntityRevision = &rev
		}
	}
	return n
}

func nodeType(child contentspec.Node) csnode.Type {
	switch c := child.(type) {
	case *contentspec.Comment:
		return csnode.TypeComment
	case *contentspec.KeyValueNode:
		return csnode.TypeMetaData
	case *contentspec.FileList:
		return csnode.TypeFileList
	case *contentspec.CommonContent:
		return csnode.TypeCommonContent
	case *contentspec.Level:
		return levelNodeType(c.Type)
	case *contentspec.SpecTopic:
		return topicNodeType(c.TopicType)
	}
	return 0
}

func levelNodeType(t contentspec.LevelType) csnode.Type {
	switch t {
	case contentspec.LevelPart:
		return csnode.TypePart
	case contentspec.LevelChapter:
		return csnode.TypeChapter
	case contentspec.LevelSection:
		return csnode.TypeSection
	case contentspec.LevelAppendix:
		return csnode.TypeAppendix
	case contentspec.LevelProcess:
		return csnode.TypeProcess
	case contentspec.LevelInitialContent:
		return csnode.TypeInitialContent
	}
	return csnode.TypeChapter
}

func topicNodeType(t contentspec.TopicType) csnode.Type {
	switch t {
	case contentspec.TopicLevel:
		return csnode.TypeInnerTopic
	case contentspec.TopicInitialContent:
		return csnode.TypeInitialContentTopic
	}
	return csnode.TypeTopic
}

// levelChildren lists a level's front-matter topics ahead of its children.
func levelChildren(level *contentspec.Level) []contentspec.Node {
	out := make([]contentspec.Node, 0, len(level.FrontMatter)+len(level.Children))
	for _, t := range level.FrontMatter {
		out = append(out, t)
	}
	return append(out, level.Children...)
}

// applyChanges copies want's mutable fields onto n and returns the fields
// that actually differed.
func applyChanges(n, want *csnode.Node) []csnode.Field {
	var fields []csnode.Field
	if n.Title != want.Title {
		n.Title = want.Title
		fields = append(fields, csnode.FieldTitle)
	}
	if n.AdditionalText != want.AdditionalText {
		n.AdditionalText = want.AdditionalText
		fields = append(fields, csnode.FieldAdditionalText)
	}
	if n.ParentID != want.ParentID {
		n.ParentID = want.ParentID
		fields = append(fields, csnode.FieldParent)
	}
	if n.TargetID != want.TargetID {
		n.TargetID = want.TargetID
		fields = append(fields, csnode.FieldTargetID)
	}
	if !sameRevision(n.EntityRevision, want.EntityRevision) {
		n.EntityRevision = want.EntityRevision
		fields = append(fields, csnode.FieldEntityRevision)
	}
	return fields
}

func sameRevision(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
