// Package contentspec provides the tree model and parser for the Content
// Specification outline language.
package contentspec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Node is a structural element of the content-spec tree. The set of
// implementations is closed: *Level, *SpecTopic, *Comment, *KeyValueNode,
// *FileList and *CommonContent. Consumers switch on the concrete type.
type Node interface {
	// LineNumber returns the 1-based source line the node was parsed from.
	LineNumber() int
	// ParentLevel returns the level the node is attached to (nil for spec-level nodes).
	ParentLevel() *Level
	setParent(*Level)
}

// nodeBase carries the fields every node shares.
type nodeBase struct {
	Line   int    `json:"line"`
	parent *Level // non-owning back-reference
}

func (b *nodeBase) LineNumber() int       { return b.Line }
func (b *nodeBase) ParentLevel() *Level   { return b.parent }
func (b *nodeBase) setParent(level *Level) { b.parent = level }

// LevelType identifies the kind of a Level.
type LevelType int

const (
	LevelBase LevelType = iota
	LevelPart
	LevelChapter
	LevelSection
	LevelAppendix
	LevelProcess
	LevelInitialContent
)

var levelTypeNames = map[LevelType]string{
	LevelBase:           "Base",
	LevelPart:           "Part",
	LevelChapter:        "Chapter",
	LevelSection:        "Section",
	LevelAppendix:       "Appendix",
	LevelProcess:        "Process",
	LevelInitialContent: "Initial Text",
}

// String returns the level's keyword as written in a content spec ("Chapter", "Initial Text").
func (t LevelType) String() string {
	if s, ok := levelTypeNames[t]; ok {
		return s
	}
	return "Invalid(" + strconv.Itoa(int(t)) + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (t LevelType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// AllowsRelationships reports whether a level of this type may carry
// relationship options. Chapters, Appendixes, Parts and Processes may not.
func (t LevelType) AllowsRelationships() bool {
	switch t {
	case LevelChapter, LevelAppendix, LevelPart, LevelProcess:
		return false
	}
	return true
}

// levelKeywords are the line prefixes that introduce a level, in match order.
var levelKeywords = []LevelType{LevelPart, LevelChapter, LevelSection, LevelAppendix, LevelProcess, LevelInitialContent}

// TopicType distinguishes ordinary topics from front-matter and initial-content topics.
type TopicType int

const (
	TopicNormal TopicType = iota
	// TopicLevel is a front-matter topic declared in a level's own option list.
	TopicLevel
	// TopicInitialContent is a topic nested in an "Initial Text" container.
	TopicInitialContent
)

// MarshalText implements encoding.TextMarshaler.
func (t TopicType) MarshalText() ([]byte, error) {
	switch t {
	case TopicLevel:
		return []byte("LEVEL"), nil
	case TopicInitialContent:
		return []byte("INITIAL_CONTENT"), nil
	}
	return []byte("NORMAL"), nil
}

// RelationshipType is the kind of link a relationship expresses.
type RelationshipType int

const (
	RelReferTo RelationshipType = iota
	RelPrerequisite
	RelLinkList
	RelNext
	RelPrevious
)

// relationshipOrder is the iteration order used whenever relationships are listed.
var relationshipOrder = []RelationshipType{RelReferTo, RelPrerequisite, RelLinkList, RelNext, RelPrevious}

// String returns the canonical relationship name.
func (t RelationshipType) String() string {
	switch t {
	case RelReferTo:
		return "REFER_TO"
	case RelPrerequisite:
		return "PREREQUISITE"
	case RelLinkList:
		return "LINKLIST"
	case RelNext:
		return "NEXT"
	case RelPrevious:
		return "PREV"
	}
	return "Invalid(" + strconv.Itoa(int(t)) + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (t RelationshipType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// IsSequence reports whether the type is NEXT or PREV, which only link topics.
func (t RelationshipType) IsSequence() bool {
	return t == RelNext || t == RelPrevious
}

// Relationship is either a *TopicRelationship or a *TargetRelationship.
type Relationship interface {
	RelType() RelationshipType
	// Source returns the node that declared the relationship.
	Source() Node
	LineNumber() int
}

// TopicRelationship references another topic by its id.
type TopicRelationship struct {
	Type       RelationshipType `json:"type"`
	TopicID    string           `json:"topicId"`
	TopicTitle string           `json:"topicTitle,omitempty"`
	Line       int              `json:"line"`
	From       Node             `json:"-"`
}

func (r *TopicRelationship) RelType() RelationshipType { return r.Type }
func (r *TopicRelationship) Source() Node              { return r.From }
func (r *TopicRelationship) LineNumber() int           { return r.Line }

// TargetRelationship references a node by its declared target id.
type TargetRelationship struct {
	Type     RelationshipType `json:"type"`
	TargetID string           `json:"targetId"`
	Line     int              `json:"line"`
	From     Node             `json:"-"`
}

func (r *TargetRelationship) RelType() RelationshipType { return r.Type }
func (r *TargetRelationship) Source() Node              { return r.From }
func (r *TargetRelationship) LineNumber() int           { return r.Line }

// Relationships groups a node's relationships by type.
type Relationships map[RelationshipType][]Relationship

// Add appends r under its type.
func (rs Relationships) Add(r Relationship) {
	rs[r.RelType()] = append(rs[r.RelType()], r)
}

// All returns every relationship, grouped in REFER_TO, PREREQUISITE,
// LINKLIST, NEXT, PREV order and in declaration order within each group.
func (rs Relationships) All() []Relationship {
	var out []Relationship
	for _, t := range relationshipOrder {
		out = append(out, rs[t]...)
	}
	return out
}

// Level is a container node: the book itself (LevelBase), a part, chapter,
// section, appendix, process, or initial-text block.
type Level struct {
	nodeBase
	Type          LevelType     `json:"type"`
	Title         string        `json:"title,omitempty"` // empty when no title text was given
	TargetID      string        `json:"targetId,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	Writer        string        `json:"writer,omitempty"`
	SourceURLs    []string      `json:"sourceUrls,omitempty"`
	FrontMatter   []*SpecTopic  `json:"frontMatter,omitempty"`
	Relationships Relationships `json:"relationships,omitempty"`
	Children      []Node        `json:"children"`
}

// NewLevel returns an empty level of the given type.
func NewLevel(lineNum int, t LevelType) *Level {
	return &Level{
		nodeBase:      nodeBase{Line: lineNum},
		Type:          t,
		Relationships: Relationships{},
		Children:      []Node{},
	}
}

// AppendChild attaches n as the last child of l.
func (l *Level) AppendChild(n Node) {
	n.setParent(l)
	l.Children = append(l.Children, n)
}

// ChildLevels returns the direct child levels of l.
func (l *Level) ChildLevels() []*Level {
	var out []*Level
	for _, c := range l.Children {
		if lv, ok := c.(*Level); ok {
			out = append(out, lv)
		}
	}
	return out
}

// ChildTopics returns the direct child topics of l (front matter excluded).
func (l *Level) ChildTopics() []*SpecTopic {
	var out []*SpecTopic
	for _, c := range l.Children {
		if t, ok := c.(*SpecTopic); ok {
			out = append(out, t)
		}
	}
	return out
}

// HasContent reports whether l holds at least one topic or child level,
// counting front-matter topics.
func (l *Level) HasContent() bool {
	if len(l.FrontMatter) > 0 {
		return true
	}
	for _, c := range l.Children {
		switch c.(type) {
		case *Level, *SpecTopic:
			return true
		}
	}
	return false
}

// MarshalJSON adds a "kind" discriminator.
func (l *Level) MarshalJSON() ([]byte, error) {
	type alias Level
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{"level", (*alias)(l)})
}

// SpecTopic is a reference to an existing topic, or a declaration of a new,
// duplicated or cloned one.
type SpecTopic struct {
	nodeBase
	ID            string        `json:"id"`
	UniqueID      string        `json:"uniqueId"` // "L<line>-<id>"
	Title         string        `json:"title,omitempty"`
	TopicType     TopicType     `json:"topicType"`
	Type          string        `json:"type,omitempty"` // declared topic type (Type=)
	Revision      *int          `json:"revision,omitempty"`
	TargetID      string        `json:"targetId,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	Writer        string        `json:"writer,omitempty"`
	SourceURLs    []string      `json:"sourceUrls,omitempty"`
	Relationships Relationships `json:"relationships,omitempty"`
}

// NewSpecTopic returns a topic with the given id and synthesized unique id.
func NewSpecTopic(lineNum int, id string) *SpecTopic {
	return &SpecTopic{
		nodeBase:      nodeBase{Line: lineNum},
		ID:            id,
		UniqueID:      fmt.Sprintf("L%d-%s", lineNum, id),
		Relationships: Relationships{},
	}
}

// IsExisting reports whether the topic references an already-stored topic.
func (t *SpecTopic) IsExisting() bool {
	return existingIDRE.MatchString(t.ID)
}

// IsNew reports whether the topic is a new topic to be created ("N", "N1").
func (t *SpecTopic) IsNew() bool {
	return newIDRE.MatchString(t.ID)
}

// IsDuplicate reports whether the topic re-uses a new topic declared elsewhere ("X1").
func (t *SpecTopic) IsDuplicate() bool {
	return duplicateIDRE.MatchString(t.ID)
}

// IsClone reports whether the topic clones an existing topic into a new one ("XC12").
func (t *SpecTopic) IsClone() bool {
	return cloneIDRE.MatchString(t.ID)
}

// DBID returns the numeric database id of an existing topic, or 0.
func (t *SpecTopic) DBID() int {
	if !t.IsExisting() {
		return 0
	}
	n, err := strconv.Atoi(t.ID)
	if err != nil {
		return 0
	}
	return n
}

// MarshalJSON adds a "kind" discriminator.
func (t *SpecTopic) MarshalJSON() ([]byte, error) {
	type alias SpecTopic
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{"topic", (*alias)(t)})
}

// Comment is a "# text" line.
type Comment struct {
	nodeBase
	Text string `json:"text"`
}

// Title returns the comment as stored: "# " + text.
func (c *Comment) Title() string {
	return "# " + c.Text
}

// MarshalJSON adds a "kind" discriminator.
func (c *Comment) MarshalJSON() ([]byte, error) {
	type alias Comment
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{"comment", (*alias)(c)})
}

// KeyValueNode is a "Key = Value" metadata line.
type KeyValueNode struct {
	nodeBase
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MarshalJSON adds a "kind" discriminator.
func (kv *KeyValueNode) MarshalJSON() ([]byte, error) {
	type alias KeyValueNode
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{"metadata", (*alias)(kv)})
}

// FileListKey is the metadata key that introduces a FileList.
const FileListKey = "Additional Files"

// File is one entry of a FileList.
type File struct {
	Title    string `json:"title"`
	ID       int    `json:"id"`
	Revision *int   `json:"revision,omitempty"`
}

// FileList is the "Additional Files = [...]" metadata line.
type FileList struct {
	nodeBase
	Files []File `json:"files"`
}

// Value renders the files in content-spec syntax, e.g. "[a.png [1], b.png [2, rev: 5]]".
func (fl *FileList) Value() string {
	parts := make([]string, len(fl.Files))
	for i, f := range fl.Files {
		title := escapeText(f.Title)
		if f.Revision != nil {
			parts[i] = fmt.Sprintf("%s [%d, rev: %d]", title, f.ID, *f.Revision)
		} else {
			parts[i] = fmt.Sprintf("%s [%d]", title, f.ID)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MarshalJSON adds a "kind" discriminator.
func (fl *FileList) MarshalJSON() ([]byte, error) {
	type alias FileList
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{"files", (*alias)(fl)})
}

// RecognizedCommonContent lists the common-content file names the publishing
// toolchain knows how to supply. Matching is case-sensitive.
var RecognizedCommonContent = []string{
	"Conventions.xml",
	"Feedback.xml",
	"Legal_Notice.xml",
}

// CommonContent is a "Name [Common Content]" line.
type CommonContent struct {
	nodeBase
	Name string `json:"name"`
}

// Recognized reports whether Name is one of RecognizedCommonContent.
func (cc *CommonContent) Recognized() bool {
	for _, name := range RecognizedCommonContent {
		if cc.Name == name {
			return true
		}
	}
	return false
}

// MarshalJSON adds a "kind" discriminator.
func (cc *CommonContent) MarshalJSON() ([]byte, error) {
	type alias CommonContent
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{"commonContent", (*alias)(cc)})
}

// BookType is the publication type declared by the "Type" metadata key.
type BookType int

const (
	BookTypeInvalid BookType = iota
	BookTypeBook
	BookTypeArticle
	BookTypeBookDraft
	BookTypeArticleDraft
)

// ParseBookType maps a metadata value to a BookType. Unknown values yield BookTypeInvalid.
func ParseBookType(s string) BookType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "book":
		return BookTypeBook
	case "article":
		return BookTypeArticle
	case "book-draft":
		return BookTypeBookDraft
	case "article-draft":
		return BookTypeArticleDraft
	}
	return BookTypeInvalid
}

// String returns the metadata spelling of the type.
func (t BookType) String() string {
	switch t {
	case BookTypeBook:
		return "Book"
	case BookTypeArticle:
		return "Article"
	case BookTypeBookDraft:
		return "Book-Draft"
	case BookTypeArticleDraft:
		return "Article-Draft"
	}
	return "Invalid"
}

// MarshalText implements encoding.TextMarshaler.
func (t BookType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ContentSpec is the structured output of parsing a content specification.
type ContentSpec struct {
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title,omitempty"`
	Subtitle        string   `json:"subtitle,omitempty"`
	Product         string   `json:"product,omitempty"`
	Version         string   `json:"version,omitempty"`
	Edition         string   `json:"edition,omitempty"`
	BookVersion     string   `json:"bookVersion,omitempty"`
	Pubsnumber      string   `json:"pubsnumber,omitempty"`
	DTD             string   `json:"dtd,omitempty"`
	CopyrightHolder string   `json:"copyrightHolder,omitempty"`
	CopyrightYear   string   `json:"copyrightYear,omitempty"`
	Brand           string   `json:"brand,omitempty"`
	Abstract        string   `json:"abstract,omitempty"`
	BookType        BookType `json:"bookType"`

	// Nodes holds the metadata, comment and file-list nodes that precede the
	// first content line, in source order.
	Nodes []Node `json:"nodes"`
	// Base is the root level; it is always of type LevelBase.
	Base *Level `json:"base"`

	// TargetIndex maps each declared target id to the node declaring it.
	TargetIndex map[string]Node `json:"-"`
	// TopicIndex maps each topic id to every topic carrying it, in source order.
	TopicIndex map[string][]*SpecTopic `json:"-"`
}

// TopLevelNodes returns the spec-level nodes followed by the base level's children.
// These share the top (parentless) scope when the tree is persisted.
func (s *ContentSpec) TopLevelNodes() []Node {
	out := make([]Node, 0, len(s.Nodes)+len(s.Base.Children))
	out = append(out, s.Nodes...)
	return append(out, s.Base.Children...)
}

// Topics returns every topic in the tree, depth-first, including front matter.
func (s *ContentSpec) Topics() []*SpecTopic {
	var out []*SpecTopic
	var walk func(*Level)
	walk = func(l *Level) {
		out = append(out, l.FrontMatter...)
		for _, c := range l.Children {
			switch n := c.(type) {
			case *SpecTopic:
				out = append(out, n)
			case *Level:
				walk(n)
			}
		}
	}
	walk(s.Base)
	return out
}
