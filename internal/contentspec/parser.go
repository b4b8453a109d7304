package contentspec

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/eykd/csprocessor-go/internal/report"
)

var metadataRE = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 _-]*?)\s*=\s*(.*)$`)

// commonContentMarker is the option text that marks a common-content line.
const commonContentMarker = "Common Content"

// indexes are the spec-wide lookup tables built during a single parse.
type indexes struct {
	targets map[string]Node
	topics  map[string][]*SpecTopic
}

func newIndexes() *indexes {
	return &indexes{
		targets: make(map[string]Node),
		topics:  make(map[string][]*SpecTopic),
	}
}

// Parser turns content-spec source into a ContentSpec tree. A Parser carries
// the indexes for one specification; use a fresh Parser (or call Parse, which
// resets them) per specification.
type Parser struct {
	idx *indexes
	log *report.Log
}

// NewParser returns a Parser that records warnings in log. A nil log is
// replaced with a discarding one.
func NewParser(log *report.Log) *Parser {
	if log == nil {
		log = report.NewLog(nil)
	}
	return &Parser{idx: newIndexes(), log: log}
}

// checkTarget fails if id has already been declared anywhere in the spec.
func (p *Parser) checkTarget(lineNum int, id string) error {
	if _, exists := p.idx.targets[id]; exists {
		return newParseError(lineNum, report.CodeDuplicateTargetID, "Target ID is duplicated. Target ID's must be unique.")
	}
	return nil
}

// registerTopic records topic under its id.
func (p *Parser) registerTopic(topic *SpecTopic) {
	p.idx.topics[topic.ID] = append(p.idx.topics[topic.ID], topic)
}

// stackEntry is an open level and the indentation of the line that opened it.
type stackEntry struct {
	indent int
	level  *Level
}

// Parse parses src into a ContentSpec. Every line-scoped failure is recorded
// in the log and returned joined; a non-nil error means the spec must not be
// validated or persisted, but the returned tree is still usable for reporting.
func (p *Parser) Parse(src []byte) (*ContentSpec, error) {
	p.idx = newIndexes()

	spec := &ContentSpec{
		Nodes:    []Node{},
		Base:     NewLevel(0, LevelBase),
		BookType: BookTypeBook,
	}

	if !utf8.Valid(src) {
		return spec, errors.New("content specification contains invalid UTF-8 content")
	}

	var errs []error
	fail := func(err error) {
		var pe *ParseError
		if errors.As(err, &pe) {
			p.log.Append(pe.Diagnostic())
		}
		errs = append(errs, err)
	}

	stack := []stackEntry{{indent: -1, level: spec.Base}}
	seenKeys := make(map[string]bool)
	inPreamble := true

	for i, raw := range splitLines(src) {
		lineNum := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		indent := countLeadingWhitespace(raw)

		// Comments attach to the enclosing level without closing any open levels.
		if strings.HasPrefix(line, "#") {
			c := &Comment{nodeBase: nodeBase{Line: lineNum}, Text: strings.TrimSpace(line[1:])}
			if inPreamble {
				spec.Nodes = append(spec.Nodes, c)
			} else {
				enclosingLevel(stack, indent).AppendChild(c)
			}
			continue
		}

		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].level

		if levelType, ok := levelTypeForLine(line); ok {
			inPreamble = false
			level, err := p.processLevelLine(lineNum, levelType, line)
			if err != nil {
				fail(err)
			}
			if err := checkNesting(lineNum, parent, levelType); err != nil {
				fail(err)
			}
			parent.AppendChild(level)
			stack = append(stack, stackEntry{indent: indent, level: level})
			continue
		}

		if m := metadataRE.FindStringSubmatch(line); m != nil && isMetadataLine(inPreamble, m[1], line) {
			if !inPreamble {
				fail(newParseError(lineNum, report.CodeInvalidMetadata, "Metadata must be defined before any levels or topics."))
				continue
			}
			node, err := p.processMetadata(lineNum, spec, m[1], m[2], seenKeys)
			if err != nil {
				fail(err)
				continue
			}
			spec.Nodes = append(spec.Nodes, node)
			continue
		}

		inPreamble = false

		if name, ok := commonContentName(line); ok {
			parent.AppendChild(&CommonContent{nodeBase: nodeBase{Line: lineNum}, Name: name})
			continue
		}

		topic, err := p.ProcessTopic(line, lineNum)
		if err != nil {
			fail(err)
			continue
		}
		if parent.Type == LevelInitialContent {
			topic.TopicType = TopicInitialContent
		}
		parent.AppendChild(topic)
	}

	spec.TargetIndex = p.idx.targets
	spec.TopicIndex = p.idx.topics

	return spec, errors.Join(errs...)
}

// isMetadataLine decides whether a line shaped like "Key = Value" is metadata.
// After the preamble a bracketed line is a topic whose title happens to hold '='.
func isMetadataLine(inPreamble bool, key, line string) bool {
	if inPreamble {
		return true
	}
	return !strings.Contains(line, "[") || strings.EqualFold(strings.TrimSpace(key), FileListKey)
}

// processLevelLine parses a level line. On failure it returns an empty
// placeholder level of the requested type alongside the error, so the caller
// can keep nesting the lines that follow.
func (p *Parser) processLevelLine(lineNum int, levelType LevelType, line string) (*Level, error) {
	level, err := p.ParseLevel(lineNum, levelType, line)
	if err != nil {
		return NewLevel(lineNum, levelType), err
	}
	return level, nil
}

// enclosingLevel returns the innermost open level whose line is indented less than indent.
func enclosingLevel(stack []stackEntry, indent int) *Level {
	for i := len(stack) - 1; i > 0; i-- {
		if stack[i].indent < indent {
			return stack[i].level
		}
	}
	return stack[0].level
}

// levelTypeForLine reports which level keyword, if any, line begins with.
func levelTypeForLine(line string) (LevelType, bool) {
	for _, t := range levelKeywords {
		keyword := t.String() + ":"
		if len(line) >= len(keyword) && strings.EqualFold(line[:len(keyword)], keyword) {
			return t, true
		}
	}
	return LevelBase, false
}

// checkNesting enforces which level types may contain which.
func checkNesting(lineNum int, parent *Level, child LevelType) error {
	allowed := false
	switch child {
	case LevelPart:
		allowed = parent.Type == LevelBase
	case LevelChapter, LevelAppendix:
		allowed = parent.Type == LevelBase || parent.Type == LevelPart
	case LevelSection:
		allowed = parent.Type == LevelChapter || parent.Type == LevelAppendix || parent.Type == LevelSection
	case LevelProcess:
		allowed = parent.Type == LevelBase || parent.Type == LevelChapter ||
			parent.Type == LevelAppendix || parent.Type == LevelSection
	case LevelInitialContent:
		allowed = parent.Type != LevelBase && parent.Type != LevelInitialContent
	}
	if allowed {
		return nil
	}
	where := "the base of the book"
	if parent.Type != LevelBase {
		where = "a " + parent.Type.String()
	}
	return newParseError(lineNum, report.CodeInvalidNesting, "Invalid %s. A %s can't be placed inside %s.", child, child, where)
}

// commonContentName reports whether line is a "Name [Common Content]" line.
func commonContentName(line string) (string, bool) {
	name, options, hasOptions, err := splitLine(line)
	if err != nil || !hasOptions {
		return "", false
	}
	if !strings.EqualFold(strings.TrimSpace(options), commonContentMarker) {
		return "", false
	}
	return name, true
}

// metadataSetters maps lower-cased metadata keys to the ContentSpec field they populate.
var metadataSetters = map[string]func(*ContentSpec, string){
	"id":               func(s *ContentSpec, v string) { s.ID = v },
	"title":            func(s *ContentSpec, v string) { s.Title = v },
	"subtitle":         func(s *ContentSpec, v string) { s.Subtitle = v },
	"product":          func(s *ContentSpec, v string) { s.Product = v },
	"version":          func(s *ContentSpec, v string) { s.Version = v },
	"edition":          func(s *ContentSpec, v string) { s.Edition = v },
	"book version":     func(s *ContentSpec, v string) { s.BookVersion = v },
	"pubsnumber":       func(s *ContentSpec, v string) { s.Pubsnumber = v },
	"dtd":              func(s *ContentSpec, v string) { s.DTD = v },
	"format":           func(s *ContentSpec, v string) { s.DTD = v },
	"copyright holder": func(s *ContentSpec, v string) { s.CopyrightHolder = v },
	"copyright year":   func(s *ContentSpec, v string) { s.CopyrightYear = v },
	"brand":            func(s *ContentSpec, v string) { s.Brand = v },
	"abstract":         func(s *ContentSpec, v string) { s.Abstract = v },
	"type":             func(s *ContentSpec, v string) { s.BookType = ParseBookType(v) },
}

// processMetadata handles a "Key = Value" line, returning a KeyValueNode or,
// for "Additional Files", a FileList.
func (p *Parser) processMetadata(lineNum int, spec *ContentSpec, key, value string, seen map[string]bool) (Node, error) {
	canonical := strings.ToLower(strings.Join(strings.Fields(key), " "))
	if canonical == "format" {
		canonical = "dtd"
	}
	if seen[canonical] {
		return nil, newParseError(lineNum, report.CodeInvalidMetadata, "Duplicate metadata key %q.", key)
	}
	seen[canonical] = true

	if canonical == strings.ToLower(FileListKey) {
		return p.processFileList(lineNum, value)
	}

	if set, ok := metadataSetters[canonical]; ok {
		set(spec, value)
	} else {
		p.log.Warnf(lineNum, report.CodeUnknownMetadataKey, "Unrecognized metadata key %q.", key)
	}
	return &KeyValueNode{nodeBase: nodeBase{Line: lineNum}, Key: key, Value: value}, nil
}

// processFileList parses "[title [id], title [id, rev: n], ...]".
func (p *Parser) processFileList(lineNum int, value string) (*FileList, error) {
	prefix, options, hasOptions, err := splitLine(value)
	if err != nil || !hasOptions || prefix != "" {
		return nil, newParseError(lineNum, report.CodeInvalidMetadata,
			"Invalid %s format. Files must be listed as \"[Title [ID], ...]\".", FileListKey)
	}

	fl := &FileList{nodeBase: nodeBase{Line: lineNum}, Files: []File{}}
	if strings.TrimSpace(options) == "" {
		return fl, nil
	}
	for _, entry := range splitEntries(options) {
		f, err := parseFileEntry(lineNum, entry)
		if err != nil {
			return nil, err
		}
		fl.Files = append(fl.Files, f)
	}
	return fl, nil
}

// parseFileEntry parses one "Title [ID, rev: n]" entry of a file list.
func parseFileEntry(lineNum int, entry string) (File, error) {
	title, options, hasOptions, err := splitLine(entry)
	if err != nil || !hasOptions || title == "" {
		return File{}, newParseError(lineNum, report.CodeInvalidMetadata, "Invalid file %q. Files must be written as \"Title [ID]\".", unescape(entry))
	}
	f := File{Title: title}
	for _, part := range splitEntries(options) {
		if m := revisionRE.FindStringSubmatch(part); m != nil {
			rev, _ := strconv.Atoi(m[1])
			f.Revision = &rev
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || f.ID != 0 {
			return File{}, newParseError(lineNum, report.CodeInvalidMetadata, "Invalid file %q. Files must be written as \"Title [ID]\".", unescape(entry))
		}
		f.ID = id
	}
	if f.ID == 0 {
		return File{}, newParseError(lineNum, report.CodeInvalidMetadata, "Invalid file %q. Files must be written as \"Title [ID]\".", unescape(entry))
	}
	return f, nil
}
