package contentspec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/eykd/csprocessor-go/internal/report"
)

var (
	existingIDRE  = regexp.MustCompile(`^\d+$`)
	newIDRE       = regexp.MustCompile(`^N\d*$`)
	duplicateIDRE = regexp.MustCompile(`^X\d+$`)
	cloneIDRE     = regexp.MustCompile(`^XC\d+$`)
	topicIDRE     = regexp.MustCompile(`^(\d+|N\d*|X\d+|XC\d+)$`)
	targetIDRE    = regexp.MustCompile(`^T\d+$`)
	optionKeyRE   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 _-]*$`)
	revisionRE    = regexp.MustCompile(`(?i)^rev\s*:\s*(\d+)$`)
	relationRE    = regexp.MustCompile(`(?i)^(R|P|L|NEXT|PREV|Refer-to|Prerequisite|Link-List)\s*:\s*(.*)$`)
)

// relationshipPrefixes maps lower-cased option prefixes to relationship types.
var relationshipPrefixes = map[string]RelationshipType{
	"r":            RelReferTo,
	"refer-to":     RelReferTo,
	"p":            RelPrerequisite,
	"prerequisite": RelPrerequisite,
	"l":            RelLinkList,
	"link-list":    RelLinkList,
	"next":         RelNext,
	"prev":         RelPrevious,
}

// ParseError is a line-scoped, fatal parsing failure.
type ParseError struct {
	Line    int
	Code    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Diagnostic converts e to a report.Diagnostic.
func (e *ParseError) Diagnostic() report.Diagnostic {
	return report.Diagnostic{Severity: report.SeverityError, Code: e.Code, Line: e.Line, Message: e.Message}
}

func newParseError(lineNum int, code, format string, args ...any) *ParseError {
	return &ParseError{Line: lineNum, Code: code, Message: fmt.Sprintf(format, args...)}
}

// optionKind classifies a single comma-separated option entry.
type optionKind int

const (
	optionKeyValue optionKind = iota
	optionRevision
	optionRelationship
	optionTarget
	optionTopicID
	optionTag
)

// option is one parsed entry of a bracket group.
type option struct {
	kind     optionKind
	key      string
	value    string
	revision int
	relType  RelationshipType
	// relTarget is a target id ("T5") for target relationships; relTopicID and
	// relTitle are set for topic relationships.
	relTarget  string
	relTopicID string
	relTitle   string
	id         string
	tag        string
}

// parseOption classifies entry by shape. Precedence, first match wins:
// Key=Value, rev:, relationship, target id, topic id, tag.
func parseOption(lineNum int, entry string) (option, error) {
	if entry == "" {
		return option{}, newParseError(lineNum, report.CodeInvalidOption, "Missing attribute detected.")
	}

	if key, value, ok := splitKeyValue(entry); ok {
		return option{kind: optionKeyValue, key: key, value: unescape(value)}, nil
	}

	if m := revisionRE.FindStringSubmatch(entry); m != nil {
		rev, err := strconv.Atoi(m[1])
		if err != nil {
			return option{}, newParseError(lineNum, report.CodeInvalidOption, "Invalid revision %q.", m[1])
		}
		return option{kind: optionRevision, revision: rev}, nil
	}

	if m := relationRE.FindStringSubmatch(entry); m != nil {
		opt := option{kind: optionRelationship, relType: relationshipPrefixes[strings.ToLower(m[1])]}
		if err := parseRelationshipTarget(lineNum, strings.TrimSpace(m[2]), &opt); err != nil {
			return option{}, err
		}
		return opt, nil
	}

	if targetIDRE.MatchString(entry) {
		return option{kind: optionTarget, id: entry}, nil
	}

	if topicIDRE.MatchString(entry) {
		return option{kind: optionTopicID, id: entry}, nil
	}

	return option{kind: optionTag, tag: unescape(entry)}, nil
}

// splitKeyValue splits entry on its first unescaped '='. The key must look
// like an identifier so that relationship targets containing '=' are not
// mistaken for attributes.
func splitKeyValue(entry string) (key, value string, ok bool) {
	for i := 0; i < len(entry); i++ {
		if entry[i] == '\\' {
			i++
			continue
		}
		if entry[i] == '[' {
			return "", "", false
		}
		if entry[i] == '=' {
			key = strings.TrimSpace(entry[:i])
			if !optionKeyRE.MatchString(key) {
				return "", "", false
			}
			return key, strings.TrimSpace(entry[i+1:]), true
		}
	}
	return "", "", false
}

// parseRelationshipTarget fills in the target of a relationship option from
// "T5", "5", "N1", or "Title [5]".
func parseRelationshipTarget(lineNum int, s string, opt *option) error {
	switch {
	case targetIDRE.MatchString(s):
		opt.relTarget = s
		return nil
	case topicIDRE.MatchString(s):
		opt.relTopicID = s
		return nil
	}

	title, inner, hasOptions, err := splitLine(s)
	if err != nil || !hasOptions {
		return newParseError(lineNum, report.CodeInvalidRelationship,
			"Invalid relationship target %q. Relationships must reference a topic ID, a \"Title [ID]\" pair, or a target ID.", unescape(s))
	}
	inner = strings.TrimSpace(inner)
	switch {
	case targetIDRE.MatchString(inner):
		opt.relTarget = inner
	case topicIDRE.MatchString(inner):
		opt.relTopicID = inner
		opt.relTitle = title
	default:
		return newParseError(lineNum, report.CodeInvalidRelationship,
			"Invalid relationship target %q. Relationships must reference a topic ID, a \"Title [ID]\" pair, or a target ID.", unescape(s))
	}
	return nil
}

// relationship builds the Relationship described by a relationship option.
func (o option) relationship(lineNum int, from Node) Relationship {
	if o.relTarget != "" {
		return &TargetRelationship{Type: o.relType, TargetID: o.relTarget, Line: lineNum, From: from}
	}
	return &TopicRelationship{Type: o.relType, TopicID: o.relTopicID, TopicTitle: o.relTitle, Line: lineNum, From: from}
}

// parseOptions tokenizes and classifies every entry of a bracket group.
func parseOptions(lineNum int, options string) ([]option, error) {
	entries := splitEntries(options)
	opts := make([]option, 0, len(entries))
	for _, entry := range entries {
		opt, err := parseOption(lineNum, entry)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

// appendUnique appends s to list unless already present.
func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
