// Package validate checks a parsed content specification before it may be
// persisted. Pre-validation covers the spec's own metadata and internal
// consistency; post-validation resolves tags, writers, and topic types against
// a catalog.Lookup. Rule violations are recorded in a report.Log and never
// returned as Go errors.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/eykd/csprocessor-go/internal/catalog"
	"github.com/eykd/csprocessor-go/internal/contentspec"
	"github.com/eykd/csprocessor-go/internal/report"
)

// SupportedDTD is the only DTD the publishing toolchain accepts.
const SupportedDTD = "Docbook 4.5"

var versionRE = regexp.MustCompile(`^\d+(\.\d+)*$`)

// Validator runs the validation passes, recording failures in its log.
type Validator struct {
	lookup catalog.Lookup
	log    *report.Log
}

// New returns a Validator. lookup may be nil when only PreValidate is used.
func New(lookup catalog.Lookup, log *report.Log) *Validator {
	if log == nil {
		log = report.NewLog(nil)
	}
	return &Validator{lookup: lookup, log: log}
}

// Validate runs PreValidate and, only if it passes, PostValidate.
func (v *Validator) Validate(ctx context.Context, spec *contentspec.ContentSpec) (bool, error) {
	if !v.PreValidate(spec) {
		return false, nil
	}
	return v.PostValidate(ctx, spec)
}

// PreValidate checks metadata, structure, revisions, and relationships. Every
// rule runs; the result is false if any of them failed.
func (v *Validator) PreValidate(spec *contentspec.ContentSpec) bool {
	ok := true
	for _, check := range []func(*contentspec.ContentSpec) bool{
		v.checkMetadata,
		v.checkContent,
		v.checkRevisions,
		v.checkNewTopics,
		v.checkRelationships,
	} {
		if !check(spec) {
			ok = false
		}
	}
	v.checkCommonContent(spec.Base)
	return ok
}

func (v *Validator) checkMetadata(spec *contentspec.ContentSpec) bool {
	ok := true
	fail := func(code, format string, args ...any) {
		v.log.Errorf(0, code, format, args...)
		ok = false
	}

	for _, f := range []struct{ name, value string }{
		{"Title", spec.Title},
		{"Product", spec.Product},
		{"Version", spec.Version},
		{"DTD", spec.DTD},
		{"Copyright Holder", spec.CopyrightHolder},
	} {
		if strings.TrimSpace(f.value) == "" {
			fail(report.CodeInvalidSpecField, "Invalid Content Specification! No %s specified.", f.name)
		}
	}

	for _, f := range []struct{ name, value string }{
		{"Version", spec.Version},
		{"Edition", spec.Edition},
		{"Book Version", spec.BookVersion},
	} {
		if f.value != "" && !versionRE.MatchString(f.value) {
			fail(report.CodeInvalidSpecField, "Invalid %s specified. The value must be a valid version.", f.name)
		}
	}

	if spec.DTD != "" && !strings.EqualFold(spec.DTD, SupportedDTD) {
		fail(report.CodeUnsupportedDTD, "DTD %q is not supported. Only %s is supported.", spec.DTD, SupportedDTD)
	}

	if spec.BookType == contentspec.BookTypeInvalid {
		fail(report.CodeInvalidBookType, "Invalid book type. The type must be Book, Article, Book-Draft or Article-Draft.")
	}

	if spec.CopyrightYear != "" {
		if _, err := strconv.Atoi(strings.TrimSpace(spec.CopyrightYear)); err != nil {
			fail(report.CodeInvalidSpecField, "Invalid Copyright Year specified. The value must be a valid year.")
		}
	}

	return ok
}

func (v *Validator) checkContent(spec *contentspec.ContentSpec) bool {
	if spec.Base.HasContent() {
		return true
	}
	v.log.Errorf(0, report.CodeEmptyBook, "The Content Specification must contain at least one level or topic.")
	return false
}

// checkRevisions fails for any existing topic included more than once with
// differing revisions, listing every line of every revision.
func (v *Validator) checkRevisions(spec *contentspec.ContentSpec) bool {
	ok := true
	for _, id := range sortedKeys(spec.TopicIndex) {
		topics := spec.TopicIndex[id]
		if len(topics) < 2 || !topics[0].IsExisting() {
			continue
		}

		var order []string
		lines := make(map[string][]int)
		for _, t := range topics {
			key := "latest"
			if t.Revision != nil {
				key = "revision " + strconv.Itoa(*t.Revision)
			}
			if _, seen := lines[key]; !seen {
				order = append(order, key)
			}
			lines[key] = append(lines[key], t.LineNumber())
		}
		if len(order) < 2 {
			continue
		}

		parts := make([]string, len(order))
		for i, key := range order {
			parts[i] = fmt.Sprintf("%s on line(s) %s", key, joinLines(lines[key]))
		}
		v.log.Errorf(topics[0].LineNumber(), report.CodeConflictingRevisions,
			"Topic %s is included multiple times with different revisions: %s.", id, strings.Join(parts, "; "))
		ok = false
	}
	return ok
}

// checkNewTopics enforces the N<n>/X<n> pairing.
func (v *Validator) checkNewTopics(spec *contentspec.ContentSpec) bool {
	ok := true
	for _, id := range sortedKeys(spec.TopicIndex) {
		topics := spec.TopicIndex[id]
		first := topics[0]
		switch {
		case first.IsNew() && id != "N" && len(topics) > 1:
			v.log.Errorf(topics[1].LineNumber(), report.CodeDuplicateNewTopic,
				"New topic %s is declared more than once (lines %s). Use X%s to include it again.",
				id, joinLines(topicLines(topics)), strings.TrimPrefix(id, "N"))
			ok = false
		case first.IsDuplicate():
			newID := "N" + strings.TrimPrefix(id, "X")
			if len(spec.TopicIndex[newID]) == 0 {
				for _, t := range topics {
					v.log.Errorf(t.LineNumber(), report.CodeDuplicateNewTopic,
						"Duplicate topic %s has no matching new topic %s.", id, newID)
				}
				ok = false
			}
		}
	}
	return ok
}

func (v *Validator) checkRelationships(spec *contentspec.ContentSpec) bool {
	ok := true
	walkLevels(spec.Base, func(level *contentspec.Level) {
		for _, rel := range level.Relationships.All() {
			if !v.checkRelationship(spec, rel) {
				ok = false
			}
		}
		for _, topic := range levelTopics(level) {
			for _, rel := range topic.Relationships.All() {
				if !v.checkRelationship(spec, rel) {
					ok = false
				}
			}
		}
	})
	return ok
}

func (v *Validator) checkRelationship(spec *contentspec.ContentSpec, rel contentspec.Relationship) bool {
	line := rel.LineNumber()
	source := rel.Source()

	if topic, isTopic := source.(*contentspec.SpecTopic); isTopic && topic.TopicType == contentspec.TopicInitialContent {
		v.log.Errorf(line, report.CodeInitialContentRel,
			"Relationships applied directly to Initial Text topics should be applied on the Initial Text container instead.")
		return false
	}
	if _, isTopic := source.(*contentspec.SpecTopic); !isTopic && rel.RelType().IsSequence() {
		v.log.Errorf(line, report.CodeInvalidSequenceRel, "%s relationships can only be used between topics.", rel.RelType())
		return false
	}

	var target contentspec.Node
	switch r := rel.(type) {
	case *contentspec.TopicRelationship:
		candidates := spec.TopicIndex[r.TopicID]
		switch len(candidates) {
		case 0:
			v.log.Errorf(line, report.CodeMissingRelTarget,
				"Relationship target topic %s doesn't exist in the Content Specification.", r.TopicID)
			return false
		case 1:
			target = candidates[0]
		default:
			for _, c := range candidates {
				if contentspec.Node(c) == source {
					v.log.Errorf(line, report.CodeSelfRelationship, "You can't relate a topic to itself.")
					return false
				}
			}
			v.log.Errorf(line, report.CodeAmbiguousRelationship,
				"Relationship to topic %s is ambiguous: the topic is included on lines %s. Use an explicit link target ID instead.",
				r.TopicID, joinLines(topicLines(candidates)))
			return false
		}
	case *contentspec.TargetRelationship:
		node, found := spec.TargetIndex[r.TargetID]
		if !found {
			v.log.Errorf(line, report.CodeMissingRelTarget,
				"Relationship target %s doesn't exist in the Content Specification.", r.TargetID)
			return false
		}
		target = node
	}

	if target == source {
		v.log.Errorf(line, report.CodeSelfRelationship, "You can't relate a topic to itself.")
		return false
	}
	if _, isTopic := target.(*contentspec.SpecTopic); !isTopic && rel.RelType().IsSequence() {
		v.log.Errorf(line, report.CodeInvalidSequenceRel, "%s relationships can only be used between topics.", rel.RelType())
		return false
	}
	return true
}

// checkCommonContent warns about common content the toolchain can't supply.
func (v *Validator) checkCommonContent(base *contentspec.Level) {
	walkLevels(base, func(level *contentspec.Level) {
		for _, c := range level.Children {
			if cc, ok := c.(*contentspec.CommonContent); ok && !cc.Recognized() {
				v.log.Warnf(cc.LineNumber(), report.CodeUnknownCommonContent,
					"Unrecognized common content %q. It will be included as-is.", cc.Name)
			}
		}
	})
}

// walkLevels calls fn for level and every descendant level, depth-first.
func walkLevels(level *contentspec.Level, fn func(*contentspec.Level)) {
	fn(level)
	for _, child := range level.ChildLevels() {
		walkLevels(child, fn)
	}
}

// levelTopics returns the front matter followed by the direct child topics.
func levelTopics(level *contentspec.Level) []*contentspec.SpecTopic {
	out := make([]*contentspec.SpecTopic, 0, len(level.FrontMatter)+len(level.Children))
	out = append(out, level.FrontMatter...)
	return append(out, level.ChildTopics()...)
}

func topicLines(topics []*contentspec.SpecTopic) []int {
	lines := make([]int, len(topics))
	for i, t := range topics {
		lines[i] = t.LineNumber()
	}
	return lines
}

func joinLines(lines []int) string {
	parts := make([]string, len(lines))
	for i, n := range lines {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
