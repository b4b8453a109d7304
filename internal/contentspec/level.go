package contentspec

import (
	"errors"
	"strings"

	"github.com/eykd/csprocessor-go/internal/report"
)

// ParseLevel builds a Level of levelType from line, which must begin with the
// level's keyword followed by a colon (e.g. "Chapter: Title [T1, tag]").
// The returned level has no children; nesting is the assembler's job.
func (p *Parser) ParseLevel(lineNum int, levelType LevelType, line string) (*Level, error) {
	keyword := levelType.String() + ":"
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < len(keyword) || !strings.EqualFold(trimmed[:len(keyword)], keyword) {
		return nil, newParseError(lineNum, report.CodeInvalidLevel,
			"Incorrect %s format. The line must begin with %q.", levelType, keyword)
	}

	title, options, hasOptions, err := splitLine(trimmed[len(keyword):])
	if err != nil {
		return nil, p.levelSyntaxError(lineNum, levelType, err)
	}

	level := NewLevel(lineNum, levelType)
	level.Title = title

	if !hasOptions {
		return level, nil
	}

	opts, err := parseOptions(lineNum, options)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := p.applyLevelOption(lineNum, level, opt); err != nil {
			return nil, err
		}
	}

	// Only a fully parsed level is recorded in the spec-wide indexes.
	if level.TargetID != "" {
		p.idx.targets[level.TargetID] = level
	}
	for _, topic := range level.FrontMatter {
		p.registerTopic(topic)
	}
	return level, nil
}

// levelSyntaxError turns a tokenizer failure into a ParseError for a level line.
func (p *Parser) levelSyntaxError(lineNum int, levelType LevelType, err error) *ParseError {
	code := report.CodeBracketMismatch
	if errors.Is(err, errDuplicateBracket) {
		code = report.CodeDuplicateBrackets
	}
	if errors.Is(err, errTrailingText) {
		return newParseError(lineNum, report.CodeInvalidLevel, "Incorrect %s format. %s", levelType, err.Error())
	}
	return newParseError(lineNum, code, "%s", err.Error())
}

// applyLevelOption applies a single parsed option to level.
func (p *Parser) applyLevelOption(lineNum int, level *Level, opt option) error {
	switch opt.kind {
	case optionKeyValue:
		return p.applyAttribute(lineNum, opt, &level.Writer, &level.SourceURLs, nil)
	case optionRevision:
		return newParseError(lineNum, report.CodeInvalidOption, "A revision can only be specified for a topic.")
	case optionRelationship:
		if !level.Type.AllowsRelationships() {
			return newParseError(lineNum, report.CodeLevelRelationship,
				"Relationships can't be used for a %s.", level.Type)
		}
		level.Relationships.Add(opt.relationship(lineNum, level))
	case optionTarget:
		if level.TargetID != "" {
			return newParseError(lineNum, report.CodeInvalidOption, "A %s can only have one target ID.", level.Type)
		}
		if err := p.checkTarget(lineNum, opt.id); err != nil {
			return err
		}
		level.TargetID = opt.id
	case optionTopicID:
		topic := NewSpecTopic(lineNum, opt.id)
		topic.TopicType = TopicLevel
		topic.setParent(level)
		level.FrontMatter = append(level.FrontMatter, topic)
	case optionTag:
		level.Tags = appendUnique(level.Tags, opt.tag)
	}
	return nil
}

// applyAttribute applies a Key=Value option. topicType is nil for levels,
// where a Type attribute is not meaningful.
func (p *Parser) applyAttribute(lineNum int, opt option, writer *string, urls *[]string, topicType *string) error {
	switch strings.ToLower(opt.key) {
	case "url":
		*urls = append(*urls, opt.value)
	case "writer":
		if *writer != "" {
			return newParseError(lineNum, report.CodeDuplicateWriter, "Duplicate writer specified. Only one writer may be assigned.")
		}
		*writer = opt.value
	case "type":
		if topicType == nil {
			p.log.Warnf(lineNum, report.CodeUnknownOptionKey, "Ignoring attribute %q: a type can only be set on a topic.", opt.key)
			return nil
		}
		*topicType = opt.value
	default:
		p.log.Warnf(lineNum, report.CodeUnknownOptionKey, "Ignoring unrecognized attribute %q.", opt.key)
	}
	return nil
}
