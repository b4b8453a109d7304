package contentspec

import (
	"errors"

	"github.com/eykd/csprocessor-go/internal/report"
)

// ProcessTopic builds a SpecTopic from a "Title [ID, attr, ...]" string.
// The bracket group must contain exactly one topic id.
func (p *Parser) ProcessTopic(topicString string, lineNum int) (*SpecTopic, error) {
	title, options, hasOptions, err := splitLine(topicString)
	switch {
	case errors.Is(err, errMissingEnding):
		return nil, newParseError(lineNum, report.CodeBracketMismatch, "Missing ending bracket.")
	case errors.Is(err, errDuplicateBracket):
		return nil, newParseError(lineNum, report.CodeDuplicateBrackets, "Duplicated bracket types found.")
	case err != nil:
		return nil, newParseError(lineNum, report.CodeInvalidTopic, "Incorrect topic format. %s", err.Error())
	case !hasOptions:
		return nil, newParseError(lineNum, report.CodeInvalidTopic,
			"Incorrect topic format. Topics must be written as \"Title [ID]\".")
	}

	opts, err := parseOptions(lineNum, options)
	if err != nil {
		return nil, err
	}

	// The id decides everything else (unique id, new vs existing), so find it first.
	id := ""
	for _, opt := range opts {
		if opt.kind != optionTopicID {
			continue
		}
		if id != "" {
			return nil, newParseError(lineNum, report.CodeInvalidTopic, "Multiple topic IDs specified (%s and %s).", id, opt.id)
		}
		id = opt.id
	}
	if id == "" {
		return nil, newParseError(lineNum, report.CodeInvalidTopic, "Title and ID must be specified.")
	}

	topic := NewSpecTopic(lineNum, id)
	topic.Title = title
	if topic.IsNew() && title == "" {
		return nil, newParseError(lineNum, report.CodeInvalidTopic, "Title and ID must be specified.")
	}

	for _, opt := range opts {
		if err := p.applyTopicOption(lineNum, topic, opt); err != nil {
			return nil, err
		}
	}

	if topic.TargetID != "" {
		p.idx.targets[topic.TargetID] = topic
	}
	p.registerTopic(topic)
	return topic, nil
}

// applyTopicOption applies a single parsed option to topic.
func (p *Parser) applyTopicOption(lineNum int, topic *SpecTopic, opt option) error {
	switch opt.kind {
	case optionKeyValue:
		return p.applyAttribute(lineNum, opt, &topic.Writer, &topic.SourceURLs, &topic.Type)
	case optionRevision:
		if topic.Revision != nil {
			return newParseError(lineNum, report.CodeInvalidOption, "A topic can only have one revision.")
		}
		rev := opt.revision
		topic.Revision = &rev
	case optionRelationship:
		topic.Relationships.Add(opt.relationship(lineNum, topic))
	case optionTarget:
		if topic.TargetID != "" {
			return newParseError(lineNum, report.CodeInvalidOption, "A topic can only have one target ID.")
		}
		if err := p.checkTarget(lineNum, opt.id); err != nil {
			return err
		}
		topic.TargetID = opt.id
	case optionTag:
		topic.Tags = appendUnique(topic.Tags, opt.tag)
	}
	return nil
}
