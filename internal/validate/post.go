package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/eykd/csprocessor-go/internal/catalog"
	"github.com/eykd/csprocessor-go/internal/contentspec"
	"github.com/eykd/csprocessor-go/internal/report"
)

// PostValidate resolves every tag, writer, and topic type in the spec. It
// keeps going after a failure so that one pass reports everything; the error
// is non-nil only when the lookup itself failed.
func (v *Validator) PostValidate(ctx context.Context, spec *contentspec.ContentSpec) (bool, error) {
	if v.lookup == nil {
		return false, errors.New("post-validation requires a tag lookup")
	}
	return v.PostValidateLevel(ctx, spec.Base)
}

// PostValidateLevel validates level and its whole subtree.
func (v *Validator) PostValidateLevel(ctx context.Context, level *contentspec.Level) (bool, error) {
	ok := true

	good, err := v.checkTags(ctx, level.LineNumber(), level.Tags)
	if err != nil {
		return false, err
	}
	ok = ok && good

	good, err = v.checkWriter(ctx, level.LineNumber(), level.Writer)
	if err != nil {
		return false, err
	}
	ok = ok && good

	for _, topic := range level.FrontMatter {
		good, err := v.postValidateTopic(ctx, topic)
		if err != nil {
			return false, err
		}
		ok = ok && good
	}

	for _, child := range level.Children {
		var (
			good bool
			err  error
		)
		switch n := child.(type) {
		case *contentspec.Level:
			good, err = v.PostValidateLevel(ctx, n)
		case *contentspec.SpecTopic:
			good, err = v.postValidateTopic(ctx, n)
		default:
			continue
		}
		if err != nil {
			return false, err
		}
		ok = ok && good
	}
	return ok, nil
}

func (v *Validator) postValidateTopic(ctx context.Context, topic *contentspec.SpecTopic) (bool, error) {
	line := topic.LineNumber()

	ok, err := v.checkTags(ctx, line, topic.Tags)
	if err != nil {
		return false, err
	}

	good, err := v.checkWriter(ctx, line, topic.Writer)
	if err != nil {
		return false, err
	}
	ok = ok && good

	switch {
	case topic.Type != "":
		_, found, err := v.lookup.CategoryTag(ctx, catalog.CategoryType, topic.Type)
		if err != nil {
			return false, v.lookupFailed(line, topic.Type, err)
		}
		if !found {
			v.log.Errorf(line, report.CodeUnknownType, "Type doesn't exist.")
			ok = false
		}
	case topic.IsNew() && topic.TopicType != contentspec.TopicLevel:
		// A level option list cannot declare a type for its front matter.
		v.log.Errorf(line, report.CodeUnknownType, "No topic type specified.")
		ok = false
	}
	return ok, nil
}

func (v *Validator) checkTags(ctx context.Context, line int, tags []string) (bool, error) {
	ok := true
	for _, name := range tags {
		_, found, err := v.lookup.Tag(ctx, name)
		if err != nil {
			return false, v.lookupFailed(line, name, err)
		}
		if !found {
			v.log.Errorf(line, report.CodeUnknownTag, "Tag %q doesn't exist.", name)
			ok = false
		}
	}
	return ok, nil
}

func (v *Validator) checkWriter(ctx context.Context, line int, writer string) (bool, error) {
	if writer == "" {
		return true, nil
	}
	_, found, err := v.lookup.CategoryTag(ctx, catalog.CategoryWriter, writer)
	if err != nil {
		return false, v.lookupFailed(line, writer, err)
	}
	if !found {
		v.log.Errorf(line, report.CodeUnknownWriter, "Writer %q doesn't exist as a valid writer.", writer)
		return false, nil
	}
	return true, nil
}

func (v *Validator) lookupFailed(line int, name string, err error) error {
	v.log.Errorf(line, report.CodeLookupFailure, "Unable to look up %q: %v", name, err)
	return fmt.Errorf("look up %q: %w", name, err)
}
