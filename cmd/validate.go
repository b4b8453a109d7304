package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eykd/csprocessor-go/internal/catalog"
	"github.com/eykd/csprocessor-go/internal/contentspec"
	"github.com/eykd/csprocessor-go/internal/report"
	"github.com/eykd/csprocessor-go/internal/validate"
)

// CatalogLoader loads the tag catalog used by post-validation.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, path string) (catalog.Lookup, error)
}

// ValidateIO handles all I/O for the validate command.
type ValidateIO interface {
	SpecReader
	CatalogLoader
}

// specCheck is the outcome of parsing and validating one content spec.
type specCheck struct {
	spec  *contentspec.ContentSpec
	diags []report.Diagnostic
	valid bool
}

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd(io ValidateIO) *cobra.Command {
	return &cobra.Command{
		Use:          "validate <file>",
		Short:        "Parse and validate a content specification",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			res, err := checkSpec(cmd.Context(), io, io, sess, args[0])
			if err != nil {
				return err
			}
			printDiagnostics(cmd, res.diags)
			if !res.valid {
				return errSpecInvalid
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", sanitizeText(args[0]))
			return nil
		},
	}
}

// checkSpec parses path and, when it parses cleanly, runs pre- and
// post-validation. Post-validation is skipped when no catalog is configured.
func checkSpec(ctx context.Context, reader SpecReader, loader CatalogLoader, sess *session, path string) (*specCheck, error) {
	log := report.NewLog(nil)
	spec, err := readAndParse(ctx, reader, path, log)
	if err != nil {
		return nil, err
	}
	if log.HasErrors() {
		return &specCheck{spec: spec, diags: log.Entries()}, nil
	}

	var lookup catalog.Lookup
	if sess.cfg.Catalog != "" {
		lookup, err = loader.LoadCatalog(ctx, sess.cfg.Catalog)
		if err != nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
	} else {
		sess.logger.Warn("no tag catalog configured; skipping tag, writer and type checks")
	}

	v := validate.New(lookup, log)
	valid := v.PreValidate(spec)
	if valid && lookup != nil {
		valid, err = v.PostValidate(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("validating content spec: %w", err)
		}
	}

	sess.logger.Debug("checked content spec",
		zap.String("path", path),
		zap.Bool("valid", valid),
		zap.Int("diagnostics", log.Len()),
	)
	return &specCheck{spec: spec, diags: log.Entries(), valid: valid}, nil
}

// fileValidateIO implements ValidateIO using OS file I/O.
type fileValidateIO struct {
	fileParseReader
}

func newDefaultValidateIO() *fileValidateIO {
	return &fileValidateIO{}
}

func (f *fileValidateIO) LoadCatalog(_ context.Context, path string) (catalog.Lookup, error) {
	c, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	return c, nil
}
