package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eykd/csprocessor-go/internal/contentspec"
	"github.com/eykd/csprocessor-go/internal/report"
)

// errSpecInvalid is returned when a content spec has error diagnostics; the
// diagnostics themselves have already been printed.
var errSpecInvalid = errors.New("content specification has errors")

// SpecReader reads the raw content specification at path.
type SpecReader interface {
	ReadSpec(ctx context.Context, path string) ([]byte, error)
}

// readAndParse reads and parses path, recording every failure in log. Parse
// failures leave a (possibly partial) spec and are reported only via log.
func readAndParse(ctx context.Context, reader SpecReader, path string, log *report.Log) (*contentspec.ContentSpec, error) {
	data, err := reader.ReadSpec(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading content spec: %w", err)
	}

	spec, err := contentspec.NewParser(log).Parse(data)
	if err != nil && !log.HasErrors() {
		// Whole-input failures (e.g. bad encoding) are not tied to a line.
		log.Errorf(0, "", "%v", err)
	}
	return spec, nil
}

// printDiagnostics writes each diagnostic to stderr in human-readable form.
func printDiagnostics(cmd *cobra.Command, diags []report.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(cmd.ErrOrStderr(), sanitizeText(d.String()))
	}
}

// hasErrorDiagnostic reports whether any diagnostic in diags has error severity.
func hasErrorDiagnostic(diags []report.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == report.SeverityError {
			return true
		}
	}
	return false
}
