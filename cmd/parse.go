package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eykd/csprocessor-go/internal/contentspec"
	"github.com/eykd/csprocessor-go/internal/report"
)

// ParseReader reads the content specification for the parse command.
type ParseReader interface {
	SpecReader
}

// parseOutput is the JSON output schema for the parse command.
type parseOutput struct {
	Spec        *contentspec.ContentSpec `json:"spec"`
	Diagnostics []report.Diagnostic      `json:"diagnostics"`
}

// NewParseCmd creates the parse subcommand.
func NewParseCmd(reader ParseReader) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "parse <file>",
		Short:        "Parse a content specification and print its tree",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonMode, _ := cmd.Flags().GetBool("json")

			log := report.NewLog(nil)
			spec, err := readAndParse(cmd.Context(), reader, args[0], log)
			if err != nil {
				return err
			}
			diags := log.Entries()

			if jsonMode {
				out := parseOutput{Spec: spec, Diagnostics: diags}
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(out); err != nil {
					return fmt.Errorf("encoding output: %w", err)
				}
			} else {
				if err := writeOutline(cmd.OutOrStdout(), spec); err != nil {
					return fmt.Errorf("writing outline: %w", err)
				}
				printDiagnostics(cmd, diags)
			}

			if hasErrorDiagnostic(diags) {
				return errSpecInvalid
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Output the tree and diagnostics as JSON")

	return cmd
}

// writeOutline prints spec as an indented outline, one node per line.
func writeOutline(w io.Writer, spec *contentspec.ContentSpec) error {
	ow := &outlineWriter{w: w}
	for _, n := range spec.Nodes {
		ow.node(0, n)
	}
	for _, n := range spec.Base.Children {
		ow.node(0, n)
	}
	return ow.err
}

type outlineWriter struct {
	w   io.Writer
	err error
}

func (ow *outlineWriter) line(depth int, format string, args ...any) {
	if ow.err != nil {
		return
	}
	text := sanitizeText(fmt.Sprintf(format, args...))
	_, ow.err = fmt.Fprintf(ow.w, "%s%s\n", strings.Repeat("  ", depth), text)
}

func (ow *outlineWriter) node(depth int, n contentspec.Node) {
	switch n := n.(type) {
	case *contentspec.Comment:
		ow.line(depth, "%s", n.Title())
	case *contentspec.KeyValueNode:
		ow.line(depth, "%s = %s", n.Key, n.Value)
	case *contentspec.FileList:
		ow.line(depth, "%s = %s", contentspec.FileListKey, n.Value())
	case *contentspec.CommonContent:
		ow.line(depth, "%s [Common Content]", n.Name)
	case *contentspec.SpecTopic:
		ow.line(depth, "%s [%s]", n.Title, n.ID)
	case *contentspec.Level:
		ow.line(depth, "%s", strings.TrimSpace(n.Type.String()+": "+n.Title))
		for _, t := range n.FrontMatter {
			ow.line(depth+1, "%s [%s] (front matter)", t.Title, t.ID)
		}
		for _, c := range n.Children {
			ow.node(depth+1, c)
		}
	}
}

// fileParseReader implements ParseReader using OS file I/O.
type fileParseReader struct{}

func newDefaultParseReader() *fileParseReader {
	return &fileParseReader{}
}

func (r *fileParseReader) ReadSpec(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}
