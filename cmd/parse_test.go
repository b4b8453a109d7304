package cmd

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewParseCmd_HasJSONFlag(t *testing.T) {
	c := NewParseCmd(nil)
	if c.Flags().Lookup("json") == nil {
		t.Error("expected --json flag on parse command")
	}
}

func TestNewParseCmd_RequiresOneArg(t *testing.T) {
	if _, _, err := run(NewParseCmd(&mockIO{spec: []byte(testSpec)})); err == nil {
		t.Error("expected error with no file argument")
	}
}

func TestNewParseCmd_Outline(t *testing.T) {
	out, errOut, err := run(NewParseCmd(&mockIO{spec: []byte(testSpec)}), "spec.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Chapter: One\n  Intro [5]\n  Section: Details\n    Deep [6]\n"
	if !strings.Contains(out, want) {
		t.Errorf("outline missing tree:\n%s", out)
	}
	if !strings.HasPrefix(out, "ID = 42\nTitle = Guide\n") {
		t.Errorf("outline should start with metadata, got:\n%s", out)
	}
	if errOut != "" {
		t.Errorf("expected no diagnostics, got: %s", errOut)
	}
}

func TestNewParseCmd_JSONOutput(t *testing.T) {
	out, _, err := run(NewParseCmd(&mockIO{spec: []byte(testSpec)}), "--json", "spec.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got struct {
		Spec struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Base  struct {
				Children []map[string]any `json:"children"`
			} `json:"base"`
		} `json:"spec"`
		Diagnostics []any `json:"diagnostics"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got.Spec.ID != "42" || got.Spec.Title != "Guide" {
		t.Errorf("spec = %+v", got.Spec)
	}
	if len(got.Spec.Base.Children) != 1 || got.Spec.Base.Children[0]["kind"] != "level" {
		t.Errorf("base children = %v", got.Spec.Base.Children)
	}
	if got.Diagnostics == nil {
		t.Error("diagnostics must encode as an array, not null")
	}
}

func TestNewParseCmd_ParseErrorsExitNonZero(t *testing.T) {
	io := &mockIO{spec: []byte("Chapter: Broken [T1] [tag]\nChapter: Fine\n")}
	out, errOut, err := run(NewParseCmd(io), "spec.txt")
	if !errors.Is(err, errSpecInvalid) {
		t.Fatalf("err = %v, want errSpecInvalid", err)
	}
	if !strings.Contains(errOut, "error: line 1:") {
		t.Errorf("expected line-scoped diagnostic on stderr, got: %s", errOut)
	}
	if !strings.Contains(out, "Chapter: Fine") {
		t.Errorf("later lines should still be parsed, got:\n%s", out)
	}
}

func TestNewParseCmd_JSONIncludesDiagnostics(t *testing.T) {
	io := &mockIO{spec: []byte("Chapter: A [T1]\nChapter: B [T1]\n")}
	out, errOut, err := run(NewParseCmd(io), "--json", "spec.txt")
	if !errors.Is(err, errSpecInvalid) {
		t.Fatalf("err = %v, want errSpecInvalid", err)
	}
	if errOut != "" {
		t.Errorf("JSON mode should keep stderr clean, got: %s", errOut)
	}
	if !strings.Contains(out, `"code":"CSE005"`) {
		t.Errorf("expected duplicate target diagnostic in JSON, got: %s", out)
	}
}

func TestNewParseCmd_InvalidUTF8(t *testing.T) {
	_, errOut, err := run(NewParseCmd(&mockIO{spec: []byte{0xff, 0xfe}}), "spec.txt")
	if !errors.Is(err, errSpecInvalid) {
		t.Fatalf("err = %v, want errSpecInvalid", err)
	}
	if !strings.Contains(errOut, "invalid UTF-8") {
		t.Errorf("expected encoding diagnostic, got: %s", errOut)
	}
}

func TestNewParseCmd_ReadError(t *testing.T) {
	out, _, err := run(NewParseCmd(&mockIO{readErr: errors.New("disk error")}), "spec.txt")
	if err == nil || !strings.Contains(err.Error(), "disk error") {
		t.Errorf("err = %v, want wrapped read error", err)
	}
	if out != "" {
		t.Errorf("expected no stdout on read error, got: %s", out)
	}
}
