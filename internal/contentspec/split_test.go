package contentspec

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantValue   string
		wantOptions string
		wantHas     bool
		wantErr     error
	}{
		{"no brackets", "Just a title", "Just a title", "", false, nil},
		{"simple", "Title [5, tag]", "Title", "5, tag", true, nil},
		{"nested", "Title [R: Other [5]]", "Title", "R: Other [5]", true, nil},
		{"escaped comma in value", `A\,B [5]`, "A,B", "5", true, nil},
		{"escaped brackets in value", `A \[draft\] [5]`, "A [draft]", "5", true, nil},
		{"escapes kept in options", `T [a\,b]`, "T", `a\,b`, true, nil},
		{"empty group", "T []", "T", "", true, nil},
		{"two groups", "T [5] [6]", "", "", false, errDuplicateBracket},
		{"missing ending", "T [5", "", "", false, errMissingEnding},
		{"missing opening", "T 5]", "", "", false, errMissingOpening},
		{"trailing text", "T [5] more", "", "", false, errTrailingText},
		{"trailing whitespace ok", "T [5]   ", "T", "5", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, options, has, err := splitLine(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if value != tt.wantValue || options != tt.wantOptions || has != tt.wantHas {
				t.Errorf("splitLine(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.line, value, options, has, tt.wantValue, tt.wantOptions, tt.wantHas)
			}
		})
	}
}

func TestSplitEntries(t *testing.T) {
	tests := []struct {
		options string
		want    []string
	}{
		{"5", []string{"5"}},
		{"5, tag , T1", []string{"5", "tag", "T1"}},
		{`a\,b, c`, []string{`a\,b`, "c"}},
		{"R: X [5, rev: 2], tag", []string{"R: X [5, rev: 2]", "tag"}},
		{"5,,6", []string{"5", "", "6"}},
	}
	for _, tt := range tests {
		t.Run(tt.options, func(t *testing.T) {
			if got := splitEntries(tt.options); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitEntries(%q) = %q, want %q", tt.options, got, tt.want)
			}
		})
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	for _, s := range []string{"plain", "a,b", "[x]", `a\b`} {
		if got := unescape(escapeText(s)); got != s {
			t.Errorf("unescape(escapeText(%q)) = %q", s, got)
		}
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"", []string{}},
		{"a\nb\n", []string{"a", "b"}},
		{"a\r\nb", []string{"a", "b"}},
		{"a\rb\r", []string{"a", "b"}},
		{"a\n\nb", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		if got := splitLines([]byte(tt.src)); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitLines(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}
