package contentspec

import (
	"errors"
	"strings"
)

// Tokenizer failures. Callers translate these into line-scoped ParseErrors
// with a message suited to the kind of line being parsed.
var (
	errMissingOpening   = errors.New("Missing opening bracket.")
	errMissingEnding    = errors.New("Missing ending bracket.")
	errDuplicateBracket = errors.New("Duplicated bracket types found.")
	errTrailingText     = errors.New("Unexpected text after the closing bracket.")
)

// isEscapable reports whether c may follow a backslash escape.
func isEscapable(c byte) bool {
	return c == ',' || c == '[' || c == ']'
}

// splitLine splits line into its value and the contents of its single
// outermost bracket group. Escape sequences in the value are resolved; the
// option text is returned raw so nested groups can be tokenized again.
// hasOptions is false when the line carries no bracket group at all.
func splitLine(line string) (value, options string, hasOptions bool, err error) {
	var sb strings.Builder
	depth := 0
	start := -1
	groups := 0

	for i := 0; i < len(line); i++ {
		c := line[i]

		if c == '\\' && i+1 < len(line) && isEscapable(line[i+1]) {
			if depth == 0 {
				if groups > 0 {
					return "", "", false, errTrailingText
				}
				sb.WriteByte(line[i+1])
			}
			i++
			continue
		}

		switch c {
		case '[':
			if depth == 0 {
				if groups > 0 {
					return "", "", false, errDuplicateBracket
				}
				start = i + 1
			}
			depth++
		case ']':
			if depth == 0 {
				return "", "", false, errMissingOpening
			}
			depth--
			if depth == 0 {
				options = line[start:i]
				groups++
			}
		default:
			if depth > 0 {
				continue
			}
			if groups > 0 {
				if c != ' ' && c != '\t' {
					return "", "", false, errTrailingText
				}
				continue
			}
			sb.WriteByte(c)
		}
	}

	if depth > 0 {
		return "", "", false, errMissingEnding
	}

	return strings.TrimSpace(sb.String()), options, groups > 0, nil
}

// splitEntries splits raw option text on unescaped commas that are not nested
// inside a bracket group. Entries are trimmed but escapes are preserved.
func splitEntries(options string) []string {
	var entries []string
	depth := 0
	start := 0

	for i := 0; i < len(options); i++ {
		c := options[i]
		switch {
		case c == '\\' && i+1 < len(options) && isEscapable(options[i+1]):
			i++
		case c == '[':
			depth++
		case c == ']':
			if depth > 0 {
				depth--
			}
		case c == ',' && depth == 0:
			entries = append(entries, strings.TrimSpace(options[start:i]))
			start = i + 1
		}
	}
	return append(entries, strings.TrimSpace(options[start:]))
}

// unescape resolves \, \[ and \] sequences into their literal characters.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && isEscapable(s[i+1]) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// escapeText is the inverse of unescape.
func escapeText(s string) string {
	r := strings.NewReplacer(",", `\,`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}

// countLeadingWhitespace returns the number of leading space/tab characters.
func countLeadingWhitespace(s string) int {
	n := 0
	for _, c := range s {
		if c != ' ' && c != '\t' {
			break
		}
		n++
	}
	return n
}

// splitLines splits src into lines on "\n", "\r\n" or "\r".
// A trailing newline does not produce an extra empty line.
func splitLines(src []byte) []string {
	if len(src) == 0 {
		return []string{}
	}

	var lines []string
	start := 0

	for i := 0; i < len(src); {
		switch src[i] {
		case '\n':
			lines = append(lines, string(src[start:i]))
			i++
			start = i
		case '\r':
			lines = append(lines, string(src[start:i]))
			i++
			if i < len(src) && src[i] == '\n' {
				i++
			}
			start = i
		default:
			i++
		}
	}

	if start < len(src) {
		lines = append(lines, string(src[start:]))
	}

	return lines
}
