// Package report provides the ordered error/warning sink shared by the
// content-spec parser, validator, and CLI.
package report

import (
	"fmt"

	"go.uber.org/zap"
)

// Severity classifies the impact level of a diagnostic.
type Severity string

const (
	// SeverityError indicates a condition that blocks persistence.
	SeverityError Severity = "error"
	// SeverityWarning indicates a condition that should be reviewed.
	SeverityWarning Severity = "warning"
	// SeverityInfo is informational only.
	SeverityInfo Severity = "info"
)

// Diagnostic is a single structured finding emitted during parse or validation.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code,omitempty"` // e.g. "CSE005", "CSV010"
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"` // 1-based; 0 when not tied to a source line
}

// String renders d in the human-readable form used by the CLI.
func (d Diagnostic) String() string {
	loc := ""
	if d.Line > 0 {
		loc = fmt.Sprintf("line %d: ", d.Line)
	}
	if d.Code == "" {
		return fmt.Sprintf("%s: %s%s", d.Severity, loc, d.Message)
	}
	return fmt.Sprintf("%s: %s%s (%s)", d.Severity, loc, d.Message, d.Code)
}

// Log is an append-only, ordered diagnostic sink. Every entry is mirrored to
// the configured zap logger.
type Log struct {
	entries []Diagnostic
	logger  *zap.Logger
}

// NewLog returns an empty Log. A nil logger is replaced with a no-op logger.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Append records d and mirrors it to the logger.
func (l *Log) Append(d Diagnostic) {
	l.entries = append(l.entries, d)

	fields := []zap.Field{zap.String("code", d.Code)}
	if d.Line > 0 {
		fields = append(fields, zap.Int("line", d.Line))
	}
	switch d.Severity {
	case SeverityError:
		l.logger.Error(d.Message, fields...)
	case SeverityWarning:
		l.logger.Warn(d.Message, fields...)
	default:
		l.logger.Info(d.Message, fields...)
	}
}

// Errorf records an error-severity diagnostic.
func (l *Log) Errorf(line int, code, format string, args ...any) {
	l.Append(Diagnostic{Severity: SeverityError, Code: code, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Warnf records a warning-severity diagnostic.
func (l *Log) Warnf(line int, code, format string, args ...any) {
	l.Append(Diagnostic{Severity: SeverityWarning, Code: code, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Entries returns the recorded diagnostics in insertion order.
func (l *Log) Entries() []Diagnostic {
	out := make([]Diagnostic, len(l.entries))
	copy(out, l.entries)
	return out
}

// Errors returns only the error-severity diagnostics.
func (l *Log) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range l.entries {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors reports whether any error-severity diagnostic was recorded.
func (l *Log) HasErrors() bool {
	for _, d := range l.entries {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Len returns the number of recorded diagnostics.
func (l *Log) Len() int {
	return len(l.entries)
}
