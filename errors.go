package hyde

import (
	"fmt"
	"os"
	"strings"
)

// ParseError reports a page that could not be parsed, with enough position
// information to show the offending source lines.
type ParseError struct {
	File    string // Source file path
	Line    int    // 1-indexed
	Column  int    // 1-indexed, 0 when unknown
	Message string
	Hint    string
}

// NewParseError creates a new ParseError.
func NewParseError(file string, line int, message string) *ParseError {
	return &ParseError{File: file, Line: line, Message: message}
}

// WithColumn sets the column and returns the error.
func (e *ParseError) WithColumn(col int) *ParseError {
	e.Column = col
	return e
}

// WithHint sets a suggestion for fixing the error and returns it.
func (e *ParseError) WithHint(hint string) *ParseError {
	e.Hint = hint
	return e
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return e.Format()
}

// Format renders the error with up to two lines of source on either side.
func (e *ParseError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "❌ Error in %s\n\n", e.File)
	fmt.Fprintf(&b, "Line %d: %s\n", e.Line, e.Message)

	if src, err := os.ReadFile(e.File); err == nil {
		b.WriteString(sourceContext(string(src), e.Line, e.Column))
	}

	if e.Hint != "" {
		fmt.Fprintf(&b, "\n💡 Tip: %s\n", e.Hint)
	}

	return b.String()
}

func sourceContext(src string, line, col int) string {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	if line < 1 || line > len(lines) {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	for i := max(1, line-2); i <= min(len(lines), line+2); i++ {
		prefix := fmt.Sprintf("  %2d | ", i)
		b.WriteString(prefix + lines[i-1] + "\n")
		if i == line && col > 0 {
			b.WriteString(strings.Repeat(" ", len(prefix)+col-1) + "^\n")
		}
	}
	return b.String()
}
