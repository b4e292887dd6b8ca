package hyde

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// yamlLinePattern pulls the line number out of a yaml.v3 error message.
var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// ParseFile parses a markdown file and creates a Page.
func ParseFile(path string) (*Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Get absolute path for better error messages
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	fm, staticHTML, err := ParseMarkdown(content)
	if err != nil {
		return nil, frontmatterError(absPath, err)
	}

	page := New(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	page.Title = fm.Title
	page.Description = fm.Description
	page.FirstField = fm.FirstField
	page.StaticHTML = staticHTML
	page.SourceFile = absPath

	if page.Title == "" {
		page.Title = titleFromID(page.ID)
	}

	return page, nil
}

// frontmatterError converts a parse failure into a ParseError pointing at the
// offending line of the source file.
func frontmatterError(file string, err error) *ParseError {
	if errors.Is(err, errUnclosedFrontmatter) {
		return NewParseError(file, 1, "Frontmatter is not closed").
			WithHint("End the frontmatter block with a line containing only ---")
	}

	line := 1
	if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			line = n + 1 // account for the opening ---
		}
	}
	return NewParseError(file, line, fmt.Sprintf("Failed to parse markdown: %v", err)).
		WithHint("Check the YAML syntax of the frontmatter")
}

// titleFromID turns "getting-started" into "Getting Started".
func titleFromID(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
