package hyde

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"
)

// Frontmatter represents the YAML frontmatter at the top of a markdown file.
type Frontmatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	FirstField  string `yaml:"first_field"`
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
		parser.WithAttribute(),
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

// ParseMarkdown splits off the frontmatter and renders the remaining markdown
// to HTML.
func ParseMarkdown(content []byte) (*Frontmatter, string, error) {
	fm, remaining, err := extractFrontmatter(content)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	var buf bytes.Buffer
	if err := markdown.Convert(remaining, &buf); err != nil {
		return nil, "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return fm, buf.String(), nil
}

// errUnclosedFrontmatter is returned when the closing --- is missing.
var errUnclosedFrontmatter = errors.New("unclosed frontmatter")

// extractFrontmatter parses YAML frontmatter if present.
func extractFrontmatter(content []byte) (*Frontmatter, []byte, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return &Frontmatter{}, content, nil
	}

	// Find the closing ---
	endIdx := bytes.Index(content[4:], []byte("\n---\n"))
	if endIdx == -1 {
		if len(content) >= 8 && bytes.HasSuffix(content, []byte("\n---")) {
			endIdx = len(content) - 4 - 4
		} else {
			return nil, nil, errUnclosedFrontmatter
		}
	}

	yamlContent := content[4 : 4+endIdx]
	remaining := []byte{}
	if rest := 4 + endIdx + 5; rest <= len(content) {
		remaining = content[rest:]
	}

	var fm Frontmatter
	if err := yaml.Unmarshal(yamlContent, &fm); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &fm, remaining, nil
}
