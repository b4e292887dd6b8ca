// Package hyde renders markdown pages for the hyde page server. Pages are
// plain markdown with optional YAML frontmatter; raw HTML is passed through so
// authors can mark up the elements whose state is persisted (ids ending in
// Disp, Icon or Img).
package hyde

// Page represents a parsed markdown page.
type Page struct {
	ID          string
	Title       string
	Description string
	FirstField  string // overrides the site-wide first field when set
	SourceFile  string // Absolute path to source .md file (for error messages)
	StaticHTML  string
}

// New creates a new page with the given ID.
func New(id string) *Page {
	return &Page{ID: id}
}
