// Package dom adapts a parsed HTML document to the element lookup and element
// effects used when restoring page state.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/livetemplate/hyde/internal/uistate"
)

// Document is a parsed HTML page with an id index.
type Document struct {
	root *html.Node
	ids  map[string]*html.Node
}

// Parse parses a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return newDocument(root), nil
}

// ParseString parses a full HTML document held in memory.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func newDocument(root *html.Node) *Document {
	d := &Document{root: root, ids: make(map[string]*html.Node)}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			// getElementById semantics: the first element in tree order wins
			if id := getAttr(n, "id"); id != "" {
				if _, seen := d.ids[id]; !seen {
					d.ids[id] = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return d
}

// FindByID implements uistate.Finder.
func (d *Document) FindByID(id string) (uistate.Element, bool) {
	el, ok := d.Element(id)
	if !ok {
		return nil, false
	}
	return el, true
}

// Element returns the element with the given id.
func (d *Document) Element(id string) (*Element, bool) {
	if d == nil {
		return nil, false
	}
	n, ok := d.ids[id]
	if !ok {
		return nil, false
	}
	return &Element{node: n}, true
}

// SetScript places a script element with the given id and type at the end of
// the body, replacing the content of an existing element with that id.
func (d *Document) SetScript(id, mimeType, content string) error {
	if n, ok := d.ids[id]; ok {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: content})
		return nil
	}

	body := d.find(func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	})
	if body == nil {
		return fmt.Errorf("document has no body")
	}

	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr: []html.Attribute{
			{Key: "id", Val: id},
			{Key: "type", Val: mimeType},
		},
	}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: content})
	body.AppendChild(script)
	d.ids[id] = script
	return nil
}

func (d *Document) find(match func(*html.Node) bool) *html.Node {
	var walk func(*html.Node) *html.Node
	walk = func(n *html.Node) *html.Node {
		if match(n) {
			return n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := walk(c); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(d.root)
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document to a string.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// Element is one HTML element.
type Element struct {
	node *html.Node
}

// Tag returns the element's tag name.
func (e *Element) Tag() string {
	return e.node.Data
}

// Attr returns the value of an attribute and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets an attribute, replacing any existing value.
func (e *Element) SetAttr(name, value string) {
	for i, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr removes an attribute if present.
func (e *Element) RemoveAttr(name string) {
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if !strings.EqualFold(a.Key, name) {
			attrs = append(attrs, a)
		}
	}
	e.node.Attr = attrs
}

// Hidden reports whether the element carries a display: none declaration.
func (e *Element) Hidden() bool {
	style, _ := e.Attr("style")
	for _, decl := range splitStyle(style) {
		if isDisplayNone(decl) {
			return true
		}
	}
	return false
}

// Show removes any display: none declaration and the hidden attribute.
func (e *Element) Show() {
	e.RemoveAttr("hidden")

	style, ok := e.Attr("style")
	if !ok {
		return
	}
	var kept []string
	for _, decl := range splitStyle(style) {
		if !isDisplayNone(decl) {
			kept = append(kept, decl)
		}
	}
	if len(kept) == 0 {
		e.RemoveAttr("style")
		return
	}
	e.SetAttr("style", strings.Join(kept, "; "))
}

// Hide adds a display: none declaration.
func (e *Element) Hide() {
	if e.Hidden() {
		return
	}
	style, _ := e.Attr("style")
	decls := append(splitStyle(style), "display: none")
	e.SetAttr("style", strings.Join(decls, "; "))
}

// Classes returns the element's class list.
func (e *Element) Classes() []string {
	class, _ := e.Attr("class")
	return strings.Fields(class)
}

// HasClass reports whether the element has the class.
func (e *Element) HasClass(name string) bool {
	for _, c := range e.Classes() {
		if c == name {
			return true
		}
	}
	return false
}

// AddClass appends a class unless it is already present.
func (e *Element) AddClass(name string) {
	if name == "" || e.HasClass(name) {
		return
	}
	e.SetAttr("class", strings.Join(append(e.Classes(), name), " "))
}

// RemoveClass removes every occurrence of a class.
func (e *Element) RemoveClass(name string) {
	classes := e.Classes()
	kept := classes[:0]
	for _, c := range classes {
		if c != name {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(classes) {
		return
	}
	e.SetAttr("class", strings.Join(kept, " "))
}

// SetImageSource sets the src attribute.
func (e *Element) SetImageSource(url string) {
	e.SetAttr("src", url)
}

func getAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func splitStyle(style string) []string {
	var decls []string
	for _, d := range strings.Split(style, ";") {
		if d = strings.TrimSpace(d); d != "" {
			decls = append(decls, d)
		}
	}
	return decls
}

func isDisplayNone(decl string) bool {
	prop, val, ok := strings.Cut(decl, ":")
	if !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(prop), "display") &&
		strings.EqualFold(strings.TrimSpace(val), "none")
}
