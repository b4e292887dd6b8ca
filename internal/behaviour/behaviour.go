// Package behaviour is the page behaviour controller. On every page load it
// restores the persisted page state from the state cookie, focuses the first
// form field and hands the client-side widgets their configuration. It also
// owns the save path that writes updated state back to the cookie.
package behaviour

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/livetemplate/hyde/internal/dom"
	"github.com/livetemplate/hyde/internal/statecookie"
	"github.com/livetemplate/hyde/internal/uistate"
)

// ConfigScriptID is the id of the script element that carries the widget
// configuration to the client.
const ConfigScriptID = "behaviour-config"

// EditorElementID is the element the markdown editor attaches to.
const EditorElementID = "markdown-editor"

// Options configures the controller. Zero values fall back to DefaultOptions.
type Options struct {
	BaseURL       string
	CookieDomain  string
	CookiePath    string
	CookiePrefix  string
	Editing       bool
	FirstField    string
	FormName      string
	KeyMap        string
	Messages      []string
	Target        string
	UseCodeMirror bool
	CookieMaxAge  time.Duration // 0 for a session cookie
	CookieSecure  bool
	Debug         bool
}

// DefaultOptions returns the controller defaults.
func DefaultOptions() Options {
	return Options{
		CookieDomain: "",
		CookiePath:   "/",
		CookiePrefix: statecookie.DefaultPrefix,
		KeyMap:       "default",
	}
}

// merge fills unset fields of o from the defaults.
func (o Options) merge() Options {
	def := DefaultOptions()
	if o.CookiePath == "" {
		o.CookiePath = def.CookiePath
	}
	if o.CookiePrefix == "" {
		o.CookiePrefix = def.CookiePrefix
	}
	if o.KeyMap == "" {
		o.KeyMap = def.KeyMap
	}
	return o
}

// Context is the shared context every widget is created with.
type Context struct {
	BaseURL    string `json:"baseURL,omitempty"`
	CookieName string `json:"cookieName"`
	FormName   string `json:"formName,omitempty"`
	Target     string `json:"target,omitempty"`
	Editing    bool   `json:"editing"`
}

// Widget is one client-side widget and its options.
type Widget struct {
	Name    string         `json:"name"`
	Options map[string]any `json:"options,omitempty"`
}

// BootConfig is the JSON document the client reads on load.
type BootConfig struct {
	Context    Context         `json:"context"`
	Widgets    []Widget        `json:"widgets"`
	Messages   []string        `json:"messages,omitempty"`
	FirstField string          `json:"firstField,omitempty"`
	State      []uistate.Entry `json:"state"`
}

// LoadResult reports what Load did to a page.
type LoadResult struct {
	State   uistate.Document
	Touched int
	Focused bool
}

// Behaviour is the page behaviour controller.
type Behaviour struct {
	opts  Options
	store *statecookie.Store

	mu         sync.RWMutex
	collection []Widget
}

// New creates a controller and builds its widget collection.
func New(opts Options) *Behaviour {
	opts = opts.merge()
	b := &Behaviour{
		opts: opts,
		store: statecookie.New(statecookie.Options{
			Domain: opts.CookieDomain,
			Path:   opts.CookiePath,
			Prefix: opts.CookiePrefix,
			MaxAge: opts.CookieMaxAge,
			Secure: opts.CookieSecure,
		}),
	}
	b.collection = buildWidgets(opts)
	return b
}

// Options returns the merged options.
func (b *Behaviour) Options() Options {
	return b.opts
}

// Store returns the state cookie store.
func (b *Behaviour) Store() *statecookie.Store {
	return b.store
}

// Context returns the shared widget context.
func (b *Behaviour) Context() Context {
	return Context{
		BaseURL:    b.opts.BaseURL,
		CookieName: b.store.Name(),
		FormName:   b.opts.FormName,
		Target:     b.opts.Target,
		Editing:    b.opts.Editing,
	}
}

// Collect adds a widget to the collection unless one with the same name is
// already present, and returns it.
func (b *Behaviour) Collect(w Widget) Widget {
	b.mu.Lock()
	defer b.mu.Unlock()

	var got Widget
	b.collection, got = collect(b.collection, w)
	return got
}

// Widgets returns the collected widgets in creation order.
func (b *Behaviour) Widgets() []Widget {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Widget, len(b.collection))
	copy(out, b.collection)
	return out
}

// Rebuild discards the collection and builds it again from the options.
func (b *Behaviour) Rebuild() {
	fresh := buildWidgets(b.opts)

	b.mu.Lock()
	b.collection = fresh
	b.mu.Unlock()
}

func collect(list []Widget, w Widget) ([]Widget, Widget) {
	for _, existing := range list {
		if existing.Name == w.Name {
			return list, existing
		}
	}
	return append(list, w), w
}

func buildWidgets(opt Options) []Widget {
	var list []Widget
	add := func(w Widget) {
		list, _ = collect(list, w)
	}

	if opt.Editing && opt.UseCodeMirror {
		add(Widget{Name: "editor", Options: map[string]any{
			"codeMirror": map[string]any{"keyMap": opt.KeyMap},
			"element":    EditorElementID,
		}})
	}

	add(Widget{Name: "window", Options: map[string]any{
		"target": opt.Target,
		"url":    opt.BaseURL,
	}})
	add(Widget{Name: "submit", Options: map[string]any{"formName": opt.FormName}})
	add(Widget{Name: "dropmenu"})
	add(Widget{Name: "headroom", Options: map[string]any{
		"offset":    108,
		"tolerance": 10,
	}})
	add(Widget{Name: "navigation"})
	add(Widget{Name: "noticeBoard"})
	add(Widget{Name: "pickers"})
	add(Widget{Name: "replacements"})
	add(Widget{Name: "sliders"})
	add(Widget{Name: "server", Options: map[string]any{"url": opt.BaseURL}})
	add(Widget{Name: "togglers"})
	add(Widget{Name: "tips", Options: map[string]any{
		"fsWidthRatio": 1.5,
		"minWidth":     200,
		"showDelay":    666,
	}})
	return list
}

// RestoreState decodes raw and applies it to f.
func RestoreState(f uistate.Finder, raw string) (uistate.Document, int) {
	state := uistate.Decode(raw)
	return state, uistate.Apply(f, state)
}

// Load prepares a rendered page for the browser: it restores the state held
// in the request's cookie, focuses the first field and embeds the widget
// configuration.
func (b *Behaviour) Load(doc *dom.Document, r *http.Request) (LoadResult, error) {
	var res LoadResult

	raw, _ := b.store.Read(r)
	res.State, res.Touched = RestoreState(doc, raw)
	if b.opts.Debug && raw != "" {
		log.Printf("[State] Restored %d entries (%d elements) from %s", len(res.State), res.Touched, b.store.Name())
	}

	if b.opts.FirstField != "" {
		if el, ok := doc.Element(b.opts.FirstField); ok {
			el.SetAttr("autofocus", "")
			res.Focused = true
		}
	}

	boot := BootConfig{
		Context:    b.Context(),
		Widgets:    b.Widgets(),
		Messages:   b.opts.Messages,
		FirstField: b.opts.FirstField,
		State:      res.State,
	}
	data, err := json.Marshal(boot)
	if err != nil {
		return res, fmt.Errorf("failed to marshal behaviour config: %w", err)
	}
	if err := doc.SetScript(ConfigScriptID, "application/json", string(data)); err != nil {
		return res, fmt.Errorf("failed to embed behaviour config: %w", err)
	}

	return res, nil
}

// State returns the document currently stored in the request's cookie.
func (b *Behaviour) State(r *http.Request) uistate.Document {
	raw, _ := b.store.Read(r)
	return uistate.Decode(raw)
}

// SaveState merges updates into the request's current state and writes the
// result back to the cookie. Each update replaces any existing entry with the
// same key.
func (b *Behaviour) SaveState(w http.ResponseWriter, r *http.Request, updates uistate.Document) uistate.Document {
	state := b.State(r)
	for _, u := range updates {
		state = state.Set(u.Key, u.Value)
	}
	b.store.Write(w, r, uistate.Encode(state))
	if b.opts.Debug {
		log.Printf("[State] Saved %d entries to %s", len(state), b.store.Name())
	}
	return state
}

// ClearState removes the state cookie.
func (b *Behaviour) ClearState(w http.ResponseWriter, r *http.Request) {
	b.store.Clear(w, r)
}
