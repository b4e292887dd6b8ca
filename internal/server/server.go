package server

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/livetemplate/hyde"
	"github.com/livetemplate/hyde/internal/assets"
	"github.com/livetemplate/hyde/internal/behaviour"
	"github.com/livetemplate/hyde/internal/cache"
	"github.com/livetemplate/hyde/internal/config"
	"github.com/livetemplate/hyde/internal/dom"
)

// Route represents a discovered page route.
type Route struct {
	Pattern  string     // URL pattern (e.g., "/install")
	FilePath string     // Relative file path (e.g., "install.md")
	Page     *hyde.Page // Parsed page
}

// Server is the hyde page server.
type Server struct {
	rootDir     string
	config      *config.Config
	behaviour   *behaviour.Behaviour
	routes      []*Route
	generation  uint64 // Bumped on every Discover, guarded by mu
	mu          sync.RWMutex
	connections map[*websocket.Conn]bool   // Track connected WebSocket clients
	connMu      sync.RWMutex               // Separate mutex for connections
	watcher     *Watcher                   // File watcher for live reload
	limiter     *clientLimiter             // Throttles state saves per client
	pages       *cache.MemoryCache[string] // Rendered pages before state is applied
}

// New creates a new server for the given root directory.
func New(rootDir string) *Server {
	return NewWithConfig(rootDir, config.DefaultConfig())
}

// NewWithConfig creates a new server with a specific configuration.
func NewWithConfig(rootDir string, cfg *config.Config) *Server {
	return &Server{
		rootDir:     rootDir,
		config:      cfg,
		behaviour:   behaviour.New(cfg.BehaviourOptions()),
		routes:      make([]*Route, 0),
		connections: make(map[*websocket.Conn]bool),
		pages:       cache.NewMemoryCache[string](0),
		limiter:     newClientLimiter(rate.Limit(cfg.State.GetRateLimitRPS()), cfg.State.GetRateLimitBurst(), cfg.State.GetMaxTrackedIPs()),
	}
}

// Behaviour returns the page behaviour controller.
func (s *Server) Behaviour() *behaviour.Behaviour {
	return s.behaviour
}

// Discover scans the directory for .md files and creates routes.
func (s *Server) Discover() error {
	routes := make([]*Route, 0)

	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Skip directories starting with _ or .
			name := d.Name()
			if path != s.rootDir && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		if filepath.Ext(path) != ".md" {
			return nil
		}

		relPath, err := filepath.Rel(s.rootDir, path)
		if err != nil {
			return err
		}
		if s.ignored(relPath) {
			return nil
		}

		page, err := hyde.ParseFile(path)
		if err != nil {
			log.Printf("Warning: Failed to parse %s: %v", relPath, err)
			return nil // Continue with other files
		}

		routes = append(routes, &Route{
			Pattern:  mdToPattern(relPath),
			FilePath: relPath,
			Page:     page,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk directory: %w", err)
	}

	sortRoutes(routes)

	s.mu.Lock()
	s.routes = routes
	s.generation++
	s.pages.InvalidateAll()
	s.mu.Unlock()

	return nil
}

// ignored reports whether relPath matches one of the configured ignore
// patterns. A trailing /** matches everything below a directory.
func (s *Server) ignored(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	base := filepath.Base(rel)
	if strings.HasPrefix(base, "_") {
		return true
	}
	for _, pattern := range s.config.Ignore {
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
			if strings.HasPrefix(rel, dir+"/") {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// Routes returns the discovered routes.
func (s *Server) Routes() []*Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routes
}

// Handler returns the server wrapped in its middleware chain.
func (s *Server) Handler() http.Handler {
	return SecurityHeadersMiddleware()(WithCompression(s))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/ws":
		s.serveWebSocket(w, r)
		return
	case r.URL.Path == "/state":
		s.serveState(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/assets/"):
		s.serveAsset(w, r)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	var match *Route
	for _, route := range s.routes {
		if route.Pattern == r.URL.Path {
			match = route
			break
		}
	}
	gen := s.generation
	s.mu.RUnlock()

	if match == nil {
		http.NotFound(w, r)
		return
	}
	s.servePage(w, r, match, gen)
}

// serveAsset serves embedded client assets.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/assets/")

	data, contentType, err := assets.Get(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    {{- if .Description}}
    <meta name="description" content="{{.Description}}">
    {{- end}}
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="/assets/hyde.css">
</head>
<body>
    <nav id="sub-nav-collapse">
        <ul>
        {{- range .Nav}}
            <li{{if .Current}} class="current"{{end}}><a href="{{.Pattern}}">{{.Title}}</a></li>
        {{- end}}
        </ul>
    </nav>
    <main class="content-wrapper">
{{.Content}}
    </main>
    <script src="/assets/hyde.js" defer></script>
</body>
</html>
`))

type navItem struct {
	Pattern string
	Title   string
	Current bool
}

type pageData struct {
	Title       string
	Description string
	Nav         []navItem
	Content     template.HTML
}

// renderPage renders a page to HTML without any state applied.
func (s *Server) renderPage(page *hyde.Page, currentPath string) (string, error) {
	title := page.Title
	if s.config.Title != "" && title != s.config.Title {
		title = page.Title + " - " + s.config.Title
	}

	data := pageData{
		Title:       title,
		Description: page.Description,
		Content:     template.HTML(page.StaticHTML),
	}
	s.mu.RLock()
	for _, route := range s.routes {
		data.Nav = append(data.Nav, navItem{
			Pattern: route.Pattern,
			Title:   route.Page.Title,
			Current: route.Pattern == currentPath,
		})
	}
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return buf.String(), nil
}

// cacheRendered stores a rendered page unless the routes were rediscovered
// after gen was read, so a page built from replaced content is never cached.
func (s *Server) cacheRendered(pattern, rendered string, gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.generation != gen {
		return false
	}
	s.pages.Set(pattern, rendered, 0)
	return true
}

// servePage renders a page and restores the visitor's page state into it.
// gen is the route generation the page was looked up in.
func (s *Server) servePage(w http.ResponseWriter, r *http.Request, route *Route, gen uint64) {
	rendered, ok := s.pages.Get(route.Pattern)
	if !ok {
		var err error
		rendered, err = s.renderPage(route.Page, route.Pattern)
		if err != nil {
			log.Printf("[Server] %s: %v", route.FilePath, err)
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
			return
		}
		s.cacheRendered(route.Pattern, rendered, gen)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	doc, err := dom.ParseString(rendered)
	if err != nil {
		// Serve the page without state rather than failing the load
		log.Printf("[Server] %s: serving without state: %v", route.FilePath, err)
		w.Write([]byte(rendered))
		return
	}

	b := s.behaviour
	if route.Page.FirstField != "" {
		opts := b.Options()
		opts.FirstField = route.Page.FirstField
		b = behaviour.New(opts)
	}

	res, err := b.Load(doc, r)
	if err != nil {
		log.Printf("[Server] %s: %v", route.FilePath, err)
	}
	if s.config.Server.Debug {
		log.Printf("[Server] %s: %d state entries, %d elements updated", r.URL.Path, len(res.State), res.Touched)
	}

	if err := doc.Render(w); err != nil {
		log.Printf("[Server] %s: failed to write page: %v", route.FilePath, err)
	}
}

// mdToPattern converts a markdown file path to a URL pattern.
// Examples:
//   - "index.md" → "/"
//   - "install.md" → "/install"
//   - "guides/intro.md" → "/guides/intro"
//   - "guides/index.md" → "/guides/"
func mdToPattern(relPath string) string {
	path := filepath.ToSlash(strings.TrimSuffix(relPath, ".md"))

	if path == "index" {
		return "/"
	}
	if strings.HasSuffix(path, "/index") {
		return "/" + strings.TrimSuffix(path, "index")
	}

	return "/" + path
}

// sortRoutes orders routes: "/" first, then directory indexes, then the rest
// alphabetically.
func sortRoutes(routes []*Route) {
	rank := func(r *Route) int {
		switch {
		case r.Pattern == "/":
			return 0
		case strings.HasSuffix(r.Pattern, "/"):
			return 1
		}
		return 2
	}
	sort.SliceStable(routes, func(i, j int) bool {
		ri, rj := rank(routes[i]), rank(routes[j])
		if ri != rj {
			return ri < rj
		}
		return routes[i].Pattern < routes[j].Pattern
	})
}

// EnableWatch enables file watching for live reload.
func (s *Server) EnableWatch(debug bool) error {
	watcher, err := NewWatcher(s.rootDir, func(filePath string) error {
		if err := s.Discover(); err != nil {
			return fmt.Errorf("failed to re-discover pages: %w", err)
		}
		s.BroadcastReload(filePath)
		return nil
	}, debug)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	s.watcher = watcher
	s.watcher.Start()

	log.Printf("[Watch] File watcher started for %s", s.rootDir)
	return nil
}

// StopWatch stops the file watcher if it's running.
func (s *Server) StopWatch() error {
	if s.watcher != nil {
		return s.watcher.Stop()
	}
	return nil
}

// StartLimiterSweep removes idle clients from the state save limiter until
// ctx is cancelled. The returned channel closes when the sweeper exits.
func (s *Server) StartLimiterSweep(ctx context.Context) <-chan struct{} {
	return s.limiter.sweep(ctx)
}
