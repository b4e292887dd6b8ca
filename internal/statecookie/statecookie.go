// Package statecookie reads and writes the page state cookie.
package statecookie

import (
	"net/http"
	"strings"
	"time"
)

// DefaultPrefix is the cookie name prefix used when none is configured.
const DefaultPrefix = "behaviour"

// nameSuffix is appended to the prefix to form the cookie name.
const nameSuffix = "_state"

// Options scopes the state cookie. The zero value stores a session cookie
// named behaviour_state on path "/".
type Options struct {
	Domain string
	Path   string
	Prefix string
	MaxAge time.Duration
	Secure bool
}

// Name returns the cookie name for these options.
func (o Options) Name() string {
	prefix := strings.TrimSpace(o.Prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + nameSuffix
}

func (o Options) path() string {
	if o.Path == "" {
		return "/"
	}
	return o.Path
}

// Store reads and writes one state cookie.
type Store struct {
	opts Options
}

// New returns a store for the given options.
func New(opts Options) *Store {
	return &Store{opts: opts}
}

// Name returns the cookie name.
func (s *Store) Name() string {
	return s.opts.Name()
}

// Read returns the raw cookie value when present and non-empty.
func (s *Store) Read(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(s.Name())
	if err != nil || cookie == nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

// Write stores value in the state cookie. An empty value clears it.
func (s *Store) Write(w http.ResponseWriter, r *http.Request, value string) {
	if w == nil {
		return
	}
	if value == "" {
		s.Clear(w, r)
		return
	}
	cookie := s.cookie(r, value)
	if s.opts.MaxAge > 0 {
		cookie.MaxAge = int(s.opts.MaxAge / time.Second)
		cookie.Expires = time.Now().Add(s.opts.MaxAge)
	}
	http.SetCookie(w, cookie)
}

// Clear expires the state cookie.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) {
	if w == nil {
		return
	}
	cookie := s.cookie(r, "")
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

func (s *Store) cookie(r *http.Request, value string) *http.Cookie {
	return &http.Cookie{
		Name:     s.Name(),
		Value:    value,
		Domain:   s.opts.Domain,
		Path:     s.opts.path(),
		Secure:   s.opts.Secure || isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	}
}

func isHTTPS(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
