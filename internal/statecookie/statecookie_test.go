package statecookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestName(t *testing.T) {
	t.Parallel()

	if got := (Options{}).Name(); got != "behaviour_state" {
		t.Fatalf("Name() = %q, want %q", got, "behaviour_state")
	}
	if got := (Options{Prefix: "hyde"}).Name(); got != "hyde_state" {
		t.Fatalf("Name() = %q, want %q", got, "hyde_state")
	}
}

func TestRead(t *testing.T) {
	t.Parallel()

	store := New(Options{})
	if _, ok := store.Read(nil); ok {
		t.Fatalf("expected nil request to have no state cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	if _, ok := store.Read(req); ok {
		t.Fatalf("expected missing cookie")
	}

	req.AddCookie(&http.Cookie{Name: "behaviour_state", Value: "nav~false"})
	value, ok := store.Read(req)
	if !ok {
		t.Fatalf("expected cookie to be present")
	}
	if value != "nav~false" {
		t.Fatalf("value = %q, want %q", value, "nav~false")
	}
}

func TestWrite(t *testing.T) {
	t.Parallel()

	store := New(Options{Domain: "example.com", Path: "/docs", Prefix: "hyde", MaxAge: time.Hour})
	req := httptest.NewRequest(http.MethodPost, "http://example.com/state", nil)
	rr := httptest.NewRecorder()
	store.Write(rr, req, "a~b")

	cookie, err := http.ParseSetCookie(rr.Header().Get("Set-Cookie"))
	if err != nil {
		t.Fatalf("ParseSetCookie() error = %v", err)
	}
	if cookie.Name != "hyde_state" {
		t.Fatalf("cookie name = %q, want %q", cookie.Name, "hyde_state")
	}
	if cookie.Value != "a~b" {
		t.Fatalf("cookie value = %q, want %q", cookie.Value, "a~b")
	}
	if cookie.Path != "/docs" {
		t.Fatalf("cookie path = %q, want %q", cookie.Path, "/docs")
	}
	if cookie.Domain != "example.com" {
		t.Fatalf("cookie domain = %q, want %q", cookie.Domain, "example.com")
	}
	if cookie.MaxAge != 3600 {
		t.Fatalf("cookie max-age = %d, want 3600", cookie.MaxAge)
	}
	if cookie.Secure {
		t.Fatalf("expected insecure cookie for http request")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie SameSite = %v, want Lax", cookie.SameSite)
	}
}

func TestWriteSecure(t *testing.T) {
	t.Parallel()

	store := New(Options{})
	req := httptest.NewRequest(http.MethodPost, "https://example.com/state", nil)
	rr := httptest.NewRecorder()
	store.Write(rr, req, "a~b")

	cookie, err := http.ParseSetCookie(rr.Header().Get("Set-Cookie"))
	if err != nil {
		t.Fatalf("ParseSetCookie() error = %v", err)
	}
	if !cookie.Secure {
		t.Fatalf("expected secure cookie for https request")
	}
	if cookie.Path != "/" {
		t.Fatalf("cookie path = %q, want /", cookie.Path)
	}
}

func TestWriteEmptyClears(t *testing.T) {
	t.Parallel()

	store := New(Options{})
	req := httptest.NewRequest(http.MethodPost, "http://example.com/state", nil)
	rr := httptest.NewRecorder()
	store.Write(rr, req, "")

	cookie, err := http.ParseSetCookie(rr.Header().Get("Set-Cookie"))
	if err != nil {
		t.Fatalf("ParseSetCookie() error = %v", err)
	}
	if cookie.MaxAge != -1 {
		t.Fatalf("cookie max-age = %d, want -1", cookie.MaxAge)
	}
	if cookie.Value != "" {
		t.Fatalf("cookie value = %q, want empty", cookie.Value)
	}

	store.Write(nil, req, "x~y")
	store.Clear(nil, req)
}
