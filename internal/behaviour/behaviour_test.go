package behaviour

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/hyde/internal/dom"
	"github.com/livetemplate/hyde/internal/uistate"
)

const page = `<!DOCTYPE html><html><head><title>p</title></head><body>
<form name="main"><input id="search" name="q"></form>
<div id="fooDisp">foo</div>
<span id="fooIcon" class="true"></span>
<img id="barImg" src="a.png">
</body></html>`

func widgetNames(ws []Widget) []string {
	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.Name
	}
	return names
}

func TestNewDefaults(t *testing.T) {
	b := New(Options{})

	opts := b.Options()
	assert.Equal(t, "/", opts.CookiePath)
	assert.Equal(t, "behaviour", opts.CookiePrefix)
	assert.Equal(t, "default", opts.KeyMap)
	assert.Equal(t, "behaviour_state", b.Store().Name())

	assert.Equal(t, []string{
		"window", "submit", "dropmenu", "headroom", "navigation", "noticeBoard",
		"pickers", "replacements", "sliders", "server", "togglers", "tips",
	}, widgetNames(b.Widgets()))
}

func TestEditorWidget(t *testing.T) {
	tests := []struct {
		name          string
		editing       bool
		useCodeMirror bool
		want          bool
	}{
		{"neither", false, false, false},
		{"editing only", true, false, false},
		{"codemirror only", false, true, false},
		{"both", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(Options{Editing: tt.editing, UseCodeMirror: tt.useCodeMirror, KeyMap: "vim"})
			ws := b.Widgets()
			assert.Equal(t, tt.want, ws[0].Name == "editor")
			if tt.want {
				assert.Equal(t, EditorElementID, ws[0].Options["element"])
				assert.Equal(t, map[string]any{"keyMap": "vim"}, ws[0].Options["codeMirror"])
			}
		})
	}
}

func TestCollectAndRebuild(t *testing.T) {
	b := New(Options{})
	n := len(b.Widgets())

	got := b.Collect(Widget{Name: "tips"})
	assert.Equal(t, 666, got.Options["showDelay"], "existing widget is returned")
	assert.Len(t, b.Widgets(), n)

	b.Collect(Widget{Name: "custom"})
	assert.Len(t, b.Widgets(), n+1)

	b.Rebuild()
	assert.Len(t, b.Widgets(), n)
}

func TestWidgetsDuringRebuild(t *testing.T) {
	b := New(Options{})
	n := len(b.Widgets())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Rebuild()
				b.Collect(Widget{Name: "custom"})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got := len(b.Widgets())
				if got != n && got != n+1 {
					t.Errorf("Widgets() has %d entries, want %d or %d", got, n, n+1)
				}
			}
		}()
	}
	wg.Wait()
}

func TestLoadRestoresState(t *testing.T) {
	b := New(Options{FirstField: "search", BaseURL: "http://example.com/", Messages: []string{"hello"}})

	doc, err := dom.ParseString(page)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "behaviour_state", Value: uistate.Encode(uistate.Document{
		{Key: "foo", Value: "false"},
		{Key: "bar", Value: "b.png"},
	})})

	res, err := b.Load(doc, req)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Touched)
	assert.True(t, res.Focused)
	assert.Len(t, res.State, 2)

	fooDisp, _ := doc.Element("fooDisp")
	assert.True(t, fooDisp.Hidden())
	fooIcon, _ := doc.Element("fooIcon")
	assert.Equal(t, []string{"false"}, fooIcon.Classes())
	barImg, _ := doc.Element("barImg")
	src, _ := barImg.Attr("src")
	assert.Equal(t, "b.png", src)
	search, _ := doc.Element("search")
	_, focused := search.Attr("autofocus")
	assert.True(t, focused)

	script, ok := doc.Element(ConfigScriptID)
	require.True(t, ok)
	assert.Equal(t, "script", script.Tag())

	out := doc.String()
	start := strings.Index(out, `type="application/json">`) + len(`type="application/json">`)
	end := strings.Index(out[start:], "</script>")
	var boot BootConfig
	require.NoError(t, json.Unmarshal([]byte(out[start:start+end]), &boot))
	assert.Equal(t, "behaviour_state", boot.Context.CookieName)
	assert.Equal(t, "http://example.com/", boot.Context.BaseURL)
	assert.Equal(t, []string{"hello"}, boot.Messages)
	assert.Equal(t, "search", boot.FirstField)
	assert.Len(t, boot.Widgets, 12)
	assert.Equal(t, []uistate.Entry{{Key: "foo", Value: "false"}, {Key: "bar", Value: "b.png"}}, boot.State)
}

func TestLoadWithoutCookie(t *testing.T) {
	b := New(Options{FirstField: "missing"})
	doc, err := dom.ParseString(page)
	require.NoError(t, err)

	res, err := b.Load(doc, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Touched)
	assert.False(t, res.Focused)
	assert.Empty(t, res.State)
}

func TestLoadCorruptCookie(t *testing.T) {
	b := New(Options{})
	doc, err := dom.ParseString(page)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "behaviour_state", Value: "%%%+foo~false+junk"})

	res, err := b.Load(doc, req)
	require.NoError(t, err)
	assert.Equal(t, uistate.Document{{Key: "foo", Value: "false"}}, res.State)
}

func TestSaveState(t *testing.T) {
	b := New(Options{CookiePrefix: "hyde", CookieMaxAge: time.Hour})

	req := httptest.NewRequest(http.MethodPost, "/state", nil)
	req.AddCookie(&http.Cookie{Name: "hyde_state", Value: "a~1+b~2+a~3"})
	rr := httptest.NewRecorder()

	state := b.SaveState(rr, req, uistate.Document{{Key: "a", Value: "false"}, {Key: "c", Value: "x+y"}})
	assert.Equal(t, uistate.Document{{Key: "a", Value: "false"}, {Key: "b", Value: "2"}, {Key: "c", Value: "x+y"}}, state)

	cookie, err := http.ParseSetCookie(rr.Header().Get("Set-Cookie"))
	require.NoError(t, err)
	assert.Equal(t, "hyde_state", cookie.Name)
	assert.Equal(t, 3600, cookie.MaxAge)
	assert.Equal(t, state, uistate.Decode(cookie.Value))
}

func TestClearState(t *testing.T) {
	b := New(Options{})
	rr := httptest.NewRecorder()
	b.ClearState(rr, httptest.NewRequest(http.MethodDelete, "/state", nil))

	cookie, err := http.ParseSetCookie(rr.Header().Get("Set-Cookie"))
	require.NoError(t, err)
	assert.Equal(t, -1, cookie.MaxAge)
}
