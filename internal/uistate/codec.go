// Package uistate encodes the persisted visual state of a page and applies it
// back to the page's elements.
//
// The serialized form is a single cookie-safe string. Entries are joined by
// '+', and within an entry the key and value are joined by '~'. Both halves
// are escaped in the form of the browser's escape(), so neither separator can
// appear inside them and scripts on the page can read the cookie directly.
package uistate

import (
	"errors"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	entrySep = "+"
	pairSep  = "~"
)

// FalseValue is the value that marks a region as closed or hidden.
const FalseValue = "false"

// Entry is the persisted state of one page region.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Document is the ordered set of entries stored in one state cookie.
// Duplicate keys are allowed; when applied, later entries win.
type Document []Entry

// Get returns the value of the last entry with the given key.
func (d Document) Get(key string) (string, bool) {
	for i := len(d) - 1; i >= 0; i-- {
		if d[i].Key == key {
			return d[i].Value, true
		}
	}
	return "", false
}

// Set replaces the value of the first entry with the given key and drops any
// later duplicates, or appends a new entry when the key is absent.
func (d Document) Set(key, value string) Document {
	out := d[:0:0]
	found := false
	for _, e := range d {
		if e.Key != key {
			out = append(out, e)
			continue
		}
		if !found {
			out = append(out, Entry{Key: key, Value: value})
			found = true
		}
	}
	if !found {
		out = append(out, Entry{Key: key, Value: value})
	}
	return out
}

// Delete removes every entry with the given key.
func (d Document) Delete(key string) Document {
	out := d[:0:0]
	for _, e := range d {
		if e.Key != key {
			out = append(out, e)
		}
	}
	return out
}

// Encode serializes doc. An empty document encodes to the empty string.
func Encode(doc Document) string {
	if len(doc) == 0 {
		return ""
	}

	var b strings.Builder
	for i, e := range doc {
		if i > 0 {
			b.WriteString(entrySep)
		}
		b.WriteString(Escape(e.Key))
		b.WriteString(pairSep)
		b.WriteString(Escape(e.Value))
	}
	return b.String()
}

// Decode parses a string produced by Encode. It never fails: empty segments
// are skipped, and segments without a '~' or with a broken escape sequence are
// dropped, so a stale or corrupted cookie yields partial state.
func Decode(raw string) Document {
	if raw == "" {
		return Document{}
	}

	segments := strings.Split(raw, entrySep)
	doc := make(Document, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}

		rawKey, rawValue, ok := strings.Cut(seg, pairSep)
		if !ok {
			continue
		}

		key, err := Unescape(rawKey)
		if err != nil {
			continue
		}
		value, err := Unescape(rawValue)
		if err != nil {
			continue
		}

		doc = append(doc, Entry{Key: key, Value: value})
	}
	return doc
}

const upperhex = "0123456789ABCDEF"

// shouldEscape reports whether the ASCII byte c must be escaped. It keeps the
// same alphabet as the browser's escape(), so '+', '~' and '%' are escaped.
func shouldEscape(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return false
	}
	switch c {
	case '@', '*', '_', '.', '/', '-':
		return false
	}
	return true
}

// Escape encodes s the way the browser's escape() does: code points below
// U+0100 as %XX, everything else as %uXXXX UTF-16 units. Invalid UTF-8 is
// written as U+FFFD.
func Escape(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	buf := make([]byte, 0, len(s)*3)
	for _, r := range s {
		switch {
		case r < utf8.RuneSelf && !shouldEscape(byte(r)):
			buf = append(buf, byte(r))
		case r < 0x100:
			buf = append(buf, '%', upperhex[r>>4], upperhex[r&15])
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			buf = appendUnit(buf, hi)
			buf = appendUnit(buf, lo)
		default:
			buf = appendUnit(buf, r)
		}
	}
	return string(buf)
}

func appendUnit(buf []byte, r rune) []byte {
	return append(buf, '%', 'u',
		upperhex[r>>12&15], upperhex[r>>8&15], upperhex[r>>4&15], upperhex[r&15])
}

// ErrBadEscape is returned by Unescape for a malformed escape sequence.
var ErrBadEscape = errors.New("uistate: malformed escape sequence")

// Unescape reverses Escape, matching the browser's unescape(): %XX is the
// code point U+00XX and %uXXXX a UTF-16 unit. Surrogates must come in pairs.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}

	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if s[i] != '%' {
			buf = append(buf, s[i])
			i++
			continue
		}

		if i+1 < len(s) && (s[i+1] == 'u' || s[i+1] == 'U') {
			r, ok := hex4(s, i+2)
			if !ok {
				return "", ErrBadEscape
			}
			i += 6
			if utf16.IsSurrogate(r) {
				lo, ok := hex4(s, i+2)
				if !ok || i+1 >= len(s) || s[i] != '%' || (s[i+1] != 'u' && s[i+1] != 'U') {
					return "", ErrBadEscape
				}
				r = utf16.DecodeRune(r, lo)
				if r == utf8.RuneError {
					return "", ErrBadEscape
				}
				i += 6
			}
			buf = utf8.AppendRune(buf, r)
			continue
		}

		if i+2 >= len(s) || !ishex(s[i+1]) || !ishex(s[i+2]) {
			return "", ErrBadEscape
		}
		buf = utf8.AppendRune(buf, rune(unhex(s[i+1])<<4|unhex(s[i+2])))
		i += 3
	}
	return string(buf), nil
}

func hex4(s string, at int) (rune, bool) {
	if at < 0 || at+4 > len(s) {
		return 0, false
	}
	var r rune
	for j := at; j < at+4; j++ {
		if !ishex(s[j]) {
			return 0, false
		}
		r = r<<4 | rune(unhex(s[j]))
	}
	return r, true
}

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'f':
		return true
	case 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
