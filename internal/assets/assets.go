// Package assets embeds the client JavaScript and CSS served by hyde.
package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
)

//go:embed client/*
var clientFS embed.FS

// contentTypes maps served extensions to their Content-Type.
var contentTypes = map[string]string{
	".js":  "application/javascript",
	".css": "text/css; charset=utf-8",
}

// ClientFS returns the embedded client files
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetClientJS returns the browser JavaScript
func GetClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/hyde.js")
}

// GetClientCSS returns the browser CSS
func GetClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/hyde.css")
}

// Get returns a client asset by name along with its content type.
func Get(name string) ([]byte, string, error) {
	ct, ok := contentTypes[path.Ext(name)]
	if !ok || path.Base(name) != name {
		return nil, "", fmt.Errorf("asset %q not found", name)
	}
	data, err := fs.ReadFile(ClientFS(), name)
	if err != nil {
		return nil, "", fmt.Errorf("asset %q not found: %w", name, err)
	}
	return data, ct, nil
}
