package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/livetemplate/hyde/internal/uistate"
)

// maxStateForm bounds the size of a state save request body.
const maxStateForm = 16 << 10

// serveState handles reads, saves and resets of the visitor's page state.
func (s *Server) serveState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleGetState(w, r)
	case http.MethodPost:
		s.limiter.RateLimit(http.HandlerFunc(s.handleSaveState)).ServeHTTP(w, r)
	case http.MethodDelete:
		s.behaviour.ClearState(w, r)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST, DELETE")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state := s.behaviour.State(r)
	if state == nil {
		state = uistate.Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Printf("[State] Failed to write state: %v", err)
	}
}

func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxStateForm)
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid form")
		return
	}

	updates, msg := formUpdates(r)
	if msg != "" {
		writeJSONError(w, http.StatusBadRequest, msg)
		return
	}

	s.behaviour.SaveState(w, r, updates)
	w.WriteHeader(http.StatusNoContent)
}

// formUpdates pairs the repeated key and value fields by position. On a
// malformed request it returns a message for the client.
func formUpdates(r *http.Request) (uistate.Document, string) {
	keys := r.PostForm["key"]
	values := r.PostForm["value"]

	if len(keys) == 0 {
		return nil, "missing key"
	}
	if len(keys) != len(values) {
		return nil, "key and value counts differ"
	}

	updates := make(uistate.Document, 0, len(keys))
	for i, key := range keys {
		if key == "" {
			return nil, "empty key"
		}
		updates = append(updates, uistate.Entry{Key: key, Value: values[i]})
	}
	return updates, ""
}
