package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// ReloadMessage is pushed to connected browsers when a page changes on disk.
type ReloadMessage struct {
	Action   string `json:"action"`
	FilePath string `json:"filePath"`
}

// serveWebSocket upgrades the request to a reload socket. The socket is
// server-push only; anything the client sends is read and discarded.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}

	s.RegisterConnection(conn)
	defer func() {
		s.UnregisterConnection(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go pingLoop(conn, done)
	defer close(done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}
	}
}

func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// RegisterConnection adds a WebSocket connection to the tracked connections.
func (s *Server) RegisterConnection(conn *websocket.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.connections[conn] = true
	log.Printf("[Server] WebSocket connection registered: %d active connections", len(s.connections))
}

// UnregisterConnection removes a WebSocket connection from tracked connections.
func (s *Server) UnregisterConnection(conn *websocket.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.connections, conn)
	log.Printf("[Server] WebSocket connection unregistered: %d active connections", len(s.connections))
}

// ConnectionCount returns the number of connected reload sockets.
func (s *Server) ConnectionCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.connections)
}

// BroadcastReload sends a reload message to all connected WebSocket clients.
func (s *Server) BroadcastReload(filePath string) {
	// Writes hold the exclusive lock; gorilla allows one concurrent writer.
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if len(s.connections) == 0 {
		return
	}

	data, err := json.Marshal(ReloadMessage{Action: "reload", FilePath: filePath})
	if err != nil {
		log.Printf("[Server] Failed to marshal reload message: %v", err)
		return
	}

	log.Printf("[Server] Broadcasting reload for %s to %d connections", filePath, len(s.connections))

	for conn := range s.connections {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[Server] Failed to send reload to connection: %v", err)
		}
	}
}
