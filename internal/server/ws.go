package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/veloma/internal/app"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LiveHandler pushes the status of every frame to WebSocket clients.
type LiveHandler struct {
	subscribe func() (<-chan app.Status, func())
}

// NewLiveHandler creates a LiveHandler fed by subscribe.
func NewLiveHandler(subscribe func() (<-chan app.Status, func())) *LiveHandler {
	return &LiveHandler{subscribe: subscribe}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so no frame after it is missed.
	updates, cancel := h.subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("server: websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	// Reading detects the client closing the connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case st := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(st); err != nil {
				slog.Debug("server: websocket write", "error", err)
				return
			}
		}
	}
}
