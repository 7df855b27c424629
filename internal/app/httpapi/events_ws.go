package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Off-chain relayers connect from their own hosts.
	CheckOrigin: func(*http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// eventsWebsocket streams relay notifications to an off-chain consumer until
// the client disconnects.
func (h *handler) eventsWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	defer conn.Close()

	feed, cancel := h.app.Events.Subscribe(64)
	defer cancel()

	// Reader goroutine: drain control frames and detect disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-feed:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(toEventResponse(event)); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
