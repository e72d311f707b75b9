package notifications

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/happy-hops/choperia/internal/app/domain/mesa"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 64
)

// StreamHandler serves mesa events over a websocket. Query parameters
// since (Unix ms) replays buffered events first and exclude_user drops
// events produced by that user.
type StreamHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewStreamHandler builds the websocket endpoint. checkOrigin may be nil
// to accept any origin.
func NewStreamHandler(hub *Hub, checkOrigin func(r *http.Request) bool) *StreamHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (s *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	exclude, _ := strconv.ParseInt(r.URL.Query().Get("exclude_user"), 10, 64)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan mesa.Event, sendBuffer)
	unsubscribe := s.hub.Subscribe(func(evt mesa.Event) {
		if exclude > 0 && evt.User.ID == exclude {
			return
		}
		select {
		case send <- evt:
		default:
			s.hub.log.WithField("event_id", evt.ID).Warn("websocket client too slow, dropping event")
		}
	})
	defer unsubscribe()

	if since > 0 {
		for _, evt := range s.hub.Since(since, exclude) {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case evt := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
