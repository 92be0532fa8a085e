package server

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	keyReadLimit = 1 << 10
	keyPongWait  = 30 * time.Second
	keyPingEvery = keyPongWait * 9 / 10
	keyWriteWait = 5 * time.Second
)

// keyFrame is one browser keyboard report. Key uses KeyboardEvent.code
// names; repeat frames while held are expected.
type keyFrame struct {
	Key  string `json:"key"`
	Down bool   `json:"down"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

var keySessionSeq atomic.Uint64

// handleKeys relays browser key reports into an input session. Closing
// the socket releases every key the session still holds.
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	if !s.requireBackend(w) {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		s.logger.Warn("key relay upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	name := fmt.Sprintf("browser-%d", keySessionSeq.Add(1))
	session := s.backend.OpenInput(name)
	defer session.Close()

	s.logger.Info("key relay connected", "input", name, "remote", r.RemoteAddr)

	conn.SetReadLimit(keyReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(keyPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(keyPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.pingKeys(conn, done, r)

	for {
		var frame keyFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("key relay read ended", "input", name, "error", err)
			}
			s.logger.Info("key relay disconnected", "input", name)
			return
		}
		if frame.Key == "" {
			continue
		}
		session.Feed(frame.Key, frame.Down)
	}
}

// pingKeys keeps the read deadline alive and closes the socket when the
// server shuts down.
func (s *Server) pingKeys(conn *websocket.Conn, done <-chan struct{}, r *http.Request) {
	ticker := time.NewTicker(keyPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(keyWriteWait)); err != nil {
				return
			}
		case <-r.Context().Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(keyWriteWait))
			_ = conn.Close()
			return
		case <-done:
			return
		}
	}
}
