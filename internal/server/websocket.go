package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/benywifi/beny/internal/charger"
	"github.com/benywifi/beny/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// handleWebSocket pushes the current reading and then every new one as a
// JSON text message. Anything the client sends is discarded.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	remoteAddr := r.RemoteAddr

	s.wg.Add(1)
	defer s.wg.Done()

	s.trackConn(remoteAddr, conn)
	logging.LogConnection(remoteAddr, "websocket_opened")

	// Subscribe before sending the current reading so no update is missed
	updates, unsubscribe := s.source.Subscribe()
	defer func() {
		unsubscribe()
		_ = conn.Close()
		s.untrackConn(remoteAddr)
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	if last := s.source.Last(); last != nil {
		if err := writeReading(conn, last); err != nil {
			return
		}
	}

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case reading, ok := <-updates:
			if !ok {
				return
			}
			if err := writeReading(conn, reading); err != nil {
				logging.Debug("WebSocket write failed",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeReading(conn *websocket.Conn, r *charger.Reading) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(r)
}

// readPump drains client messages so control frames are processed, and
// closes closed when the peer goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
