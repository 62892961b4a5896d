package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fleetgrid/tracker-receiver/internal/observability"
	"github.com/fleetgrid/tracker-receiver/internal/session"
)

// WebSocketHandler accepts device sessions tunneled over websocket, one
// report per message. Gateways that bridge SMS or satellite uplinks deliver
// packets this way instead of holding a raw TCP socket open.
type WebSocketHandler struct {
	tcp      *TcpHandler
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(tcp *TcpHandler) *WebSocketHandler {
	return &WebSocketHandler{
		tcp: tcp,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (w *WebSocketHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	w.handle(conn)
}

func (w *WebSocketHandler) handle(conn *websocket.Conn) {
	defer conn.Close()
	observability.ConnectionsAccepted.Inc()
	observability.ActiveSessions.Inc()
	defer observability.ActiveSessions.Dec()

	s := session.New(conn.RemoteAddr().String())
	logger.Info("websocket session opened",
		zap.String("sessionId", s.ID), zap.String("remoteAddr", s.RemoteAddr))

	write := func(reply []byte) error {
		return conn.WriteMessage(websocket.TextMessage, reply)
	}

	for {
		_, packet, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket closed unexpectedly",
					zap.String("sessionId", s.ID), zap.Error(err))
			}
			return
		}
		if len(packet) == 0 {
			continue
		}
		// message boundaries are frame boundaries here
		if done := w.tcp.handlePacket(s, packet, write); done {
			return
		}
	}
}
