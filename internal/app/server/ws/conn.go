package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type WebSocket struct {
	*websocket.Conn
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWebSocket(parent context.Context, conn *websocket.Conn, log *slog.Logger) *WebSocket {
	ctx, cancel := context.WithCancel(parent)
	return &WebSocket{Conn: conn, log: log, ctx: ctx, cancel: cancel}
}

func (w *WebSocket) WriteMessage(data []byte) error {
	w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) Ping() error {
	return w.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// ReadLoop hands every non-empty frame to onMsg until the peer goes away.
// It reports whether the peer closed the socket cleanly.
func (w *WebSocket) ReadLoop(limit int64, onMsg func([]byte)) (clean bool) {
	// Ensure cleanup happens when the loop breaks
	defer w.Close()
	// Configure Read Limits (Protects against memory exhaustion)
	w.Conn.SetReadLimit(limit)
	w.Conn.SetReadDeadline(time.Now().Add(pongWait))
	w.Conn.SetPongHandler(func(string) error {
		return w.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.log.WarnContext(w.ctx, "ws - read loop - unexpected close", "err", err)
				return false
			}
			return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
		}
		if len(data) > 0 {
			onMsg(data)
		}
	}
}

func (w *WebSocket) Close() {
	w.cancel()
	_ = w.Conn.Close()
}
