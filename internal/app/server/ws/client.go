package ws

import (
	"context"
	"errors"
	"livesync/internal/core/contracts"
	"sync"
	"time"
)

var ErrClientClosed = errors.New("client closed")

var _ contracts.Client = (*RuntimeClient)(nil)

// RuntimeClient owns the write side of one socket. All frames go through
// out so only writeLoop ever writes data frames.
type RuntimeClient struct {
	ctx       context.Context
	cancel    context.CancelFunc
	ws        *WebSocket
	sessionID string
	roomID    string
	out       chan []byte
	once      sync.Once
}

func NewClient(
	parent context.Context,
	ws *WebSocket,
	sessionID, roomID string,
) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:       ctx,
		cancel:    cancel,
		ws:        ws,
		sessionID: sessionID,
		roomID:    roomID,
		out:       make(chan []byte, 256),
	}
	go c.writeLoop(pingPeriod)
	return c
}

func (c *RuntimeClient) SessionID() string { return c.sessionID }
func (c *RuntimeClient) RoomID() string    { return c.roomID }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop(every time.Duration) {
	defer c.Close()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.Ping(); err != nil {
				return
			}
		}
	}
}
