package contracts

import (
	"context"
)

// Registry tracks the websocket clients connected to this node and fans
// frames out to them per room.
type Registry interface {
	// Register adds a client to the local node memory and joins them to their room.
	Register(c Client)
	// Unregister removes the client and cleans up their room participation.
	Unregister(c Client)
	// SendTo targets a specific local session.
	SendTo(ctx context.Context, sessionID string, frame any)
	// Broadcast sends a frame to all local clients in a room except the one excluded.
	Broadcast(ctx context.Context, roomID string, frame any, exceptSessionID string)
}

// Client represents the minimal interface required for the Registry to
// communicate with an individual WebSocket connection.
type Client interface {
	SessionID() string
	RoomID() string
	Send(ctx context.Context, data []byte) error
	Close()
}
