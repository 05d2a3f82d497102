package contracts

import (
	"context"
	"livesync/internal/core/domain"
	"time"
)

// PresenceStore keeps per-room presence records and the server-side cleanup
// registered for each session.
type PresenceStore interface {
	// OnDisconnect registers rec to be written by the store once heartbeats stop for ttl.
	OnDisconnect(ctx context.Context, rec domain.PresenceRecord, ttl time.Duration) error
	// CancelOnDisconnect drops a pending registration.
	CancelOnDisconnect(ctx context.Context, roomID, sessionID string) error
	// SetPresence writes the record others observe.
	SetPresence(ctx context.Context, rec domain.PresenceRecord) error
	// Heartbeat pushes the registration expiry forward by ttl.
	Heartbeat(ctx context.Context, roomID, sessionID string, ttl time.Duration) error
	// GetPresence lists the records of a room.
	GetPresence(ctx context.Context, roomID string) ([]domain.PresenceRecord, error)
	// Sweep applies every registration that expired before now and returns the written records.
	Sweep(ctx context.Context, now time.Time) ([]domain.PresenceRecord, error)
	// Watch streams every record written to the room, by any process, from now on.
	// The channel closes when ctx ends.
	Watch(ctx context.Context, roomID string) (<-chan domain.PresenceRecord, error)
}
