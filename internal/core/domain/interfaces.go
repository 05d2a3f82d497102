package domain

import (
	"context"

	"github.com/google/uuid"
)

// MessageArchive is the durable copy of room logs.
type MessageArchive interface {
	// Save is idempotent on (room, timestamp) so redelivered entries are harmless.
	Save(ctx context.Context, msg *Message) error
	// History returns messages strictly after the given timestamp, oldest first.
	History(ctx context.Context, roomID string, after Timestamp, limit int) ([]Message, error)
}

// SessionRepository keeps the durable side of presence: joined, last seen, left.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	// TouchSession refreshes last_seen_at.
	TouchSession(ctx context.Context, id uuid.UUID) error
	// MarkLeft sets left_at once. A second call returns ErrSessionNotFound.
	MarkLeft(ctx context.Context, id uuid.UUID) error
}
