package contracts

import (
	"context"
	"livesync/internal/core/domain"
)

// ArchiveQueue reads a room log through a consumer group so that every entry
// is handed to exactly one archiver and acknowledged after it is stored.
type ArchiveQueue interface {
	// Consume blocks, passing entries to handler until ctx ends.
	Consume(ctx context.Context, roomID, group string, handler func(ctx context.Context, msg domain.Message) error) error
	// Ack removes the entry from the group's pending list.
	Ack(ctx context.Context, roomID, group, entryID string) error
}
