package contracts

import (
	"context"
	"livesync/internal/core/domain"
)

// MessageLog is the shared, ordered, appendable log a room writes to.
type MessageLog interface {
	// Append commits the draft. The timestamp is assigned by the store clock, never the caller's.
	Append(ctx context.Context, draft domain.Draft) (domain.Message, error)
	// Subscribe delivers one ChildAdded per record appended after 'after', in append order.
	// A zero 'after' replays the retained log first. Transport errors surface as a single Gap
	// event before the feed resumes from its cursor. The channel closes when ctx ends.
	Subscribe(ctx context.Context, roomID string, after domain.Timestamp) (<-chan domain.FeedEvent, error)
}

// ConnectivitySource pushes the boolean link state of this process.
type ConnectivitySource interface {
	// Watch emits on every observed change; the first value is the first probe result.
	Watch(ctx context.Context) <-chan bool
}
