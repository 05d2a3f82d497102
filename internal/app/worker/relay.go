package worker

import (
	"context"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"log/slog"
	"time"
)

// PresenceRelay forwards every presence write of a room, whoever made it, to
// the local websocket clients of that room.
type PresenceRelay struct {
	log      *slog.Logger
	store    contracts.PresenceStore
	registry contracts.Registry
	backoff  time.Duration
}

var _ contracts.AsyncWorker = (*PresenceRelay)(nil)

func NewPresenceRelay(
	log *slog.Logger,
	store contracts.PresenceStore,
	registry contracts.Registry,
	backoff time.Duration,
) *PresenceRelay {
	return &PresenceRelay{
		log:      log,
		store:    store,
		registry: registry,
		backoff:  backoff,
	}
}

func (r *PresenceRelay) Run(ctx context.Context, roomID string) error {
	for {
		feed, err := r.store.Watch(ctx, roomID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.WarnContext(ctx, "worker - presence relay - watch failed", "room_id", roomID, "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff):
			}
			continue
		}
		r.log.InfoContext(ctx, "worker - presence relay - started", "room_id", roomID)
		for rec := range feed {
			// The session's own socket is told by its reporter.
			r.registry.Broadcast(ctx, roomID, domain.NewPresenceEvent(rec), rec.SessionID)
		}
		r.log.InfoContext(ctx, "worker - presence relay - stopped", "room_id", roomID)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
