package worker

import (
	"context"
	"livesync/internal/core/contracts"
	"livesync/internal/core/services"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PresenceSweeper applies the offline records of sessions whose heartbeats
// stopped and closes their durable session. The store publishes what it
// applied, so every node's relay tells its clients.
type PresenceSweeper struct {
	log      *slog.Logger
	store    contracts.PresenceStore
	sessions services.ISessionService
	interval time.Duration
	now      func() time.Time
}

func NewPresenceSweeper(
	log *slog.Logger,
	store contracts.PresenceStore,
	sessions services.ISessionService,
	interval time.Duration,
) *PresenceSweeper {
	return &PresenceSweeper{
		log:      log,
		store:    store,
		sessions: sessions,
		interval: interval,
		now:      time.Now,
	}
}

func (s *PresenceSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass and returns how many registrations it applied.
func (s *PresenceSweeper) SweepOnce(ctx context.Context) int {
	ctx, span := tracer.Start(ctx, "PresenceSweeper.SweepOnce")
	defer span.End()
	applied, err := s.store.Sweep(ctx, s.now())
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "worker - sweep - sweep failed", "applied", len(applied), "err", err)
	}
	for _, rec := range applied {
		id, err := uuid.Parse(rec.SessionID)
		if err != nil {
			s.log.WarnContext(ctx, "worker - sweep - bad session id", "room_id", rec.RoomID, "session_id", rec.SessionID)
			continue
		}
		// StopSession logs its own failures; ErrSessionNotFound means a graceful leave won the race.
		_ = s.sessions.StopSession(ctx, id)
		s.log.InfoContext(ctx, "worker - sweep - session expired", "room_id", rec.RoomID, "session_id", rec.SessionID, "user_id", rec.UserID)
	}
	return len(applied)
}
