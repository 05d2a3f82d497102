package services

import (
	"context"
	"errors"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PresenceSink is told about every presence transition of the reported session.
type PresenceSink interface {
	OnPresence(ctx context.Context, rec domain.PresenceRecord)
}

// PresenceReporter turns a connectivity signal into shared presence state for one session.
//
// Going online registers the offline record with the store first, so an
// ungraceful exit (crash, network loss) is cleaned up by the store once
// heartbeats stop, and only then writes the online record.
type PresenceReporter struct {
	log       *slog.Logger
	store     contracts.PresenceStore
	sink      PresenceSink
	session   domain.Session
	ttl       time.Duration
	heartbeat time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    domain.ConnectivityState
	stopBeat context.CancelFunc
	beatDone chan struct{}
}

func NewPresenceReporter(
	log *slog.Logger,
	store contracts.PresenceStore,
	sink PresenceSink,
	session domain.Session,
	ttl time.Duration,
	heartbeat time.Duration,
) *PresenceReporter {
	return &PresenceReporter{
		log:       log,
		store:     store,
		sink:      sink,
		session:   session,
		ttl:       ttl,
		heartbeat: heartbeat,
		now:       time.Now,
	}
}

// Run observes signal values one at a time until ctx ends or signal closes.
func (r *PresenceReporter) Run(ctx context.Context, signal <-chan bool) {
	defer r.stopHeartbeat()
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-signal:
			if !ok {
				return
			}
			r.Observe(ctx, online)
		}
	}
}

// Observe applies a single connectivity value. Repeated values are applied again.
func (r *PresenceReporter) Observe(ctx context.Context, online bool) {
	ctx, span := tracer.Start(ctx, "PresenceReporter.Observe", trace.WithAttributes(
		attribute.String("room_id", r.session.RoomID),
		attribute.String("session_id", r.session.ID.String()),
		attribute.Bool("online", online),
	))
	defer span.End()
	if online {
		if err := r.goOnline(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "register presence failed")
		}
		return
	}
	r.goOffline(ctx)
}

// Status reports the local view. Before any signal it returns ErrConnectivityUnknown.
func (r *PresenceReporter) Status() (domain.ConnectivityState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.ConnectivityUnknown {
		return r.state, domain.ErrConnectivityUnknown
	}
	return r.state, nil
}

// Leave is the graceful exit: write offline and drop the pending cleanup.
func (r *PresenceReporter) Leave(ctx context.Context) error {
	r.stopHeartbeat()
	rec := r.record(false)
	r.setState(domain.ConnectivityOffline)
	roomID, sessionID := r.session.RoomID, r.session.ID.String()
	err := errors.Join(
		r.store.SetPresence(ctx, rec),
		r.store.CancelOnDisconnect(ctx, roomID, sessionID),
	)
	if err != nil {
		r.log.ErrorContext(ctx, "presence - leave - write offline failed", "room_id", roomID, "session_id", sessionID, "err", err)
		return err
	}
	r.sink.OnPresence(ctx, rec)
	r.log.InfoContext(ctx, "presence - leave - offline written", "room_id", roomID, "session_id", sessionID)
	return nil
}

func (r *PresenceReporter) goOnline(ctx context.Context) error {
	rec := r.record(true)
	r.setState(domain.ConnectivityOnline)
	err := r.register(ctx)
	if err != nil {
		r.log.ErrorContext(ctx, "presence - online - register failed", "room_id", r.session.RoomID, "session_id", r.session.ID.String(), "err", err)
	}
	r.sink.OnPresence(ctx, rec)
	r.startHeartbeat(ctx)
	return err
}

func (r *PresenceReporter) goOffline(ctx context.Context) {
	r.stopHeartbeat()
	rec := r.record(false)
	r.setState(domain.ConnectivityOffline)
	r.sink.OnPresence(ctx, rec)
	// The link is most likely down; the store-side registration covers a failed write.
	if err := r.store.SetPresence(ctx, rec); err != nil {
		r.log.DebugContext(ctx, "presence - offline - direct write failed", "room_id", rec.RoomID, "session_id", rec.SessionID, "err", err)
	}
}

func (r *PresenceReporter) register(ctx context.Context) error {
	if err := r.store.OnDisconnect(ctx, r.record(false), r.ttl); err != nil {
		return err
	}
	return r.store.SetPresence(ctx, r.record(true))
}

func (r *PresenceReporter) startHeartbeat(ctx context.Context) {
	if r.heartbeat <= 0 {
		return
	}
	r.stopHeartbeat()
	beatCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.mu.Lock()
	r.stopBeat, r.beatDone = cancel, done
	r.mu.Unlock()
	go r.beat(beatCtx, done)
}

func (r *PresenceReporter) stopHeartbeat() {
	r.mu.Lock()
	cancel, done := r.stopBeat, r.beatDone
	r.stopBeat, r.beatDone = nil, nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (r *PresenceReporter) beat(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := r.store.Heartbeat(ctx, r.session.RoomID, r.session.ID.String(), r.ttl)
			if err == nil {
				continue
			}
			r.log.WarnContext(ctx, "presence - heartbeat - refresh failed", "room_id", r.session.RoomID, "session_id", r.session.ID.String(), "err", err)
			// The registration may have been swept; put it back.
			if err := r.register(ctx); err != nil {
				r.log.ErrorContext(ctx, "presence - heartbeat - re-register failed", "room_id", r.session.RoomID, "session_id", r.session.ID.String(), "err", err)
			}
		}
	}
}

func (r *PresenceReporter) setState(state domain.ConnectivityState) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
}

func (r *PresenceReporter) record(online bool) domain.PresenceRecord {
	return domain.PresenceRecord{
		RoomID:    r.session.RoomID,
		SessionID: r.session.ID.String(),
		UserID:    r.session.UserID,
		Online:    online,
		LastSeen:  r.now().UTC(),
	}
}
