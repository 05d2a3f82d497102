package services

import (
	"context"
	"fmt"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"log/slog"
	"sync"
)

// MessageSink is the UI side of a subscription.
type MessageSink interface {
	// OnMessage receives admitted messages, in admission order.
	OnMessage(ctx context.Context, msg domain.Message)
	// OnGap is told that the feed dropped and resumed; err wraps domain.ErrDeliveryGap.
	OnGap(ctx context.Context, roomID string, err error)
}

// Subscription binds one room feed to one admission filter and one sink.
// Notifications are handled one at a time in delivery order.
type Subscription struct {
	log    *slog.Logger
	store  contracts.MessageLog
	filter *AdmissionFilter
	sink   MessageSink

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSubscription(log *slog.Logger, store contracts.MessageLog, filter *AdmissionFilter, sink MessageSink) *Subscription {
	done := make(chan struct{})
	close(done)
	return &Subscription{
		log:    log,
		store:  store,
		filter: filter,
		sink:   sink,
		done:   done,
	}
}

// Start subscribes to roomID from the filter's high-water mark.
func (s *Subscription) Start(ctx context.Context, roomID string) error {
	if err := domain.ValidateRoomID(roomID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
	default:
		return domain.ErrAlreadySubscribed
	}
	after, _ := s.filter.LastSeen()
	ctx, cancel := context.WithCancel(ctx)
	feed, err := s.store.Subscribe(ctx, roomID, after)
	if err != nil {
		cancel()
		s.log.ErrorContext(ctx, "subscription - start - subscribe failed", "room_id", roomID, "err", err)
		return fmt.Errorf("subscribe %s: %w", roomID, err)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.deliver(ctx, roomID, feed, s.done)
	s.log.InfoContext(ctx, "subscription - start - subscribed", "room_id", roomID, "after", after.String())
	return nil
}

// Stop cancels the feed and waits for delivery to end. Safe to call more than once.
func (s *Subscription) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-done
}

// Done is closed once delivery has ended.
func (s *Subscription) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Subscription) Filter() *AdmissionFilter {
	return s.filter
}

func (s *Subscription) deliver(ctx context.Context, roomID string, feed <-chan domain.FeedEvent, done chan struct{}) {
	defer close(done)
	for ev := range feed {
		switch ev.Kind {
		case domain.ChildAdded:
			if !s.filter.Admit(ev.Message.Timestamp) {
				s.log.DebugContext(ctx, "subscription - deliver - dropped stale message", "room_id", ev.Message.RoomID, "message_id", ev.Message.ID)
				continue
			}
			s.sink.OnMessage(ctx, ev.Message)
		case domain.Gap:
			err := ev.Err
			if err == nil {
				err = domain.ErrDeliveryGap
			}
			s.log.WarnContext(ctx, "subscription - deliver - delivery gap", "room_id", roomID, "err", err)
			s.sink.OnGap(ctx, roomID, err)
		}
	}
	s.log.InfoContext(ctx, "subscription - deliver - feed closed", "room_id", roomID)
}
