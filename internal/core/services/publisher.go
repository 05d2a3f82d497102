package services

import (
	"context"
	"fmt"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var publishFailures, _ = meter.Int64Counter("livesync.publish.failures",
	metric.WithDescription("Publishes rejected by the store or timed out"))

// PublishResult is delivered once per asynchronous publish.
type PublishResult struct {
	Message domain.Message
	Err     error
}

type IPublisher interface {
	// Publish appends the draft to the room log and waits for the commit.
	Publish(ctx context.Context, draft domain.Draft) (domain.Message, error)
	// PublishAsync is the fire-and-forget form; failures arrive on the returned channel.
	PublishAsync(ctx context.Context, draft domain.Draft) <-chan PublishResult
}

type Publisher struct {
	log      *slog.Logger
	store    contracts.MessageLog
	timeout  time.Duration
	maxBytes int
}

func NewPublisher(log *slog.Logger, store contracts.MessageLog, timeout time.Duration, maxBytes int) *Publisher {
	return &Publisher{
		log:      log,
		store:    store,
		timeout:  timeout,
		maxBytes: maxBytes,
	}
}

func (p *Publisher) Publish(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	ctx, span := tracer.Start(ctx, "Publisher.Publish", trace.WithAttributes(
		attribute.String("room_id", draft.RoomID),
		attribute.String("sender_id", draft.SenderID),
		attribute.Int("text_size", len(draft.Text)),
	))
	defer span.End()
	if err := p.validate(draft); err != nil {
		span.RecordError(err)
		p.log.WarnContext(ctx, "publisher - publish - rejected draft", "room_id", draft.RoomID, "sender_id", draft.SenderID, "err", err)
		return domain.Message{}, err
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	msg, err := p.store.Append(ctx, draft)
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrWriteFailure, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		publishFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("room", draft.RoomID)))
		p.log.ErrorContext(ctx, "publisher - publish - append failed", "room_id", draft.RoomID, "sender_id", draft.SenderID, "err", err)
		return domain.Message{}, err
	}
	span.SetAttributes(attribute.String("message_id", msg.ID))
	p.log.DebugContext(ctx, "publisher - publish - append success", "room_id", draft.RoomID, "message_id", msg.ID)
	return msg, nil
}

func (p *Publisher) PublishAsync(ctx context.Context, draft domain.Draft) <-chan PublishResult {
	out := make(chan PublishResult, 1)
	go func() {
		defer close(out)
		msg, err := p.Publish(ctx, draft)
		out <- PublishResult{Message: msg, Err: err}
	}()
	return out
}

func (p *Publisher) validate(draft domain.Draft) error {
	if err := domain.ValidateRoomID(draft.RoomID); err != nil {
		return err
	}
	if draft.Text == "" {
		return domain.ErrEmptyMessage
	}
	if p.maxBytes > 0 && len(draft.Text) > p.maxBytes {
		return fmt.Errorf("%w: %d > %d bytes", domain.ErrMessageTooLarge, len(draft.Text), p.maxBytes)
	}
	return nil
}
