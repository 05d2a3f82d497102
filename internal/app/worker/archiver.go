package worker

import (
	"context"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("livesync/worker")

// ArchiveWorker copies a room log into the durable archive through a
// consumer group, so each entry is stored by one node and acked after.
type ArchiveWorker struct {
	log      *slog.Logger
	queue    contracts.ArchiveQueue
	archive  domain.MessageArchive
	conGroup string
}

var _ contracts.AsyncWorker = (*ArchiveWorker)(nil)

func NewArchiveWorker(
	log *slog.Logger,
	queue contracts.ArchiveQueue,
	archive domain.MessageArchive,
	conGroup string,
) *ArchiveWorker {
	return &ArchiveWorker{
		log:      log,
		queue:    queue,
		archive:  archive,
		conGroup: conGroup,
	}
}

func (w *ArchiveWorker) Run(ctx context.Context, roomID string) error {
	w.log.InfoContext(ctx, "worker - archive - consume started", "room_id", roomID, "group", w.conGroup)
	err := w.queue.Consume(ctx, roomID, w.conGroup, w.ProcessMessage)
	w.log.InfoContext(ctx, "worker - archive - consume stopped", "room_id", roomID, "group", w.conGroup)
	return err
}

// ProcessMessage stores one entry. Returning an error leaves it pending for redelivery.
func (w *ArchiveWorker) ProcessMessage(ctx context.Context, msg domain.Message) error {
	ctx, span := tracer.Start(ctx, "ArchiveWorker.ProcessMessage", trace.WithAttributes(
		attribute.String("room_id", msg.RoomID),
		attribute.String("message_id", msg.ID),
	))
	defer span.End()
	if err := w.archive.Save(ctx, &msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		w.log.ErrorContext(ctx, "worker - process message - save failed", "room_id", msg.RoomID, "message_id", msg.ID, "err", err)
		return err
	}
	w.log.DebugContext(ctx, "worker - process message - save success", "room_id", msg.RoomID, "message_id", msg.ID)
	return nil
}
