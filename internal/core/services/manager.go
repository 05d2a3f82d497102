package services

import (
	"context"
	"encoding/json"
	"errors"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"livesync/pkg/logging"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type IManagerService interface {
	// HandleConnect validates the request and starts a durable session
	HandleConnect(ctx context.Context, userID, roomID string) (*domain.Session, error)
	// HandleMessage publishes an inbound frame and acks the sender with the commit result
	HandleMessage(ctx context.Context, session *domain.Session, raw []byte) error
	// HandleHeartbeat flushes last_seen_at every sync interval until ctx ends
	HandleHeartbeat(ctx context.Context, session *domain.Session)
	// HandleDisconnect performs the final durable last_seen_at / left_at update
	HandleDisconnect(ctx context.Context, session *domain.Session) error
	HandleHistory(ctx context.Context, roomID string, after domain.Timestamp, limit int) ([]domain.Message, error)
	HandlePresence(ctx context.Context, roomID string) ([]domain.PresenceRecord, error)
}

var tracer = otel.Tracer("livesync/services")

type ManagerService struct {
	session      ISessionService
	publisher    IPublisher
	archive      domain.MessageArchive
	presStore    contracts.PresenceStore
	registry     contracts.Registry
	historyLimit int
	syncInterval time.Duration
	log          *slog.Logger
}

func NewManagerService(
	log *slog.Logger,
	session ISessionService,
	publisher IPublisher,
	archive domain.MessageArchive,
	presStore contracts.PresenceStore,
	registry contracts.Registry,
	historyLimit int,
	syncInterval time.Duration,
) *ManagerService {
	return &ManagerService{
		log:          log,
		session:      session,
		publisher:    publisher,
		archive:      archive,
		presStore:    presStore,
		registry:     registry,
		historyLimit: historyLimit,
		syncInterval: syncInterval,
	}
}

func (m *ManagerService) HandleConnect(ctx context.Context, userID, roomID string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "ManagerService.HandleConnect", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("room_id", roomID),
	))
	defer span.End()
	if userID == "" {
		span.RecordError(domain.ErrInvalidUserID)
		return nil, domain.ErrInvalidUserID
	}
	if err := domain.ValidateRoomID(roomID); err != nil {
		span.RecordError(err)
		m.log.ErrorContext(ctx, "manager - handle connect - wrong room_id", "room_id", roomID, "user_id", userID, "err", err)
		return nil, err
	}
	session, err := m.session.StartSession(ctx, userID, roomID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start session failed")
		m.log.ErrorContext(ctx, "manager - handle connect - start session failed", "room_id", roomID, "user_id", userID, "err", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("session_id", session.ID.String()))
	span.SetStatus(codes.Ok, "connected")
	return session, nil
}

func (m *ManagerService) HandleMessage(ctx context.Context, session *domain.Session, raw []byte) error {
	ctx, span := tracer.Start(ctx, "ManagerService.HandleMessage", trace.WithAttributes(
		attribute.String("session_id", session.ID.String()),
		attribute.String("room_id", session.RoomID),
		attribute.Int("payload_size", len(raw)),
	))
	defer span.End()
	var in domain.InboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		span.RecordError(err)
		m.log.ErrorContext(ctx, "manager - handle message - wrong format", "session_id", session.ID, "room_id", session.RoomID, "err", err)
		m.registry.SendTo(ctx, session.ID.String(), domain.ErrorMessage{
			Type:    domain.TypeError,
			Code:    "bad_frame",
			Message: "frame is not a valid message",
		})
		return err
	}
	msg, err := m.publisher.Publish(ctx, domain.Draft{
		RoomID:    session.RoomID,
		SenderID:  session.UserID,
		SessionID: session.ID,
		Text:      in.Text,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		m.log.WarnContext(ctx, "manager - handle message - publish failed",
			logging.Room(session.RoomID), logging.Session(session.ID.String()), logging.ClientMsg(in.ClientMsgID), logging.Err(err))
		m.registry.SendTo(ctx, session.ID.String(), domain.AckMessage{
			Type:        domain.TypeAck,
			ClientMsgID: in.ClientMsgID,
			Status:      domain.AckFailed,
			Code:        errorCode(err),
		})
		return err
	}
	m.log.DebugContext(ctx, "manager - handle message - committed",
		logging.Room(session.RoomID), logging.ClientMsg(in.ClientMsgID), logging.Timestamp(msg.Timestamp.Millis, msg.Timestamp.Seq))
	m.registry.SendTo(ctx, session.ID.String(), domain.AckMessage{
		Type:        domain.TypeAck,
		ClientMsgID: in.ClientMsgID,
		Status:      domain.AckCommitted,
		ID:          msg.ID,
		Timestamp:   msg.Timestamp.Millis,
		Seq:         msg.Timestamp.Seq,
	})
	return nil
}

func (m *ManagerService) HandleHeartbeat(ctx context.Context, session *domain.Session) {
	if m.syncInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("manager - handle heartbeat - stopped", "room_id", session.RoomID, "session_id", session.ID)
			return
		case <-ticker.C:
			_, span := tracer.Start(ctx, "Heartbeat.SessionSync")
			if err := m.session.SessionSync(ctx, session.ID); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "session sync failed")
				m.log.ErrorContext(ctx, "manager - handle heartbeat - session sync failed", "room_id", session.RoomID, "session_id", session.ID, "err", err)
			}
			span.End()
		}
	}
}

func (m *ManagerService) HandleDisconnect(ctx context.Context, session *domain.Session) error {
	ctx, span := tracer.Start(ctx, "ManagerService.HandleDisconnect", trace.WithAttributes(
		attribute.String("session_id", session.ID.String()),
		attribute.String("room_id", session.RoomID),
	))
	defer span.End()
	if err := m.session.StopSession(ctx, session.ID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		span.RecordError(err)
		m.log.ErrorContext(ctx, "manager - handle disconnect - stop session failed", "room_id", session.RoomID, "session_id", session.ID, "err", err)
		return err
	}
	return nil
}

func (m *ManagerService) HandleHistory(ctx context.Context, roomID string, after domain.Timestamp, limit int) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "ManagerService.HandleHistory", trace.WithAttributes(
		attribute.String("room_id", roomID),
		attribute.String("after", after.String()),
	))
	defer span.End()
	if err := domain.ValidateRoomID(roomID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if limit <= 0 || limit > m.historyLimit {
		limit = m.historyLimit
	}
	msgs, err := m.archive.History(ctx, roomID, after, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db read failed")
		m.log.ErrorContext(ctx, "manager - handle history - read archive failed", "room_id", roomID, "err", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("message_count", len(msgs)))
	m.log.InfoContext(ctx, "manager - handle history - read archive success", "room_id", roomID, "len_messages", len(msgs))
	return msgs, nil
}

func (m *ManagerService) HandlePresence(ctx context.Context, roomID string) ([]domain.PresenceRecord, error) {
	ctx, span := tracer.Start(ctx, "ManagerService.HandlePresence", trace.WithAttributes(
		attribute.String("room_id", roomID),
	))
	defer span.End()
	if err := domain.ValidateRoomID(roomID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	recs, err := m.presStore.GetPresence(ctx, roomID)
	if err != nil {
		span.RecordError(err)
		m.log.ErrorContext(ctx, "manager - handle presence - get presence failed", "room_id", roomID, "err", err)
		return nil, err
	}
	return recs, nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, domain.ErrMessageTooLarge):
		return "message_too_large"
	case errors.Is(err, domain.ErrInvalidRoomID):
		return "invalid_room"
	case errors.Is(err, domain.ErrWriteFailure):
		return "write_failure"
	default:
		return "internal"
	}
}
