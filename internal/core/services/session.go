package services

import (
	"context"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type ISessionService interface {
	// StartSession records a new connection of userID to roomID.
	StartSession(ctx context.Context, userID string, roomID string) (*domain.Session, error)
	// StopSession marks the session as having left.
	StopSession(ctx context.Context, sessionID uuid.UUID) error
	// SessionSync flushes last_seen_at to durable storage.
	SessionSync(ctx context.Context, sessionID uuid.UUID) error
}

type SessionService struct {
	repo      domain.SessionRepository
	txManager contracts.Transactor
	log       *slog.Logger
}

func NewSessionService(
	log *slog.Logger,
	repo domain.SessionRepository,
	txManager contracts.Transactor,
) *SessionService {
	return &SessionService{
		log:       log,
		repo:      repo,
		txManager: txManager,
	}
}

func (s *SessionService) StartSession(
	ctx context.Context,
	userID string,
	roomID string,
) (*domain.Session, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	if err := domain.ValidateRoomID(roomID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	session := &domain.Session{
		ID:         uuid.New(),
		UserID:     userID,
		RoomID:     roomID,
		JoinedAt:   now,
		LastSeenAt: now,
	}
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.CreateSession(txCtx, session)
	}); err != nil {
		s.log.ErrorContext(ctx, "session - start session - create session failed", "room_id", roomID, "user_id", userID, "err", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "session - start session - create session success", "room_id", roomID, "user_id", userID, "session_id", session.ID)
	return session, nil
}

func (s *SessionService) StopSession(ctx context.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return domain.ErrInvalidSessionID
	}
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.MarkLeft(txCtx, sessionID)
	}); err != nil {
		s.log.ErrorContext(ctx, "session - stop session - mark left failed", "session_id", sessionID, "err", err)
		return err
	}
	s.log.InfoContext(ctx, "session - stop session - mark left success", "session_id", sessionID)
	return nil
}

func (s *SessionService) SessionSync(ctx context.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return domain.ErrInvalidSessionID
	}
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.TouchSession(txCtx, sessionID)
	}); err != nil {
		s.log.ErrorContext(ctx, "session - session sync - touch session failed", "session_id", sessionID, "err", err)
		return err
	}
	s.log.DebugContext(ctx, "session - session sync - touch session success", "session_id", sessionID)
	return nil
}
