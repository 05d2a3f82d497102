package postgres

import (
	"context"
	"database/sql"
	"errors"
	"livesync/internal/core/domain"

	"github.com/google/uuid"
)

type SessionRepo struct {
	db *sql.DB
}

var _ domain.SessionRepository = (*SessionRepo)(nil)

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) CreateSession(ctx context.Context, s *domain.Session) error {
	if s.ID == uuid.Nil {
		return domain.ErrInvalidSessionID
	}
	if err := domain.ValidateRoomID(s.RoomID); err != nil {
		return err
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO sessions (
			id, room_id, user_id, joined_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5)
	`,
		s.ID,
		s.RoomID,
		s.UserID,
		s.JoinedAt,
		s.LastSeenAt,
	)
	return err
}

func (r *SessionRepo) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	if id == uuid.Nil {
		return nil, domain.ErrInvalidSessionID
	}
	exec := GetExecutor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
		SELECT id, room_id, user_id, joined_at, last_seen_at, left_at
		FROM sessions
		WHERE id = $1
	`, id)
	var (
		s      domain.Session
		leftAt sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.RoomID,
		&s.UserID,
		&s.JoinedAt,
		&s.LastSeenAt,
		&leftAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	if leftAt.Valid {
		s.LeftAt = &leftAt.Time
	}
	return &s, nil
}

func (r *SessionRepo) TouchSession(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.ErrInvalidSessionID
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `
		UPDATE sessions
		SET last_seen_at = now()
		WHERE id = $1 AND left_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *SessionRepo) MarkLeft(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.ErrInvalidSessionID
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `
		UPDATE sessions
		SET left_at = now(), last_seen_at = now()
		WHERE id = $1 AND left_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}
