package postgres

import (
	"context"
	"database/sql"
	"livesync/internal/core/domain"

	"github.com/google/uuid"
)

type MessageRepo struct {
	db *sql.DB
}

var _ domain.MessageArchive = (*MessageRepo)(nil)

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{
		db: db,
	}
}

// Save inserts the committed message. The room log may hand the same entry
// over more than once, so an existing (room, timestamp) row is left as is.
func (r *MessageRepo) Save(ctx context.Context, msg *domain.Message) error {
	if err := domain.ValidateRoomID(msg.RoomID); err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		return domain.ErrMalformedTimestamp
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO messages (
			room_id, ts_millis, ts_seq, sender_id, session_id, body
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id, ts_millis, ts_seq) DO NOTHING
	`,
		msg.RoomID,
		msg.Timestamp.Millis,
		msg.Timestamp.Seq,
		msg.SenderID,
		uuid.NullUUID{UUID: msg.SessionID, Valid: msg.SessionID != uuid.Nil},
		msg.Text,
	)
	return err
}

func (r *MessageRepo) History(
	ctx context.Context,
	roomID string,
	after domain.Timestamp,
	limit int,
) ([]domain.Message, error) {
	if err := domain.ValidateRoomID(roomID); err != nil {
		return nil, err
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT room_id, ts_millis, ts_seq, sender_id, session_id, body
		FROM messages
		WHERE room_id = $1
		AND (ts_millis, ts_seq) > ($2, $3)
		ORDER BY ts_millis ASC, ts_seq ASC
		LIMIT $4
	`, roomID, after.Millis, after.Seq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		var (
			m       domain.Message
			session uuid.NullUUID
		)
		if err := rows.Scan(
			&m.RoomID,
			&m.Timestamp.Millis,
			&m.Timestamp.Seq,
			&m.SenderID,
			&session,
			&m.Text,
		); err != nil {
			return nil, err
		}
		m.ID = m.Timestamp.String()
		if session.Valid {
			m.SessionID = session.UUID
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
