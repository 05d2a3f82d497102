package postgres

import (
	"context"
	"database/sql"
	"errors"
	"livesync/internal/config"
	"livesync/internal/core/domain"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestMigrate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS messages").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, Migrate(context.Background(), db))
}

func TestMessageRepo_SaveIsIdempotentInsert(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMessageRepo(db)
	sess := uuid.New()

	mock.ExpectExec(`INSERT INTO messages .* ON CONFLICT \(room_id, ts_millis, ts_seq\) DO NOTHING`).
		WithArgs("general", 1700, 2, "ana", sess.String(), "hi").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WithArgs("general", 1700, 3, "bob", nil, "anon").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Save(context.Background(), &domain.Message{
		RoomID: "general", SenderID: "ana", SessionID: sess, Text: "hi",
		Timestamp: domain.Timestamp{Millis: 1700, Seq: 2},
	}))
	require.NoError(t, repo.Save(context.Background(), &domain.Message{
		RoomID: "general", SenderID: "bob", Text: "anon",
		Timestamp: domain.Timestamp{Millis: 1700, Seq: 3},
	}))
}

func TestMessageRepo_SaveValidates(t *testing.T) {
	db, _ := newMock(t)
	repo := NewMessageRepo(db)

	err := repo.Save(context.Background(), &domain.Message{RoomID: "general", Text: "x"})
	assert.ErrorIs(t, err, domain.ErrMalformedTimestamp)
	err = repo.Save(context.Background(), &domain.Message{RoomID: "", Timestamp: domain.Timestamp{Millis: 1}})
	assert.ErrorIs(t, err, domain.ErrInvalidRoomID)
}

func TestMessageRepo_History(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMessageRepo(db)
	sess := uuid.New()

	rows := sqlmock.NewRows([]string{"room_id", "ts_millis", "ts_seq", "sender_id", "session_id", "body"}).
		AddRow("general", int64(1700), int64(0), "ana", sess.String(), "first").
		AddRow("general", int64(1700), int64(1), "bob", nil, "second")
	mock.ExpectQuery(`SELECT .* FROM messages .* ORDER BY ts_millis ASC, ts_seq ASC`).
		WithArgs("general", 1600, 0, 10).
		WillReturnRows(rows)

	msgs, err := repo.History(context.Background(), "general", domain.Timestamp{Millis: 1600}, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "1700-0", msgs[0].ID)
	assert.Equal(t, sess, msgs[0].SessionID)
	assert.Equal(t, domain.Timestamp{Millis: 1700, Seq: 1}, msgs[1].Timestamp)
	assert.Equal(t, uuid.Nil, msgs[1].SessionID)
}

func TestSessionRepo_Lifecycle(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	s := &domain.Session{ID: uuid.New(), UserID: "ana", RoomID: "general", JoinedAt: now, LastSeenAt: now}

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(s.ID.String(), "general", "ana", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sessions SET last_seen_at").
		WithArgs(s.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sessions SET left_at").
		WithArgs(s.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sessions SET left_at").
		WithArgs(s.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.CreateSession(ctx, s))
	require.NoError(t, repo.TouchSession(ctx, s.ID))
	require.NoError(t, repo.MarkLeft(ctx, s.ID))
	assert.ErrorIs(t, repo.MarkLeft(ctx, s.ID), domain.ErrSessionNotFound)
}

func TestSessionRepo_GetSession(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)
	id := uuid.New()
	joined := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	left := joined.Add(time.Hour)

	mock.ExpectQuery("SELECT .* FROM sessions").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "user_id", "joined_at", "last_seen_at", "left_at"}).
			AddRow(id.String(), "general", "ana", joined, left, left))
	mock.ExpectQuery("SELECT .* FROM sessions").
		WithArgs(id.String()).
		WillReturnError(sql.ErrNoRows)

	s, err := repo.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	require.NotNil(t, s.LeftAt)
	assert.True(t, left.Equal(*s.LeftAt))

	_, err = repo.GetSession(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestTxManager_CommitAndRollback(t *testing.T) {
	db, mock := newMock(t)
	tm := NewTxManager(db)
	repo := NewSessionRepo(db)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sessions SET last_seen_at").WithArgs(id.String()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.WithTx(context.Background(), func(ctx context.Context) error {
		// nested call joins the outer transaction
		return tm.WithTx(ctx, func(ctx context.Context) error {
			return repo.TouchSession(ctx, id)
		})
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tm.WithTx(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestNew_RejectsEmptyDSN(t *testing.T) {
	_, err := New(context.Background(), config.PostgresConfig{})
	require.Error(t, err)
}
