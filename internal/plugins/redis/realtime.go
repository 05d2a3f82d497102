package redis

import (
	"context"
	"errors"
	"fmt"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldSender  = "sender"
	fieldSession = "session"
	fieldText    = "text"
)

// RedisMessageLog keeps each room as a capped stream. The entry ID Redis
// assigns on XADD is the message timestamp.
type RedisMessageLog struct {
	rdb     *redis.Client
	log     *slog.Logger
	maxLen  int64
	block   time.Duration
	backoff time.Duration
}

var _ contracts.MessageLog = (*RedisMessageLog)(nil)

func NewRedisMessageLog(rdb *redis.Client, log *slog.Logger, maxLen int64, block, backoff time.Duration) *RedisMessageLog {
	return &RedisMessageLog{
		rdb:     rdb,
		log:     log,
		maxLen:  maxLen,
		block:   block,
		backoff: backoff,
	}
}

func (l *RedisMessageLog) Append(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	id, err := l.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: logKey(draft.RoomID),
		MaxLen: l.maxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			fieldSender:  draft.SenderID,
			fieldSession: draft.SessionID.String(),
			fieldText:    draft.Text,
		},
	}).Result()
	if err != nil {
		return domain.Message{}, err
	}
	ts, err := domain.ParseTimestamp(id)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        id,
		RoomID:    draft.RoomID,
		SenderID:  draft.SenderID,
		SessionID: draft.SessionID,
		Text:      draft.Text,
		Timestamp: ts,
	}, nil
}

func (l *RedisMessageLog) Subscribe(ctx context.Context, roomID string, after domain.Timestamp) (<-chan domain.FeedEvent, error) {
	if err := domain.ValidateRoomID(roomID); err != nil {
		return nil, err
	}
	cursor := "0"
	if !after.IsZero() {
		cursor = after.String()
	}
	out := make(chan domain.FeedEvent, 16)
	go l.follow(ctx, roomID, after, cursor, out)
	return out, nil
}

func (l *RedisMessageLog) follow(ctx context.Context, roomID string, after domain.Timestamp, cursor string, out chan<- domain.FeedEvent) {
	defer close(out)
	key := logKey(roomID)
	if !after.IsZero() {
		trimmed, err := l.trimmedPast(ctx, key, after)
		if err != nil && ctx.Err() == nil {
			l.log.WarnContext(ctx, "redis - room log - trim check failed", "room_id", roomID, "cursor", cursor, "err", err)
		}
		if trimmed {
			l.log.WarnContext(ctx, "redis - room log - cursor older than retained entries", "room_id", roomID, "cursor", cursor)
			gap := fmt.Errorf("%w: entries after %s were trimmed", domain.ErrDeliveryGap, cursor)
			if !emit(ctx, out, domain.FeedEvent{Kind: domain.Gap, Err: gap}) {
				return
			}
		}
	}
	broken := false
	for ctx.Err() == nil {
		res, err := l.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{key, cursor},
			Count:   100,
			Block:   l.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			broken = false
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// One gap per outage; the loop keeps retrying from the same cursor.
			if !broken {
				broken = true
				l.log.WarnContext(ctx, "redis - room log - read failed", "room_id", roomID, "cursor", cursor, "err", err)
				if !emit(ctx, out, domain.FeedEvent{Kind: domain.Gap, Err: fmt.Errorf("%w: %w", domain.ErrDeliveryGap, err)}) {
					return
				}
			}
			if !sleep(ctx, l.backoff) {
				return
			}
			continue
		}
		if broken {
			l.log.InfoContext(ctx, "redis - room log - resumed", "room_id", roomID, "cursor", cursor)
			broken = false
		}
		for _, stream := range res {
			for _, entry := range stream.Messages {
				cursor = entry.ID
				msg, err := decodeEntry(roomID, entry)
				if err != nil {
					l.log.ErrorContext(ctx, "redis - room log - skip malformed entry", "room_id", roomID, "id", entry.ID, "err", err)
					continue
				}
				if !emit(ctx, out, domain.FeedEvent{Kind: domain.ChildAdded, Message: msg}) {
					return
				}
			}
		}
	}
}

// trimmedPast reports whether entries after the cursor may have been cut
// from the stream. A cursor that is itself still retained never is; a
// missing cursor counts when the oldest retained entry is newer than it.
func (l *RedisMessageLog) trimmedPast(ctx context.Context, key string, after domain.Timestamp) (bool, error) {
	cursor := after.String()
	at, err := l.rdb.XRange(ctx, key, cursor, cursor).Result()
	if err != nil {
		return false, err
	}
	if len(at) > 0 {
		return false, nil
	}
	first, err := l.rdb.XRangeN(ctx, key, "-", "+", 1).Result()
	if err != nil || len(first) == 0 {
		return false, err
	}
	oldest, err := domain.ParseTimestamp(first[0].ID)
	if err != nil {
		return false, err
	}
	return oldest.Compare(after) > 0, nil
}

func decodeEntry(roomID string, entry redis.XMessage) (domain.Message, error) {
	ts, err := domain.ParseTimestamp(entry.ID)
	if err != nil {
		return domain.Message{}, err
	}
	text, ok := entry.Values[fieldText].(string)
	if !ok {
		return domain.Message{}, fmt.Errorf("entry %s has no text", entry.ID)
	}
	sender, _ := entry.Values[fieldSender].(string)
	msg := domain.Message{
		ID:        entry.ID,
		RoomID:    roomID,
		SenderID:  sender,
		Text:      text,
		Timestamp: ts,
	}
	if raw, ok := entry.Values[fieldSession].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			msg.SessionID = id
		}
	}
	return msg, nil
}

func emit(ctx context.Context, out chan<- domain.FeedEvent, ev domain.FeedEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
