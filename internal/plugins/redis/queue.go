package redis

import (
	"context"
	"errors"
	"fmt"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisArchiveQueue reads the room logs through a consumer group. Entries are
// never deleted here; the log is capped by XADD MAXLEN.
type RedisArchiveQueue struct {
	rdb      *redis.Client
	log      *slog.Logger
	consumer string
	block    time.Duration
	backoff  time.Duration
}

var _ contracts.ArchiveQueue = (*RedisArchiveQueue)(nil)

func NewRedisArchiveQueue(rdb *redis.Client, log *slog.Logger, consumer string, block, backoff time.Duration) *RedisArchiveQueue {
	return &RedisArchiveQueue{
		rdb:      rdb,
		log:      log,
		consumer: consumer,
		block:    block,
		backoff:  backoff,
	}
}

func (q *RedisArchiveQueue) Consume(
	ctx context.Context,
	roomID string,
	group string,
	handler func(ctx context.Context, msg domain.Message) error,
) error {
	key := logKey(roomID)
	// Create group if not exists
	err := q.rdb.XGroupCreateMkStream(ctx, key, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	// Entries this consumer read but never acked are replayed once, then new ones.
	cursor := "0"
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		args := &redis.XReadGroupArgs{
			Group:    group,
			Consumer: q.consumer,
			Streams:  []string{key, cursor},
			Count:    50,
		}
		if cursor == ">" {
			args.Block = q.block
		}
		res, err := q.rdb.XReadGroup(ctx, args).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.log.WarnContext(ctx, "redis - archive queue - read failed", "room_id", roomID, "group", group, "err", err)
			if !sleep(ctx, q.backoff) {
				return ctx.Err()
			}
			continue
		}
		n := 0
		for _, stream := range res {
			for _, entry := range stream.Messages {
				n++
				if cursor != ">" {
					cursor = entry.ID
				}
				msg, err := decodeEntry(roomID, entry)
				if err != nil {
					// Poison entry: ack so it does not come back on every restart.
					q.log.ErrorContext(ctx, "redis - archive queue - drop malformed entry", "room_id", roomID, "id", entry.ID, "err", err)
					_ = q.Ack(ctx, roomID, group, entry.ID)
					continue
				}
				if err := handler(ctx, msg); err != nil {
					q.log.ErrorContext(ctx, "redis - archive queue - handler failed", "room_id", roomID, "id", entry.ID, "err", err)
					continue
				}
				if err := q.Ack(ctx, roomID, group, entry.ID); err != nil {
					q.log.ErrorContext(ctx, "redis - archive queue - ack failed", "room_id", roomID, "id", entry.ID, "err", err)
				}
			}
		}
		if cursor != ">" && n == 0 {
			cursor = ">"
		}
	}
}

func (q *RedisArchiveQueue) Ack(ctx context.Context, roomID, group, entryID string) error {
	return q.rdb.XAck(ctx, logKey(roomID), group, entryID).Err()
}
