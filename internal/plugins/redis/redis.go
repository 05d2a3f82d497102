package redis

import (
	"context"
	"fmt"
	"livesync/internal/config"
	"strings"

	"github.com/redis/go-redis/v9"
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	rdb := redis.NewClient(opts)
	if cfg.PingTimeout <= 0 {
		return rdb, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Key layout. Every key of a room shares the {room} hash tag so the
// presence script touches a single slot.
func logKey(roomID string) string          { return "room:{" + roomID + "}:log" }
func presenceKey(roomID string) string     { return "presence:{" + roomID + "}" }
func aliveKey(roomID string) string        { return "presence:{" + roomID + "}:alive" }
func onDisconnectKey(roomID string) string { return "presence:{" + roomID + "}:ondisconnect" }

// PresenceChannel is the pub/sub channel every presence write of the room is published on.
func PresenceChannel(roomID string) string { return "presence:{" + roomID + "}:events" }

const presenceRoomsKey = "presence:rooms"

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
