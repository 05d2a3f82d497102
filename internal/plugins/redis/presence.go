package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotRegistered is returned by Heartbeat when the session has no pending
// cleanup, usually because the sweeper already applied it.
var ErrNotRegistered = errors.New("presence registration not found")

// sweepScript moves every expired registration of one room into the
// presence hash and returns the applied records.
//
// KEYS[1] alive zset, KEYS[2] ondisconnect hash, KEYS[3] presence hash
// ARGV[1] now in unix ms
var sweepScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local applied = {}
for _, sid in ipairs(expired) do
	local rec = redis.call('HGET', KEYS[2], sid)
	if rec then
		redis.call('HSET', KEYS[3], sid, rec)
		redis.call('HDEL', KEYS[2], sid)
		table.insert(applied, rec)
	end
	redis.call('ZREM', KEYS[1], sid)
end
return applied
`)

// heartbeatScript extends a registration only while it is still pending, so a
// sweep can never be undone by a heartbeat that raced it.
//
// KEYS[1] ondisconnect hash, KEYS[2] alive zset
// ARGV[1] session id, ARGV[2] new expiry in unix ms
var heartbeatScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

// RedisPresenceStore keeps one hash of records per room plus the pending
// cleanup each live session registered. Liveness is a zset scored by expiry.
type RedisPresenceStore struct {
	rdb *redis.Client
}

var _ contracts.PresenceStore = (*RedisPresenceStore)(nil)

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{
		rdb: rdb,
	}
}

func (p *RedisPresenceStore) OnDisconnect(ctx context.Context, rec domain.PresenceRecord, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	expiry := time.Now().Add(ttl).UnixMilli()
	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, onDisconnectKey(rec.RoomID), rec.SessionID, raw)
		pipe.ZAdd(ctx, aliveKey(rec.RoomID), redis.Z{Score: float64(expiry), Member: rec.SessionID})
		pipe.SAdd(ctx, presenceRoomsKey, rec.RoomID)
		return nil
	})
	return err
}

func (p *RedisPresenceStore) CancelOnDisconnect(ctx context.Context, roomID, sessionID string) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, onDisconnectKey(roomID), sessionID)
		pipe.ZRem(ctx, aliveKey(roomID), sessionID)
		return nil
	})
	return err
}

func (p *RedisPresenceStore) SetPresence(ctx context.Context, rec domain.PresenceRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, presenceKey(rec.RoomID), rec.SessionID, raw)
		pipe.SAdd(ctx, presenceRoomsKey, rec.RoomID)
		pipe.Publish(ctx, PresenceChannel(rec.RoomID), raw)
		return nil
	})
	return err
}

func (p *RedisPresenceStore) Heartbeat(ctx context.Context, roomID, sessionID string, ttl time.Duration) error {
	expiry := time.Now().Add(ttl).UnixMilli()
	keys := []string{onDisconnectKey(roomID), aliveKey(roomID)}
	extended, err := heartbeatScript.Run(ctx, p.rdb, keys, sessionID, strconv.FormatInt(expiry, 10)).Int()
	if err != nil {
		return err
	}
	if extended == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotRegistered, roomID, sessionID)
	}
	return nil
}

// GetPresence returns the room's records ordered by user then session.
func (p *RedisPresenceStore) GetPresence(ctx context.Context, roomID string) ([]domain.PresenceRecord, error) {
	all, err := p.rdb.HGetAll(ctx, presenceKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	recs := make([]domain.PresenceRecord, 0, len(all))
	for sid, raw := range all {
		var rec domain.PresenceRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode presence %s: %w", sid, err)
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].UserID != recs[j].UserID {
			return recs[i].UserID < recs[j].UserID
		}
		return recs[i].SessionID < recs[j].SessionID
	})
	return recs, nil
}

func (p *RedisPresenceStore) Sweep(ctx context.Context, now time.Time) ([]domain.PresenceRecord, error) {
	rooms, err := p.rdb.SMembers(ctx, presenceRoomsKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(rooms)
	var applied []domain.PresenceRecord
	for _, roomID := range rooms {
		keys := []string{aliveKey(roomID), onDisconnectKey(roomID), presenceKey(roomID)}
		raws, err := sweepScript.Run(ctx, p.rdb, keys, strconv.FormatInt(now.UnixMilli(), 10)).StringSlice()
		if err != nil && !errors.Is(err, redis.Nil) {
			return applied, fmt.Errorf("sweep room %s: %w", roomID, err)
		}
		for _, raw := range raws {
			var rec domain.PresenceRecord
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				return applied, fmt.Errorf("decode swept presence in %s: %w", roomID, err)
			}
			applied = append(applied, rec)
			if err := p.rdb.Publish(ctx, PresenceChannel(roomID), raw).Err(); err != nil {
				return applied, fmt.Errorf("publish swept presence in %s: %w", roomID, err)
			}
		}
	}
	return applied, nil
}

// Watch follows the room's presence channel. Records published while the
// connection is re-established are not replayed; GetPresence has the state.
func (p *RedisPresenceStore) Watch(ctx context.Context, roomID string) (<-chan domain.PresenceRecord, error) {
	if err := domain.ValidateRoomID(roomID); err != nil {
		return nil, err
	}
	sub := p.rdb.Subscribe(ctx, PresenceChannel(roomID))
	// Wait for the subscription so writes made after Watch returns are seen.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe presence %s: %w", roomID, err)
	}
	out := make(chan domain.PresenceRecord, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var rec domain.PresenceRecord
				if err := json.Unmarshal([]byte(m.Payload), &rec); err != nil {
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
