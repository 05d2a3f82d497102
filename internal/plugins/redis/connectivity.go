package redis

import (
	"context"
	"livesync/internal/core/contracts"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectivityMonitor derives this process's link state from PING round trips.
type ConnectivityMonitor struct {
	rdb      *redis.Client
	log      *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

var _ contracts.ConnectivitySource = (*ConnectivityMonitor)(nil)

func NewConnectivityMonitor(rdb *redis.Client, log *slog.Logger, interval, timeout time.Duration) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		rdb:      rdb,
		log:      log,
		interval: interval,
		timeout:  timeout,
	}
}

func (m *ConnectivityMonitor) Watch(ctx context.Context) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		var last, seen bool
		for {
			online := m.probe(ctx)
			if ctx.Err() != nil {
				return
			}
			if !seen || online != last {
				seen, last = true, online
				m.log.InfoContext(ctx, "redis - connectivity - changed", "online", online)
				select {
				case out <- online:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func (m *ConnectivityMonitor) probe(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.rdb.Ping(pingCtx).Err(); err != nil {
		m.log.DebugContext(ctx, "redis - connectivity - ping failed", "err", err)
		return false
	}
	return true
}
