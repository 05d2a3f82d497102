// Package client is the direct room client: it publishes to and follows a
// room log in Redis and reports its own presence, without the gateway.
package client

import (
	"context"
	"errors"
	"livesync/internal/config"
	"livesync/internal/core/domain"
	"livesync/internal/core/services"
	redisplugin "livesync/internal/plugins/redis"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// UI receives everything the client observes.
type UI interface {
	services.MessageSink
	services.PresenceSink
}

type Config struct {
	RoomID   string
	UserID   string
	Realtime config.RealtimeConfig
	Presence config.PresenceConfig
}

type Client struct {
	log          *slog.Logger
	session      domain.Session
	publisher    *services.Publisher
	subscription *services.Subscription
	reporter     *services.PresenceReporter
	store        *redisplugin.RedisPresenceStore
	ui           UI
	connectivity *redisplugin.ConnectivityMonitor

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

func New(cfg Config, rdb *redis.Client, log *slog.Logger, ui UI) (*Client, error) {
	if cfg.UserID == "" {
		return nil, domain.ErrInvalidUserID
	}
	if err := domain.ValidateRoomID(cfg.RoomID); err != nil {
		return nil, err
	}
	session := domain.Session{
		ID:     uuid.New(),
		UserID: cfg.UserID,
		RoomID: cfg.RoomID,
	}
	log = log.With("room_id", session.RoomID, "session_id", session.ID.String(), "user_id", session.UserID)
	roomLog := redisplugin.NewRedisMessageLog(rdb, log, cfg.Realtime.StreamMaxLen, cfg.Realtime.ReadBlock, cfg.Realtime.ResumeBackoff)
	store := redisplugin.NewRedisPresenceStore(rdb)
	return &Client{
		log:          log,
		session:      session,
		publisher:    services.NewPublisher(log, roomLog, cfg.Realtime.PublishTimeout, cfg.Realtime.MaxMessageBytes),
		subscription: services.NewSubscription(log, roomLog, services.NewAdmissionFilter(cfg.RoomID), ui),
		reporter:     services.NewPresenceReporter(log, store, ui, session, cfg.Presence.TTL, cfg.Presence.HeartbeatInterval),
		store:        store,
		ui:           ui,
		connectivity: redisplugin.NewConnectivityMonitor(rdb, log, cfg.Presence.ProbeInterval, cfg.Presence.ProbeTimeout),
	}, nil
}

func (c *Client) Session() domain.Session { return c.session }

// Start subscribes to the room, follows the presence of the other sessions
// and begins reporting its own presence from the connectivity monitor. It
// returns once both subscriptions are in place.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return domain.ErrAlreadySubscribed
	}
	ctx, cancel := context.WithCancel(ctx)
	// Watch before the snapshot so no write falls between the two.
	others, err := c.store.Watch(ctx, c.session.RoomID)
	if err != nil {
		cancel()
		return err
	}
	snapshot, err := c.store.GetPresence(ctx, c.session.RoomID)
	if err != nil {
		cancel()
		return err
	}
	if err := c.subscription.Start(ctx, c.session.RoomID); err != nil {
		cancel()
		return err
	}
	c.cancel = cancel
	self := c.session.ID.String()
	for _, rec := range snapshot {
		if rec.SessionID != self {
			c.ui.OnPresence(ctx, rec)
		}
	}
	c.running.Add(2)
	go func() {
		defer c.running.Done()
		for rec := range others {
			if rec.SessionID != self {
				c.ui.OnPresence(ctx, rec)
			}
		}
	}()
	signal := c.connectivity.Watch(ctx)
	go func() {
		defer c.running.Done()
		c.reporter.Run(ctx, signal)
	}()
	c.log.InfoContext(ctx, "client - start - joined room")
	return nil
}

// Send publishes text as this session. The channel yields exactly one result.
func (c *Client) Send(ctx context.Context, text string) <-chan services.PublishResult {
	return c.publisher.PublishAsync(ctx, domain.Draft{
		RoomID:    c.session.RoomID,
		SenderID:  c.session.UserID,
		SessionID: c.session.ID,
		Text:      text,
	})
}

// Status is the local connectivity view.
func (c *Client) Status() (domain.ConnectivityState, error) {
	return c.reporter.Status()
}

// Close leaves the room: it stops the feed and writes the offline record.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	c.running.Wait()
	c.subscription.Stop()
	err := c.reporter.Leave(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.WarnContext(ctx, "client - close - leave failed", "err", err)
		return err
	}
	c.log.InfoContext(ctx, "client - close - left room")
	return nil
}
