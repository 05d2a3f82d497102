package handlers

import (
	"context"
	"livesync/internal/app/registry"
	"livesync/internal/app/server/ws"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"livesync/internal/core/services"
	"livesync/pkg/logging"
	"livesync/pkg/middleware"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WSOptions tunes the per-connection subscription and presence.
type WSOptions struct {
	PresenceTTL       time.Duration
	HeartbeatInterval time.Duration
	ReadLimit         int64
	// AllowedOrigins lists the browser origins accepted on upgrade. "*" accepts
	// any origin; empty keeps gorilla's same-host check.
	AllowedOrigins []string
}

type WSHandler struct {
	hub      *registry.Registry
	manager  services.IManagerService
	roomLog  contracts.MessageLog
	presence contracts.PresenceStore
	opts     WSOptions
	upgrader websocket.Upgrader
}

func NewWSHandler(
	hub *registry.Registry,
	manager services.IManagerService,
	roomLog contracts.MessageLog,
	presence contracts.PresenceStore,
	opts WSOptions,
) *WSHandler {
	return &WSHandler{
		hub:      hub,
		manager:  manager,
		roomLog:  roomLog,
		presence: presence,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// Handler serves GET /ws?room=<id>[&after=<ts>].
func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		log.ErrorContext(r.Context(), "ws handler - unauthorised missing user_id")
		http.Error(w, "Unauthorized: User ID missing", http.StatusUnauthorized)
		return
	}
	roomID := r.URL.Query().Get("room")
	if err := domain.ValidateRoomID(roomID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_room", err.Error())
		return
	}
	filter := services.NewAdmissionFilter(roomID)
	if raw := r.URL.Query().Get("after"); raw != "" {
		after, err := domain.ParseTimestamp(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_after", err.Error())
			return
		}
		filter = services.NewAdmissionFilterFrom(roomID, after)
	}
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("chat.room_id", roomID))

	// The socket outlives the request context once hijacked.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	session, err := s.manager.HandleConnect(ctx, userID, roomID)
	if err != nil {
		log.ErrorContext(ctx, "ws handler - handle connect - start session failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "session_unavailable", "could not start session")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(ctx, "ws handler - upgrade - ws upgrade failed", "err", err)
		_ = s.manager.HandleDisconnect(ctx, session)
		return
	}
	sessionID := session.ID.String()
	ctx, log = logging.Enrich(ctx, logging.Room(roomID), logging.Session(sessionID), logging.User(userID))
	socket := ws.NewWebSocket(ctx, conn, log)
	client := ws.NewClient(ctx, socket, sessionID, roomID)
	s.hub.Register(client)
	defer func() {
		s.hub.Unregister(client)
		client.Close()
		_ = s.manager.HandleDisconnect(context.WithoutCancel(ctx), session)
	}()
	s.hub.SendTo(ctx, sessionID, domain.HandshakeResponse{
		Type:      domain.TypeHandshake,
		SessionID: sessionID,
		RoomID:    roomID,
	})
	s.sendPresenceSnapshot(ctx, session)
	log.InfoContext(ctx, "ws handler - ws connection established")

	sink := &connSink{hub: s.hub, sessionID: sessionID}
	sub := services.NewSubscription(log, s.roomLog, filter, sink)
	if err := sub.Start(ctx, roomID); err != nil {
		log.ErrorContext(ctx, "ws handler - subscribe - room feed failed", "err", err)
		s.hub.SendTo(ctx, sessionID, domain.ErrorMessage{Type: domain.TypeError, Code: "subscribe_failed", Message: "room feed unavailable"})
		return
	}
	defer sub.Stop()

	// Socket lifecycle drives presence: true once accepted, the channel closes with the socket.
	reporter := services.NewPresenceReporter(log, s.presence, sink, *session, s.opts.PresenceTTL, s.opts.HeartbeatInterval)
	signal := make(chan bool, 1)
	signal <- true
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		reporter.Run(ctx, signal)
	}()
	go s.manager.HandleHeartbeat(ctx, session)

	// Frames of one connection are published in the order they were read.
	clean := socket.ReadLoop(s.opts.ReadLimit, func(data []byte) {
		_ = s.manager.HandleMessage(ctx, session, data)
	})
	close(signal)
	<-reporterDone
	if err := reporter.Leave(context.WithoutCancel(ctx)); err != nil {
		log.WarnContext(ctx, "ws handler - leave - offline write failed, sweeper will expire the session", "err", err)
	}
	log.InfoContext(ctx, "ws handler - ws connection closed", "clean", clean)
}

func (s *WSHandler) sendPresenceSnapshot(ctx context.Context, session *domain.Session) {
	recs, err := s.manager.HandlePresence(ctx, session.RoomID)
	if err != nil {
		return
	}
	for _, rec := range recs {
		s.hub.SendTo(ctx, session.ID.String(), domain.NewPresenceEvent(rec))
	}
}

// connSink routes one connection's feed and presence into the registry.
type connSink struct {
	hub       contracts.Registry
	sessionID string
}

func (c *connSink) OnMessage(ctx context.Context, msg domain.Message) {
	c.hub.SendTo(ctx, c.sessionID, domain.NewChatMessage(msg))
}

func (c *connSink) OnGap(ctx context.Context, roomID string, err error) {
	c.hub.SendTo(ctx, c.sessionID, domain.GapEvent{
		Type:    domain.TypeGap,
		RoomID:  roomID,
		Message: err.Error(),
	})
}

// OnPresence only tells the session itself; the room hears it through the presence relay.
func (c *connSink) OnPresence(ctx context.Context, rec domain.PresenceRecord) {
	c.hub.SendTo(ctx, c.sessionID, domain.NewPresenceEvent(rec))
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin.
		return origin == "" || set["*"] || set[origin]
	}
}
