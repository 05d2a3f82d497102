package registry

import (
	"context"
	"encoding/json"
	"livesync/internal/core/contracts"
	"log/slog"
	"sync"
)

var _ contracts.Registry = (*Registry)(nil)

// Registry holds the websocket clients of this node. The first client of a
// room starts that room's background workers and the last one leaving stops them.
type Registry struct {
	mu         sync.RWMutex
	log        *slog.Logger
	clients    map[string]contracts.Client // session_id → client
	roomHub    map[string]map[string]contracts.Client
	workers    map[string]context.CancelFunc
	runWorkers []func(ctx context.Context, roomID string) error
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:     log,
		clients: make(map[string]contracts.Client),
		roomHub: make(map[string]map[string]contracts.Client),
		workers: make(map[string]context.CancelFunc),
	}
}

// RunWorker adds a function started once per active room. All workers must be added before Register.
func (h *Registry) RunWorker(runWorker func(ctx context.Context, roomID string) error) {
	h.runWorkers = append(h.runWorkers, runWorker)
}

func (h *Registry) Register(c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	roomID := c.RoomID()
	sessionID := c.SessionID()
	if h.roomHub[roomID] == nil {
		h.roomHub[roomID] = make(map[string]contracts.Client)
		if len(h.runWorkers) > 0 {
			ctx, cancel := context.WithCancel(context.Background())
			h.workers[roomID] = cancel
			for _, run := range h.runWorkers {
				go func() {
					if err := run(ctx, roomID); err != nil && ctx.Err() == nil {
						h.log.Error("registry - run worker - worker stopped", "room_id", roomID, "err", err)
					}
				}()
			}
		}
	}
	h.roomHub[roomID][sessionID] = c
	h.clients[sessionID] = c
}

func (h *Registry) Unregister(c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	roomID := c.RoomID()
	sessionID := c.SessionID()
	if h.clients[sessionID] != c {
		return
	}
	delete(h.roomHub[roomID], sessionID)
	delete(h.clients, sessionID)
	if len(h.roomHub[roomID]) == 0 {
		delete(h.roomHub, roomID)
		// stop worker
		if cancel := h.workers[roomID]; cancel != nil {
			cancel()
			delete(h.workers, roomID)
		}
	}
}

func (h *Registry) SendTo(ctx context.Context, sessionID string, frame any) {
	h.mu.RLock()
	c := h.clients[sessionID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.ErrorContext(ctx, "registry - send to - marshal failed", "session_id", sessionID, "err", err)
		return
	}
	if err := c.Send(ctx, data); err != nil {
		h.log.DebugContext(ctx, "registry - send to - client gone", "session_id", sessionID, "err", err)
	}
}

func (h *Registry) Broadcast(ctx context.Context, roomID string, frame any, exceptSessionID string) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.ErrorContext(ctx, "registry - broadcast - marshal failed", "room_id", roomID, "err", err)
		return
	}
	h.mu.RLock()
	targets := make([]contracts.Client, 0, len(h.roomHub[roomID]))
	for sid, c := range h.roomHub[roomID] {
		if sid == exceptSessionID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		_ = c.Send(ctx, data)
	}
}

// Shutdown stops every room worker and closes all clients.
func (h *Registry) Shutdown() {
	h.mu.Lock()
	clients := make([]contracts.Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	for roomID, cancel := range h.workers {
		cancel()
		delete(h.workers, roomID)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}
