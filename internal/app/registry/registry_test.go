package registry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	sessionID, roomID string

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *stubClient) SessionID() string { return c.sessionID }
func (c *stubClient) RoomID() string    { return c.roomID }

func (c *stubClient) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *stubClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *stubClient) received() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		_ = json.Unmarshal(f, &m)
		out = append(out, m)
	}
	return out
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistry_WorkerFollowsRoomOccupancy(t *testing.T) {
	h := newTestRegistry()
	var mu sync.Mutex
	started := map[string]int{}
	stopped := map[string]int{}
	worker := func(ctx context.Context, roomID string) error {
		mu.Lock()
		started[roomID]++
		mu.Unlock()
		<-ctx.Done()
		mu.Lock()
		stopped[roomID]++
		mu.Unlock()
		return ctx.Err()
	}
	h.RunWorker(worker)
	h.RunWorker(worker)
	count := func(m map[string]int, room string) int {
		mu.Lock()
		defer mu.Unlock()
		return m[room]
	}

	a := &stubClient{sessionID: "a", roomID: "general"}
	b := &stubClient{sessionID: "b", roomID: "general"}
	h.Register(a)
	h.Register(b)
	require.Eventually(t, func() bool { return count(started, "general") == 2 }, time.Second, 5*time.Millisecond)

	h.Unregister(a)
	assert.Equal(t, 0, count(stopped, "general"), "room still occupied")
	h.Unregister(b)
	require.Eventually(t, func() bool { return count(stopped, "general") == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, count(started, "general"), "one start per worker per room")
}

func TestRegistry_SendToAndBroadcast(t *testing.T) {
	h := newTestRegistry()
	a := &stubClient{sessionID: "a", roomID: "general"}
	b := &stubClient{sessionID: "b", roomID: "general"}
	c := &stubClient{sessionID: "c", roomID: "other"}
	h.Register(a)
	h.Register(b)
	h.Register(c)
	ctx := context.Background()

	h.SendTo(ctx, "a", map[string]string{"type": "ack"})
	h.SendTo(ctx, "missing", map[string]string{"type": "ack"})
	h.Broadcast(ctx, "general", map[string]string{"type": "presence"}, "a")

	require.Len(t, a.received(), 1)
	assert.Equal(t, "ack", a.received()[0]["type"])
	require.Len(t, b.received(), 1)
	assert.Equal(t, "presence", b.received()[0]["type"])
	assert.Empty(t, c.received())
}

func TestRegistry_UnregisterIgnoresReplacedClient(t *testing.T) {
	h := newTestRegistry()
	old := &stubClient{sessionID: "a", roomID: "general"}
	replacement := &stubClient{sessionID: "a", roomID: "general"}
	h.Register(old)
	h.Register(replacement)

	h.Unregister(old)
	h.SendTo(context.Background(), "a", map[string]string{"type": "ack"})
	assert.Len(t, replacement.received(), 1)
}

func TestRegistry_Shutdown(t *testing.T) {
	h := newTestRegistry()
	a := &stubClient{sessionID: "a", roomID: "general"}
	h.Register(a)
	h.Shutdown()
	a.mu.Lock()
	defer a.mu.Unlock()
	assert.True(t, a.closed)
}
