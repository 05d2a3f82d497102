package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextState(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok)
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no connectivity change")
		return false
	}
}

func TestConnectivityMonitor_EmitsTransitionsOnly(t *testing.T) {
	mr, rdb := newTestRedis(t)
	m := NewConnectivityMonitor(rdb, discardLogger(), 10*time.Millisecond, 200*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := m.Watch(ctx)
	assert.True(t, nextState(t, ch))

	select {
	case v := <-ch:
		t.Fatalf("unexpected repeat %v", v)
	case <-time.After(50 * time.Millisecond):
	}

	mr.Close()
	assert.False(t, nextState(t, ch))

	require.NoError(t, mr.Restart())
	assert.True(t, nextState(t, ch))

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}
