package services

import (
	"context"
	"errors"
	"livesync/internal/core/domain"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_PublishAssignsStoreTimestamp(t *testing.T) {
	store := newFakeLog()
	p := NewPublisher(discardLogger(), store, time.Second, 64)

	msg, err := p.Publish(context.Background(), domain.Draft{RoomID: "general", SenderID: "ana", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, int64(1001), msg.Timestamp.Millis)
	assert.Equal(t, msg.Timestamp.String(), msg.ID)
}

func TestPublisher_Validation(t *testing.T) {
	store := newFakeLog()
	p := NewPublisher(discardLogger(), store, time.Second, 8)
	ctx := context.Background()

	_, err := p.Publish(ctx, domain.Draft{RoomID: "general", Text: ""})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	_, err = p.Publish(ctx, domain.Draft{RoomID: "general", Text: strings.Repeat("x", 9)})
	assert.ErrorIs(t, err, domain.ErrMessageTooLarge)

	_, err = p.Publish(ctx, domain.Draft{RoomID: "bad room", Text: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidRoomID)

	assert.Empty(t, store.appended, "rejected drafts must not reach the store")
}

func TestPublisher_StoreErrorIsWriteFailure(t *testing.T) {
	store := newFakeLog()
	store.appendErr = errors.New("READONLY replica")
	p := NewPublisher(discardLogger(), store, time.Second, 0)

	_, err := p.Publish(context.Background(), domain.Draft{RoomID: "general", Text: "hi"})
	require.ErrorIs(t, err, domain.ErrWriteFailure)
	assert.Contains(t, err.Error(), "READONLY")
}

func TestPublisher_TimeoutIsWriteFailure(t *testing.T) {
	store := newFakeLog()
	store.block = true
	p := NewPublisher(discardLogger(), store, 20*time.Millisecond, 0)

	_, err := p.Publish(context.Background(), domain.Draft{RoomID: "general", Text: "hi"})
	require.ErrorIs(t, err, domain.ErrWriteFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublisher_PublishAsyncSurfacesFailure(t *testing.T) {
	store := newFakeLog()
	store.appendErr = errors.New("connection refused")
	p := NewPublisher(discardLogger(), store, time.Second, 0)

	res, ok := <-p.PublishAsync(context.Background(), domain.Draft{RoomID: "general", Text: "hi"})
	require.True(t, ok)
	assert.ErrorIs(t, res.Err, domain.ErrWriteFailure)

	_, ok = <-p.PublishAsync(context.Background(), domain.Draft{RoomID: "general", Text: ""})
	require.True(t, ok)
}

func TestPublisher_PublishAsyncDeliversMessage(t *testing.T) {
	p := NewPublisher(discardLogger(), newFakeLog(), time.Second, 0)

	results := p.PublishAsync(context.Background(), domain.Draft{RoomID: "general", Text: "hi"})
	res := <-results
	require.NoError(t, res.Err)
	assert.Equal(t, "hi", res.Message.Text)

	_, open := <-results
	assert.False(t, open, "result channel is closed after one value")
}
