package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestWithContextRoundTrip(t *testing.T) {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestFields(t *testing.T) {
	assert.Equal(t, "1700-2", Timestamp(1700, 2).Value.String())
	assert.Equal(t, "room_id", Room("r").Key)
	assert.Equal(t, "", Err(nil).Value.String())
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
}

func TestEnrichStoresExtendedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	ctx, l := Enrich(WithContext(context.Background(), base), Room("general"), Session("s1"))
	assert.Same(t, l, FromContext(ctx))

	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "room_id=general")
	assert.Contains(t, buf.String(), "session_id=s1")
}
