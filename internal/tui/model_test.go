package tui

import (
	"context"
	"errors"
	"livesync/internal/core/domain"
	"livesync/internal/core/services"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	sent []string
	err  error
}

func (s *stubSender) Send(_ context.Context, text string) <-chan services.PublishResult {
	s.sent = append(s.sent, text)
	out := make(chan services.PublishResult, 1)
	out <- services.PublishResult{Err: s.err}
	close(out)
	return out
}

func newTestModel(t *testing.T, sender Sender) (Model, domain.Session) {
	t.Helper()
	session := domain.Session{ID: uuid.New(), UserID: "ana", RoomID: "general"}
	m := New(context.Background(), sender, session)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	return next.(Model), session
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_RendersMessagesAndGaps(t *testing.T) {
	m, _ := newTestModel(t, &stubSender{})
	m, _ = update(m, messageMsg{msg: domain.Message{SenderID: "bob", Text: "hello there", Timestamp: domain.Timestamp{Millis: 1}}})
	m, _ = update(m, gapMsg{err: domain.ErrDeliveryGap})

	view := m.View()
	assert.Contains(t, view, "hello there")
	assert.Contains(t, view, "bob")
	assert.Contains(t, view, "some messages may be missing")
}

func TestModel_EnterPublishes(t *testing.T) {
	sender := &stubSender{}
	m, _ := newTestModel(t, sender)
	m.input.SetValue("  hi all ")

	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, []string{"hi all"}, sender.sent)
	assert.Empty(t, m.input.Value())

	res, ok := cmd().(sentMsg)
	require.True(t, ok)
	assert.NoError(t, res.res.Err)

	_, cmd = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "blank input sends nothing")
	assert.Len(t, sender.sent, 1)
}

func TestModel_FailedSendIsShown(t *testing.T) {
	m, _ := newTestModel(t, &stubSender{err: domain.ErrWriteFailure})
	m, _ = update(m, sentMsg{res: services.PublishResult{Err: errors.New("write failure: timeout")}})
	assert.Contains(t, m.View(), "not sent: write failure: timeout")
}

func TestModel_PresenceAndStatus(t *testing.T) {
	m, session := newTestModel(t, &stubSender{})
	assert.Contains(t, m.View(), "unknown")

	m, _ = update(m, presenceMsg{rec: domain.PresenceRecord{SessionID: session.ID.String(), UserID: "ana", Online: true}})
	m, _ = update(m, presenceMsg{rec: domain.PresenceRecord{SessionID: "other", UserID: "bob", Online: true}})
	assert.Equal(t, domain.ConnectivityOnline, m.status)
	assert.Contains(t, m.View(), "bob")

	m, _ = update(m, presenceMsg{rec: domain.PresenceRecord{SessionID: session.ID.String(), UserID: "ana", Online: false}})
	assert.Equal(t, domain.ConnectivityOffline, m.status)
	assert.Contains(t, m.View(), "waiting for the connection")
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t, &stubSender{})
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Empty(t, m.View())
}
