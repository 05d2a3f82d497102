package tui

import (
	"context"
	"livesync/internal/core/domain"

	tea "github.com/charmbracelet/bubbletea"
)

type (
	messageMsg  struct{ msg domain.Message }
	gapMsg      struct{ err error }
	presenceMsg struct{ rec domain.PresenceRecord }
)

// Bridge forwards client callbacks into a running program as tea messages.
type Bridge struct {
	send func(tea.Msg)
}

// NewBridge returns a bridge that drops everything until Attach is called.
func NewBridge() *Bridge {
	return &Bridge{send: func(tea.Msg) {}}
}

// Attach must be called before the client is started.
func (b *Bridge) Attach(p *tea.Program) {
	b.send = p.Send
}

func (b *Bridge) OnMessage(_ context.Context, msg domain.Message) {
	b.send(messageMsg{msg: msg})
}

func (b *Bridge) OnGap(_ context.Context, _ string, err error) {
	b.send(gapMsg{err: err})
}

func (b *Bridge) OnPresence(_ context.Context, rec domain.PresenceRecord) {
	b.send(presenceMsg{rec: rec})
}
