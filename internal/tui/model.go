package tui

import (
	"context"
	"fmt"
	"livesync/internal/core/domain"
	"livesync/internal/core/services"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Key constants for event handling.
const (
	keyEnter = "enter"
	keyCtrlC = "ctrl+c"
	keyEsc   = "esc"
)

const headerLines, footerLines = 2, 3

// Sender publishes one line of text.
type Sender interface {
	Send(ctx context.Context, text string) <-chan services.PublishResult
}

type sentMsg struct{ res services.PublishResult }

// Model is the Bubble Tea model of one room window.
type Model struct {
	ctx       context.Context
	sender    Sender
	roomID    string
	userID    string
	sessionID string

	input    textinput.Model
	view     viewport.Model
	lines    []string
	members  map[string]domain.PresenceRecord
	status   domain.ConnectivityState
	width    int
	height   int
	ready    bool
	quitting bool
}

func New(ctx context.Context, sender Sender, session domain.Session) Model {
	input := textinput.New()
	input.Placeholder = "Say something…"
	input.Prompt = "> "
	input.CharLimit = 4096
	input.Focus()
	return Model{
		ctx:       ctx,
		sender:    sender,
		roomID:    session.RoomID,
		userID:    session.UserID,
		sessionID: session.ID.String(),
		input:     input,
		members:   make(map[string]domain.PresenceRecord),
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := max(msg.Height-headerLines-footerLines, 1)
		if !m.ready {
			m.view = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.view.Width, m.view.Height = msg.Width, h
		}
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
	case tea.KeyMsg:
		switch msg.String() {
		case keyCtrlC, keyEsc:
			m.quitting = true
			return m, tea.Quit
		case keyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			return m, m.publish(text)
		}
	case messageMsg:
		m.appendLine(m.renderMessage(msg.msg))
	case gapMsg:
		m.appendLine(noticeStyle.Render("-- connection interrupted, some messages may be missing --"))
	case presenceMsg:
		m.applyPresence(msg.rec)
	case sentMsg:
		if msg.res.Err != nil {
			m.appendLine(errorStyle.Render("not sent: " + msg.res.Err.Error()))
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.view, cmd = m.view.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "connecting…"
	}
	header := titleStyle.Render("#"+m.roomID) + " " + m.renderMembers()
	return strings.Join([]string{
		header,
		"",
		m.view.View(),
		m.input.View(),
		"",
		m.renderStatus(),
	}, "\n")
}

func (m Model) publish(text string) tea.Cmd {
	results := m.sender.Send(m.ctx, text)
	return func() tea.Msg {
		return sentMsg{res: <-results}
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.view.SetContent(strings.Join(m.lines, "\n"))
	m.view.GotoBottom()
}

func (m *Model) applyPresence(rec domain.PresenceRecord) {
	if rec.SessionID == m.sessionID {
		prev := m.status
		if rec.Online {
			m.status = domain.ConnectivityOnline
		} else {
			m.status = domain.ConnectivityOffline
		}
		if prev == domain.ConnectivityOnline && m.status == domain.ConnectivityOffline {
			m.appendLine(noticeStyle.Render("-- offline, waiting for the connection --"))
		}
	}
	m.members[rec.SessionID] = rec
}

func (m Model) renderMessage(msg domain.Message) string {
	name := senderStyle.Render(msg.SenderID)
	if msg.SessionID.String() == m.sessionID {
		name = selfStyle.Render(msg.SenderID)
	}
	return fmt.Sprintf("%s %s: %s", timeStyle.Render(msg.Timestamp.Time().Format("15:04:05")), name, msg.Text)
}

func (m Model) renderMembers() string {
	users := make(map[string]bool)
	for _, rec := range m.members {
		users[rec.UserID] = users[rec.UserID] || rec.Online
	}
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		if users[name] {
			parts = append(parts, onlineStyle.Render(iconDot+" "+name))
		} else {
			parts = append(parts, offlineStyle.Render(iconDot+" "+name))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderStatus() string {
	return statusBarStyle.Render(fmt.Sprintf("%s %s %s %s", m.userID, iconDot, m.status, iconDot+" esc to quit"))
}
