// Package tui implements the Bubble Tea chat window for a room.
package tui

import "github.com/charmbracelet/lipgloss"

// Tokyo Night color palette.
var (
	colorGreen  = lipgloss.Color("#9ece6a")
	colorYellow = lipgloss.Color("#e0af68")
	colorRed    = lipgloss.Color("#f7768e")
	colorBlue   = lipgloss.Color("#7aa2f7")
	colorGray   = lipgloss.Color("#565f89")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			PaddingLeft(1)

	timeStyle   = lipgloss.NewStyle().Foreground(colorGray)
	senderStyle = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	selfStyle   = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(colorYellow).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(colorRed)

	onlineStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	offlineStyle = lipgloss.NewStyle().Foreground(colorGray)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			PaddingLeft(1)
)

const iconDot = "•"
