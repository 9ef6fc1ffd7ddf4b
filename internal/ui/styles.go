// Package ui provides terminal styling for CLI output.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/fieldscope/fieldscope/internal/entity"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	syncingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	syncedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// colorEnabled reports whether the terminal supports color output.
func colorEnabled() bool {
	return termenv.ColorProfile() != termenv.Ascii
}

// Header renders a bold section header.
func Header(s string) string {
	if !colorEnabled() {
		return s
	}
	return headerStyle.Render(s)
}

// Label renders a dimmed field label.
func Label(s string) string {
	if !colorEnabled() {
		return s
	}
	return labelStyle.Render(s)
}

// Status renders a sync status with its conventional color: yellow for
// pending, blue for syncing, green for synced, red for failed.
func Status(s entity.SyncStatus) string {
	if !colorEnabled() {
		return string(s)
	}
	switch s {
	case entity.StatusPending:
		return pendingStyle.Render(string(s))
	case entity.StatusSyncing:
		return syncingStyle.Render(string(s))
	case entity.StatusSynced:
		return syncedStyle.Render(string(s))
	case entity.StatusFailed:
		return failedStyle.Render(string(s))
	default:
		return string(s)
	}
}
