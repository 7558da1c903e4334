package tui

import (
	"docchat-cli/internal/chat"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// ─── Messages sent from the turn goroutine to Bubble Tea ────────────────────

type turnEventMsg struct {
	event chat.Event
}

type turnClosedMsg struct {
	turn uuid.UUID
}

// ─── Stream command ─────────────────────────────────────────────────────────
//
// Each waitForEvent call reads one event from the turn and returns it. The
// model's Update dispatches another waitForEvent after each flush, so the
// channel is drained one event per update cycle.

func waitForEvent(t *chat.Turn) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-t.Events()
		if !ok {
			return turnClosedMsg{turn: t.ID}
		}
		return turnEventMsg{event: ev}
	}
}
