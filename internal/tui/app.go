package tui

import (
	"context"
	"fmt"

	"docchat-cli/internal/chat"
	"docchat-cli/internal/config"
	"docchat-cli/internal/render"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// SessionFactory builds a chat session for a complete config. The chat
// screen calls it again whenever /set changes a setting.
type SessionFactory func(cfg *config.Config) (*chat.Session, error)

type Options struct {
	Context    context.Context
	Version    string
	Config     *config.Config
	NewSession SessionFactory
	Pipeline   *render.Pipeline
	Logger     *zap.Logger
}

// Run launches the interactive chat. Output is printed inline above the
// prompt rather than in an alternate screen.
func Run(opts Options) error {
	m := initialModel(opts)

	p := tea.NewProgram(m)

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if fm, ok := final.(model); ok && fm.turn != nil {
		fm.turn.Cancel()
	}

	return nil
}
