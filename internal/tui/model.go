package tui

import (
	"context"
	"errors"
	"strings"

	"docchat-cli/internal/chat"
	"docchat-cli/internal/config"
	"docchat-cli/internal/present"
	"docchat-cli/internal/render"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// ─── App mode ───────────────────────────────────────────────────────────────

type appMode int

const (
	modeIdle appMode = iota
	modeStreaming
)

// ─── Slash command registry ─────────────────────────────────────────────────

type slashCmd struct {
	name string
	desc string
}

var slashCommands = []slashCmd{
	{"/clear", "Очистить экран и диалог"},
	{"/config", "Показать настройки"},
	{"/help", "Показать все команды"},
	{"/quit", "Выйти из DocChat"},
	{"/set", "Изменить настройку"},
}

const maxHistory = 1000

// ─── Model ──────────────────────────────────────────────────────────────────

type model struct {
	width  int
	height int

	// Bubble Tea components
	input   textinput.Model
	spinner spinner.Model

	// App state
	mode       appMode
	ctx        context.Context
	cfg        *config.Config
	session    *chat.Session
	newSession SessionFactory
	pipeline   *render.Pipeline
	printer    *present.Printer
	logger     *zap.Logger
	version    string

	// Conversation state
	transcript []*chat.Message
	turn       *chat.Turn
	live       *chat.Message
	liveView   string // rendered live message, refreshed on each flush

	// UI state
	ready        bool
	cmdMenuIdx   int
	cmdMenuOpen  bool
	lastInputVal string

	// Command history
	history      []string
	historyIdx   int
	historySaved string
}

func initialModel(opts Options) model {
	ti := textinput.New()
	ti.Placeholder = "Задайте вопрос или введите /help..."
	ti.Focus()
	ti.CharLimit = 4096
	ti.Prompt = "❯ "
	ti.PromptStyle = promptSymbol
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(colorOrange)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorOrange)

	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = render.NewPipeline(render.WithLogger(logger))
	}

	m := model{
		input:      ti,
		spinner:    sp,
		mode:       modeIdle,
		ctx:        ctx,
		cfg:        cfg,
		newSession: opts.NewSession,
		pipeline:   pipeline,
		logger:     logger.With(zap.String("component", "tui")),
		version:    opts.Version,
		history:    make([]string, 0),
		historyIdx: -1,
	}
	m.rebuildPrinter()
	_ = m.connect()
	return m
}

// connect builds a session for the current config. The session stays nil
// while the config is incomplete.
func (m *model) connect() error {
	m.session = nil
	if m.newSession == nil {
		return errors.New("no session factory")
	}
	if err := m.cfg.Validate(); err != nil {
		return err
	}
	s, err := m.newSession(m.cfg)
	if err != nil {
		m.logger.Warn("creating session", zap.Error(err))
		return err
	}
	m.session = s
	return nil
}

// rebuildPrinter sizes the printer to the smaller of the configured width
// and the terminal, minus the message indent.
func (m *model) rebuildPrinter() {
	width := m.cfg.Width
	if width <= 0 {
		width = present.DefaultWidth
	}
	if m.width > 0 {
		width = min(width, m.width)
	}
	m.printer = present.NewPrinter(present.ThemeFor(m.cfg.Theme), width-2)
}

// ─── Init ───────────────────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

// ─── Update ─────────────────────────────────────────────────────────────────

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 6
		m.rebuildPrinter()
		if m.live != nil {
			m.liveView = renderMessage(m.printer, m.pipeline, m.live)
		}

		if !m.ready {
			m.ready = true
			welcome := renderWelcome(m.version, m.cfg.Server, config.ProfileName(m.cfg.Profile))
			cmds = append(cmds, tea.Println(welcome))
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.mode == modeStreaming {
				return m.cancelTurn()
			}
			return m, tea.Quit

		case tea.KeyEsc:
			if m.mode == modeStreaming {
				return m.cancelTurn()
			}
			if m.cmdMenuOpen {
				m.cmdMenuOpen = false
				m.cmdMenuIdx = 0
				return m, nil
			}

		case tea.KeyUp:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx--
						if m.cmdMenuIdx < 0 {
							m.cmdMenuIdx = len(matches) - 1
						}
						return m, nil
					}
				} else if len(m.history) > 0 {
					if m.historyIdx == -1 {
						m.historySaved = m.input.Value()
						m.historyIdx = len(m.history) - 1
					} else {
						m.historyIdx = max(m.historyIdx-1, 0)
					}
					m.input.SetValue(m.history[m.historyIdx])
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyDown:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx++
						if m.cmdMenuIdx >= len(matches) {
							m.cmdMenuIdx = 0
						}
						return m, nil
					}
				} else if m.historyIdx != -1 {
					m.historyIdx++
					if m.historyIdx >= len(m.history) {
						m.historyIdx = -1
						m.input.SetValue(m.historySaved)
						m.historySaved = ""
					} else {
						m.input.SetValue(m.history[m.historyIdx])
					}
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyTab:
			if m.mode == modeIdle && m.cmdMenuOpen {
				matches := matchCommands(m.input.Value())
				if len(matches) > 0 {
					idx := m.cmdMenuIdx
					if idx < 0 || idx >= len(matches) {
						idx = 0
					}
					m.input.SetValue(matches[idx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
				}
				return m, nil
			}

		case tea.KeyEnter:
			if m.mode != modeIdle {
				return m, nil
			}
			if m.cmdMenuOpen && m.cmdMenuIdx >= 0 {
				matches := matchCommands(m.input.Value())
				// a complete command runs straight away
				if m.cmdMenuIdx < len(matches) && matches[m.cmdMenuIdx].name != strings.TrimSpace(m.input.Value()) {
					m.input.SetValue(matches[m.cmdMenuIdx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
					return m, nil
				}
			}

			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				return m, nil
			}

			m.remember(value)
			m.input.SetValue("")
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0
			return m.dispatchInput(value)
		}

	// ── Turn events ───────────────────────────────────────────────────
	case turnEventMsg:
		return m.handleEvent(msg.event)

	case turnClosedMsg:
		if m.turn != nil && m.turn.ID == msg.turn {
			// closed without a terminal event: the turn was cancelled
			m.finishTurn()
		}
		return m, nil
	}

	// Update sub-components
	var cmd tea.Cmd

	if m.mode != modeStreaming {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	newVal := m.input.Value()
	if newVal != m.lastInputVal {
		m.lastInputVal = newVal
		if m.historyIdx != -1 && m.historyIdx < len(m.history) && m.history[m.historyIdx] != newVal {
			m.historyIdx = -1
			m.historySaved = ""
		}
		m.cmdMenuOpen = strings.HasPrefix(newVal, "/")
		m.cmdMenuIdx = 0
	}

	return m, tea.Batch(cmds...)
}

func (m *model) remember(value string) {
	if len(m.history) == 0 || m.history[len(m.history)-1] != value {
		m.history = append(m.history, value)
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
	}
	m.historyIdx = -1
	m.historySaved = ""
}

// ─── Turn handling ──────────────────────────────────────────────────────────

func (m model) startTurn(query string) (tea.Model, tea.Cmd) {
	user := chat.NewUserMessage(query)
	m.transcript = append(m.transcript, user)
	m.live = chat.NewBotMessage()
	m.liveView = ""
	m.turn = m.session.Start(m.ctx, query)
	m.mode = modeStreaming
	m.logger.Debug("turn started", zap.String("turn", m.turn.ID.String()))

	return m, tea.Sequence(
		tea.Println(renderMessage(m.printer, m.pipeline, user)),
		waitForEvent(m.turn),
	)
}

// handleEvent applies an event of the current turn. Events of older turns
// are dropped.
func (m model) handleEvent(ev chat.Event) (tea.Model, tea.Cmd) {
	if m.turn == nil || m.live == nil || chat.TurnOf(ev) != m.turn.ID {
		return m, nil
	}

	switch ev := ev.(type) {
	case chat.FlushEvent:
		if err := m.live.Update(ev.Snapshot); err != nil {
			return m, nil
		}
		m.liveView = renderMessage(m.printer, m.pipeline, m.live)
		return m, waitForEvent(m.turn)

	case chat.DoneEvent:
		_ = m.live.Complete(ev.Result.Text)
		out := []tea.Cmd{tea.Println(renderMessage(m.printer, m.pipeline, m.live) + "\n")}
		if ev.Result.SourcesWereFiltered {
			out = append(out, tea.Println(renderNotice(m.printer)+"\n"))
		}
		m.finishTurn()
		return m, tea.Sequence(out...)

	case chat.ErrorEvent:
		m.logger.Warn("turn failed", zap.Error(ev.Err))
		_ = m.live.Fail(ev.Partial, ev.Err)
		out := tea.Println(renderMessage(m.printer, m.pipeline, m.live) + "\n")
		m.finishTurn()
		return m, out
	}
	return m, nil
}

func (m model) cancelTurn() (tea.Model, tea.Cmd) {
	if m.turn != nil {
		m.turn.Cancel()
	}
	var out []tea.Cmd
	if m.live != nil && !m.live.Typing() {
		_ = m.live.Complete(m.live.Text)
		out = append(out, tea.Println(renderMessage(m.printer, m.pipeline, m.live)))
	}
	out = append(out, tea.Println(m.printer.Theme().Error.Render("  ! Ответ отменён.")+"\n"))
	m.finishTurn()
	return m, tea.Sequence(out...)
}

// finishTurn records the bot message and returns to idle.
func (m *model) finishTurn() {
	if m.live != nil && !m.live.IsStreaming {
		m.transcript = append(m.transcript, m.live)
	}
	m.turn = nil
	m.live = nil
	m.liveView = ""
	m.mode = modeIdle
}

// ─── View ───────────────────────────────────────────────────────────────────
//
// Inline mode: View() shows the answer being streamed plus the input prompt
// and hints. Finished messages are printed above via tea.Println.

func (m model) View() string {
	if !m.ready {
		return ""
	}

	var s strings.Builder

	if m.mode == modeStreaming {
		if m.live == nil || m.live.Typing() {
			s.WriteString(renderTyping(m.printer, m.spinner.View()))
		} else {
			s.WriteString(m.liveView)
			s.WriteString("\n")
			s.WriteString(m.spinner.View() + " " + statusStyle.Render("Отвечает..."))
		}
	} else {
		s.WriteString(m.input.View())
	}
	s.WriteString("\n")

	sepWidth := max(min(m.width, 80), 20)
	s.WriteString(separatorStyle.Render(strings.Repeat("─", sepWidth)))
	s.WriteString("\n")

	s.WriteString(m.renderHints())

	return s.String()
}

// ─── Hint bar ───────────────────────────────────────────────────────────────

func (m model) renderHints() string {
	if m.mode == modeStreaming {
		return hintBarStyle.Render("  Esc отмена")
	}

	if m.cmdMenuOpen {
		if matches := matchCommands(m.input.Value()); len(matches) > 0 {
			return m.renderCommandMenu(matches)
		}
	}

	return hintBarStyle.Render("  ? справка")
}

func (m model) renderCommandMenu(matches []slashCmd) string {
	maxLen := 0
	for _, c := range matches {
		maxLen = max(maxLen, len(c.name))
	}

	var lines []string
	for i, c := range matches {
		padded := c.name + strings.Repeat(" ", maxLen-len(c.name))
		if i == m.cmdMenuIdx {
			lines = append(lines, "  "+cmdSelectedNameStyle.Render(padded)+"  "+cmdSelectedDescStyle.Render(c.desc))
		} else {
			lines = append(lines, "  "+cmdNameStyle.Render(padded)+"  "+cmdDescStyle.Render(c.desc))
		}
	}
	lines = append(lines, hintBarStyle.Render("  ↑↓ выбор  Tab/Enter подтвердить"))

	return strings.Join(lines, "\n")
}

// matchCommands returns all slash commands matching a prefix. Text after
// the command name does not match.
func matchCommands(prefix string) []slashCmd {
	prefix = strings.ToLower(prefix)
	if prefix == "/" {
		return slashCommands
	}
	var matches []slashCmd
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, prefix) {
			matches = append(matches, c)
		}
	}
	return matches
}
