package tui

import (
	"fmt"
	"strings"

	"docchat-cli/internal/config"
	"docchat-cli/internal/display"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// ─── Input dispatcher ───────────────────────────────────────────────────────

func (m model) dispatchInput(input string) (tea.Model, tea.Cmd) {
	if input == "?" {
		return m.cmdHelp()
	}
	if strings.HasPrefix(input, "/") {
		return m.dispatchCommand(input)
	}
	return m.cmdAsk(input)
}

func (m model) dispatchCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help", "/h":
		return m.cmdHelp()
	case "/config":
		return m.cmdConfig()
	case "/set":
		return m.cmdSet(args)
	case "/clear":
		return m.cmdClear()
	case "/quit", "/exit", "/q":
		return m, tea.Quit
	default:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Неизвестная команда: %s (введите /help)", cmd)))
	}
}

// ─── /help ──────────────────────────────────────────────────────────────────

func (m model) cmdHelp() (tea.Model, tea.Cmd) {
	row := func(key, desc string) tea.Cmd {
		return tea.Println("  " + hintKeyStyle.Render(key) + strings.Repeat(" ", max(24-len(key), 2)) + dimStyle.Render(desc))
	}

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(dimStyle.Render("  Команды:")),
		tea.Println(""),
		row("/config", "Показать текущие настройки"),
		row("/set <key> <value>", "Изменить настройку ("+strings.Join(config.Keys(), ", ")+")"),
		row("/clear", "Очистить экран и диалог"),
		row("/quit", "Выйти из DocChat"),
		row("Esc", "Отменить текущий ответ"),
		row("↑ ↓", "История ввода"),
		tea.Println(""),
		tea.Println(dimStyle.Render("  Или просто задайте вопрос по своим документам.")),
		tea.Println(""),
	)
}

// ─── /config ────────────────────────────────────────────────────────────────

func (m model) cmdConfig() (tea.Model, tea.Cmd) {
	val := func(s string) string {
		if s == "" {
			return dimStyle.Render("(не задано)")
		}
		return s
	}
	token := dimStyle.Render("(не задано)")
	if m.cfg.Token != "" {
		token = display.MaskToken(m.cfg.Token)
	}

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(dimStyle.Render("  Настройки:")),
		tea.Println(fmt.Sprintf("    Профиль:   %s", config.ProfileName(m.cfg.Profile))),
		tea.Println(fmt.Sprintf("    Сервер:    %s", val(m.cfg.Server))),
		tea.Println(fmt.Sprintf("    Путь:      %s", val(m.cfg.AskPath))),
		tea.Println(fmt.Sprintf("    Токен:     %s", token)),
		tea.Println(fmt.Sprintf("    Тема:      %s", val(m.cfg.Theme))),
		tea.Println(fmt.Sprintf("    Ширина:    %d", m.cfg.Width)),
		tea.Println(fmt.Sprintf("    Задержка:  %d мс", m.cfg.ThrottleMS)),
		tea.Println(""),
	)
}

// ─── /set ───────────────────────────────────────────────────────────────────

func (m model) cmdSet(args []string) (tea.Model, tea.Cmd) {
	if len(args) < 2 {
		return m, tea.Sequence(
			tea.Println(""),
			tea.Println(dimStyle.Render("  Использование: /set <key> <value>")),
			tea.Println(dimStyle.Render("  Ключи: "+strings.Join(config.Keys(), ", "))),
			tea.Println(""),
		)
	}

	key := args[0]
	value := strings.Join(args[1:], " ")
	if err := m.cfg.Set(key, value); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Не удалось изменить настройку: %v", err)))
	}
	if err := m.cfg.Save(); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Не удалось сохранить настройки: %v", err)))
	}
	m.logger.Info("setting changed", zap.String("key", key))

	m.rebuildPrinter()
	shown := value
	if strings.EqualFold(key, config.KeyToken) {
		shown = display.MaskToken(value)
	}
	out := []tea.Cmd{tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ %s: %s", key, shown)))}

	wasConnected := m.session != nil
	if err := m.connect(); err != nil {
		out = append(out, tea.Println(dimStyle.Render("    "+m.setupHint(err))))
	} else if !wasConnected {
		out = append(out, tea.Println(dimStyle.Render("    Теперь можно задавать вопросы!")))
	}
	return m, tea.Sequence(out...)
}

// ─── /clear ─────────────────────────────────────────────────────────────────

func (m model) cmdClear() (tea.Model, tea.Cmd) {
	m.transcript = nil
	return m, tea.ClearScreen
}

// ─── Ask ────────────────────────────────────────────────────────────────────

func (m model) cmdAsk(query string) (tea.Model, tea.Cmd) {
	if m.session == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ " + m.setupHint(nil)))
	}
	return m.startTurn(query)
}

// setupHint tells the user what to fix before a question can be sent.
func (m model) setupHint(err error) string {
	switch {
	case m.cfg.Server == "":
		return "Сервер не задан. Введите /set server <url>"
	case m.cfg.Token == "":
		return "Токен не задан. Введите /set token <token>"
	case err != nil:
		return "Не удалось подключиться: " + err.Error()
	}
	return "Нет подключения."
}
