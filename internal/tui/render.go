package tui

import (
	"fmt"
	"strings"

	"docchat-cli/internal/chat"
	"docchat-cli/internal/display"
	"docchat-cli/internal/present"
	"docchat-cli/internal/render"

	"github.com/mattn/go-runewidth"
)

// ─── Welcome Screen ─────────────────────────────────────────────────────────

const logo = `╭─╮ ╭─╮
│ ├─┤ │  ▍
╰─╯ ╰─╯`

func renderWelcome(version, server, profile string) string {
	titleLine := logoTitleStyle.Render("DocChat") + " " + versionStyle.Render("v"+version)

	var infoLine string
	if server == "" {
		infoLine = welcomeHintStyle.Render("Введите /set server <url> и /set token <token>, чтобы начать")
	} else {
		infoLine = welcomeInfoLabel.Render(fmt.Sprintf("%s · %s", truncate(server, 40), profile))
	}

	return fmt.Sprintf("\n%s\n\n%s\n%s\n", logoStyle.Render(logo), titleLine, infoLine)
}

func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "...")
}

// ─── Messages ───────────────────────────────────────────────────────────────

// renderMessage draws one transcript entry. Bot text goes through the
// render pipeline; user text is shown verbatim. Both carry the time the
// message was created.
func renderMessage(p *present.Printer, pipeline *render.Pipeline, msg *chat.Message) string {
	theme := p.Theme()
	stamp := ""
	if !msg.Timestamp.IsZero() {
		stamp = theme.Dim.Render(display.FormatTime(msg.Timestamp))
	}
	if msg.IsUserAuthored {
		line := theme.Prompt.Render("❯ ") + theme.User.Render(msg.Text)
		if stamp != "" {
			line += "  " + stamp
		}
		return line
	}
	doc := pipeline.Render(msg.Text, render.Options{Streaming: msg.IsStreaming})
	out := indent(p.Document(doc), "  ")
	if stamp != "" && !msg.IsStreaming {
		out += "\n  " + stamp
	}
	return out
}

func renderTyping(p *present.Printer, frame string) string {
	return "  " + p.Theme().Dim.Render(frame+" Печатает...")
}

func renderNotice(p *present.Printer) string {
	return "  " + p.Theme().Notice.Render(display.FilteredSourcesNotice)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
