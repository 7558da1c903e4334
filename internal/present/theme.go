// Package present draws rendered answers in the terminal.
package present

import (
	"strings"

	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

// ─── Colors ─────────────────────────────────────────────────────────────────

var (
	colorOrange  = lipgloss.Color("#F28C28")
	colorGreen   = lipgloss.Color("78")
	colorYellow  = lipgloss.Color("220")
	colorRed     = lipgloss.Color("196")
	colorBlue    = lipgloss.Color("111")
	colorGray    = lipgloss.Color("242")
	colorDimGray = lipgloss.Color("238")
)

// Theme names accepted by ThemeFor.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemePlain = "plain"
)

// Theme holds every style the printer and the chat screen use. Markdown
// styles come from glamour's stock configs; chrome colors are our own.
type Theme struct {
	Name string

	Body       lipgloss.Style
	H1         lipgloss.Style
	Heading    lipgloss.Style
	Strong     lipgloss.Style
	Emphasis   lipgloss.Style
	Strike     lipgloss.Style
	Code       lipgloss.Style
	CodeBorder lipgloss.Style
	Link       lipgloss.Style
	LinkText   lipgloss.Style
	Rule       lipgloss.Style
	Accent     lipgloss.Style

	User    lipgloss.Style
	Prompt  lipgloss.Style
	Dim     lipgloss.Style
	Error   lipgloss.Style
	Notice  lipgloss.Style
	Success lipgloss.Style
	Sources lipgloss.Style
	Cursor  lipgloss.Style

	// ChromaStyle names the syntax highlighting style; empty disables
	// highlighting.
	ChromaStyle string
}

// ThemeFor resolves a theme name. Unknown names fall back to auto
// detection.
func ThemeFor(name string) Theme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ThemeDark:
		return fromGlamour(ThemeDark, styles.DarkStyleConfig, "monokai")
	case ThemeLight:
		return fromGlamour(ThemeLight, styles.LightStyleConfig, "monokailight")
	case ThemePlain, "notty", "ascii":
		return plainTheme()
	}
	if lipgloss.HasDarkBackground() {
		return fromGlamour(ThemeDark, styles.DarkStyleConfig, "monokai")
	}
	return fromGlamour(ThemeLight, styles.LightStyleConfig, "monokailight")
}

func fromGlamour(name string, cfg ansi.StyleConfig, chroma string) Theme {
	return Theme{
		Name:        name,
		Body:        primitive(cfg.Document.StylePrimitive),
		H1:          primitive(cfg.H1.StylePrimitive),
		Heading:     primitive(cfg.Heading.StylePrimitive),
		Strong:      primitive(cfg.Strong),
		Emphasis:    primitive(cfg.Emph),
		Strike:      primitive(cfg.Strikethrough),
		Code:        primitive(cfg.Code.StylePrimitive),
		CodeBorder:  lipgloss.NewStyle().Foreground(colorGreen),
		Link:        primitive(cfg.Link),
		LinkText:    primitive(cfg.LinkText),
		Rule:        primitive(cfg.HorizontalRule),
		Accent:      lipgloss.NewStyle().Foreground(colorOrange),
		User:        lipgloss.NewStyle().Foreground(colorOrange).Bold(true),
		Prompt:      lipgloss.NewStyle().Foreground(colorOrange).Bold(true),
		Dim:         lipgloss.NewStyle().Foreground(colorGray),
		Error:       lipgloss.NewStyle().Foreground(colorRed),
		Notice:      lipgloss.NewStyle().Foreground(colorYellow),
		Success:     lipgloss.NewStyle().Foreground(colorGreen),
		Sources:     lipgloss.NewStyle().Foreground(colorBlue).Bold(true),
		Cursor:      lipgloss.NewStyle().Foreground(colorDimGray),
		ChromaStyle: chroma,
	}
}

func plainTheme() Theme {
	s := lipgloss.NewStyle()
	return Theme{
		Name: ThemePlain,
		Body: s, H1: s, Heading: s, Strong: s, Emphasis: s, Strike: s,
		Code: s, CodeBorder: s, Link: s, LinkText: s, Rule: s, Accent: s,
		User: s, Prompt: s, Dim: s, Error: s, Notice: s, Success: s,
		Sources: s, Cursor: s,
	}
}

// primitive converts a glamour style primitive into a lipgloss style.
// Block prefixes and formats are layout, not style, and are ignored.
func primitive(p ansi.StylePrimitive) lipgloss.Style {
	s := lipgloss.NewStyle()
	if p.Color != nil {
		s = s.Foreground(lipgloss.Color(*p.Color))
	}
	if p.BackgroundColor != nil {
		s = s.Background(lipgloss.Color(*p.BackgroundColor))
	}
	if p.Bold != nil {
		s = s.Bold(*p.Bold)
	}
	if p.Italic != nil {
		s = s.Italic(*p.Italic)
	}
	if p.Underline != nil {
		s = s.Underline(*p.Underline)
	}
	if p.CrossedOut != nil {
		s = s.Strikethrough(*p.CrossedOut)
	}
	if p.Faint != nil {
		s = s.Faint(*p.Faint)
	}
	return s
}
