package present

import (
	"fmt"
	"strings"

	"docchat-cli/internal/render"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

const (
	DefaultWidth = 100
	minWidth     = 20

	cursorGlyph = "▍"
)

// Printer draws render trees as styled terminal text.
type Printer struct {
	theme Theme
	width int
}

// NewPrinter returns a printer wrapping at width columns. A width below the
// minimum uses DefaultWidth.
func NewPrinter(theme Theme, width int) *Printer {
	if width < minWidth {
		width = DefaultWidth
	}
	return &Printer{theme: theme, width: width}
}

func (p *Printer) Theme() Theme { return p.theme }
func (p *Printer) Width() int   { return p.width }

// Document draws a whole answer. A streaming document ends with a cursor.
func (p *Printer) Document(doc *render.Node) string {
	if doc == nil {
		return ""
	}
	sep := "\n\n"
	if doc.Tight {
		sep = "\n"
	}
	out := strings.Join(p.blocks(doc.Children, p.width), sep)
	if doc.Streaming {
		out += p.theme.Cursor.Render(cursorGlyph)
	}
	return out
}

func (p *Printer) blocks(nodes []*render.Node, width int) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, p.block(n, width))
	}
	return out
}

func (p *Printer) block(n *render.Node, width int) string {
	switch n.Kind {
	case render.KindParagraph:
		return p.wrap(p.inlines(n.Children, p.theme.Body), width)

	case render.KindHeading:
		style := p.theme.Heading
		if n.Level == 1 {
			style = p.theme.H1
		}
		return p.wrap(p.inlines(n.Children, style), width)

	case render.KindList:
		return p.list(n, width)

	case render.KindCodeBlock:
		return p.codeBlock(n.Text, n.Lang)

	case render.KindBlockquote:
		inner := strings.Join(p.blocks(n.Children, width-2), "\n")
		return prefixLines(inner, p.theme.Accent.Render("│")+" ")

	case render.KindTable:
		return p.table(n, width)

	case render.KindThematicBreak:
		return p.theme.Rule.Render(strings.Repeat("─", min(width, 40)))

	case render.KindLineBreak:
		return ""
	}
	// inline content at block level
	return p.wrap(p.inline(n, p.theme.Body), width)
}

func (p *Printer) list(n *render.Node, width int) string {
	var lines []string
	for i, item := range n.Children {
		marker := "• "
		if n.Ordered {
			marker = fmt.Sprintf("%d. ", n.Start+i)
		}
		pad := strings.Repeat(" ", lipgloss.Width(marker))
		body := p.item(item, width-len(pad))
		first := true
		for _, line := range strings.Split(body, "\n") {
			if first {
				lines = append(lines, p.theme.Accent.Render(marker)+line)
				first = false
				continue
			}
			lines = append(lines, pad+line)
		}
	}
	return strings.Join(lines, "\n")
}

// item draws the inline run of a list item followed by any nested blocks.
func (p *Printer) item(n *render.Node, width int) string {
	var parts []string
	var run []*render.Node
	flush := func() {
		if len(run) > 0 {
			parts = append(parts, p.wrap(p.inlines(run, p.theme.Body), width))
			run = nil
		}
	}
	for _, c := range n.Children {
		if isInline(c.Kind) {
			run = append(run, c)
			continue
		}
		flush()
		parts = append(parts, p.block(c, width))
	}
	flush()
	return strings.Join(parts, "\n")
}

func isInline(k render.Kind) bool {
	switch k {
	case render.KindText, render.KindEmphasis, render.KindStrong, render.KindStrikethrough,
		render.KindCodeSpan, render.KindLink, render.KindLineBreak:
		return true
	}
	return false
}

func (p *Printer) inlines(nodes []*render.Node, style lipgloss.Style) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(p.inline(n, style))
	}
	return b.String()
}

func (p *Printer) inline(n *render.Node, style lipgloss.Style) string {
	switch n.Kind {
	case render.KindText:
		return styleLines(style, n.Text)
	case render.KindStrong:
		return p.inlines(n.Children, style.Inherit(p.theme.Strong).Bold(true))
	case render.KindEmphasis:
		return p.inlines(n.Children, style.Inherit(p.theme.Emphasis).Italic(true))
	case render.KindStrikethrough:
		return p.inlines(n.Children, style.Inherit(p.theme.Strike).Strikethrough(true))
	case render.KindCodeSpan:
		return styleLines(p.theme.Code, n.Text)
	case render.KindLink:
		text := p.inlines(n.Children, p.theme.LinkText)
		label := render.PlainText(n)
		if n.Href == "" || n.Href == label {
			if label == "" {
				return styleLines(p.theme.Link, n.Href)
			}
			return text
		}
		return text + " " + p.theme.Link.Render("("+n.Href+")")
	case render.KindLineBreak:
		return "\n"
	}
	return p.inlines(n.Children, style)
}

// styleLines renders each line on its own; lipgloss pads multi-line blocks
// to a common width otherwise.
func styleLines(style lipgloss.Style, s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

func (p *Printer) wrap(s string, width int) string {
	if width < minWidth {
		width = minWidth
	}
	return wrap.String(wordwrap.String(s, width), width)
}

func prefixLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
