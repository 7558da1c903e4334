package present

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// codeBlock frames a code block and highlights it when the theme names a
// chroma style.
func (p *Printer) codeBlock(code, lang string) string {
	body := code
	if p.theme.ChromaStyle != "" && strings.TrimSpace(code) != "" {
		if hl, ok := highlight(code, lang, p.theme.ChromaStyle); ok {
			body = hl
		}
	}

	border := p.theme.CodeBorder
	top := "┌─"
	if lang != "" {
		top += " " + lang + " "
	}
	top += "─"

	lines := []string{border.Render(top)}
	for _, l := range strings.Split(body, "\n") {
		lines = append(lines, border.Render("│")+" "+l)
	}
	lines = append(lines, border.Render("└──"))
	return strings.Join(lines, "\n")
}

func highlight(code, lang, styleName string) (string, bool) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	style := styles.Get(styleName)

	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", false
	}
	var b strings.Builder
	if err := formatter.Format(&b, style, it); err != nil {
		return "", false
	}
	return strings.TrimSuffix(b.String(), "\n"), true
}
