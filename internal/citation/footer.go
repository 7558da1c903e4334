package citation

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	singleLabel = "📄 Источник: "
	multiLabel  = "📄 Источники:"
	bullet      = "• "
)

var (
	singleFooter = regexp.MustCompile(`(?:\A|\n\n)📄 Источник: ([^\n]+)\z`)
	multiFooter  = regexp.MustCompile(`(?:\A|\n\n)📄 Источники:\n(• [^\n]+(?:\n• [^\n]+)*)\z`)
)

func renderFooter(entries []string) string {
	if len(entries) == 1 {
		return singleLabel + entries[0]
	}
	var b strings.Builder
	b.WriteString(multiLabel)
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(bullet)
		b.WriteString(e)
	}
	return b.String()
}

// splitFooter cuts a footer in the exact rendered format off the end of
// text and returns its entries.
func splitFooter(text string) (body string, entries []string, ok bool) {
	if m := multiFooter.FindStringSubmatchIndex(text); m != nil {
		for _, line := range strings.Split(text[m[2]:m[3]], "\n") {
			entries = append(entries, strings.TrimPrefix(line, bullet))
		}
		return text[:m[0]], entries, true
	}
	if m := singleFooter.FindStringSubmatchIndex(text); m != nil {
		return text[:m[0]], []string{text[m[2]:m[3]]}, true
	}
	return text, nil, false
}

// harvestFooters strips every trailing footer, oldest first in the result.
func harvestFooters(text string) (string, []string) {
	var entries []string
	for {
		body, found, ok := splitFooter(strings.TrimRightFunc(text, unicode.IsSpace))
		if !ok {
			return text, entries
		}
		entries = append(found, entries...)
		text = body
	}
}

