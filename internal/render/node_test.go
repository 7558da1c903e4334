package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "heading", KindHeading.String())
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestNormalizeMergesText(t *testing.T) {
	doc := &Node{Kind: KindDocument, Children: []*Node{
		{Kind: KindParagraph, Children: []*Node{
			newText("a"), newText(""), newText("b"),
			{Kind: KindStrong, Children: []*Node{newText("c"), newText("d")}},
			newText("e"),
		}},
	}}
	normalize(doc)
	assert.Equal(t, `document(paragraph("ab" strong("cd") "e"))`, Outline(doc))
	assert.Equal(t, "abcde", PlainText(doc))
}

func TestPlainTextLineBreak(t *testing.T) {
	p := &Node{Kind: KindParagraph, Children: []*Node{newText("a"), {Kind: KindLineBreak}, newText("b")}}
	assert.Equal(t, "a\nb", PlainText(p))
	assert.Equal(t, "", PlainText(nil))
}

func TestSafeHref(t *testing.T) {
	tests := map[string]string{
		"https://example.com/a?b=c": "https://example.com/a?b=c",
		"HTTP://EXAMPLE.COM":        "HTTP://EXAMPLE.COM",
		"mailto:a@b.c":              "mailto:a@b.c",
		"/relative/path":            "/relative/path",
		"javascript:alert(1)":       "",
		"JavaScript:alert(1)":       "",
		"data:text/html,hi":         "",
		"  ":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeHref(in), in)
	}
}

func TestNeutralizeOpenFence(t *testing.T) {
	assert.Equal(t, "```\ncode\n```", neutralizeOpenFence("```\ncode\n```"))
	assert.Equal(t, "\\`\\`\\`go\ncode", neutralizeOpenFence("```go\ncode"))
	assert.Equal(t, "```\na\n```\n  \\~\\~\\~\nb", neutralizeOpenFence("```\na\n```\n  ~~~\nb"))
	assert.Equal(t, "no fences", neutralizeOpenFence("no fences"))
}
