package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func renderers() map[string]Renderer {
	return map[string]Renderer{
		"structured": NewStructured(),
		"lines":      NewLines(),
	}
}

func TestRenderers_EquivalentOnSimpleMarkdown(t *testing.T) {
	const want = `document(heading1("Title") list(item("item one") item("item two")))`

	for name, r := range renderers() {
		t.Run(name, func(t *testing.T) {
			doc, err := r.Render("# Title\n- item one\n- item two")
			require.NoError(t, err)
			assert.Equal(t, want, Outline(doc))
		})
	}
}

func TestRenderers_EquivalentCodeBlock(t *testing.T) {
	const want = `document(codeblock[go]("fmt.Println(1)"))`

	for name, r := range renderers() {
		t.Run(name, func(t *testing.T) {
			doc, err := r.Render("```go\nfmt.Println(1)\n```")
			require.NoError(t, err)
			assert.Equal(t, want, Outline(doc))
		})
	}
}

func TestRenderers_TruncatedInputStaysLiteral(t *testing.T) {
	inputs := []string{
		"**bold and incom",
		"see [the docs](http://exa",
		"a `code",
	}

	for name, r := range renderers() {
		for _, in := range inputs {
			t.Run(name+"/"+in, func(t *testing.T) {
				doc, err := r.Render(in)
				require.NoError(t, err)
				assert.Equal(t, in, PlainText(doc))
			})
		}
	}
}

func TestLines_UnterminatedStrongIsText(t *testing.T) {
	doc, err := NewLines().Render("**bold and incom")
	require.NoError(t, err)
	assert.Equal(t, `document(paragraph("**bold and incom"))`, Outline(doc))
}

func TestRenderers_UnterminatedFence(t *testing.T) {
	doc, err := NewStructured().Render("```go\nfmt.Println(")
	require.NoError(t, err)
	assert.Equal(t, "```go\nfmt.Println(", PlainText(doc))
	assert.NotContains(t, Outline(doc), "codeblock")

	doc, err = NewLines().Render("```go\nfmt.Println(")
	require.NoError(t, err)
	assert.Equal(t, `document(paragraph("`+"```go"+`") paragraph("fmt.Println("))`, Outline(doc))
}

func TestStructured_Sanitizes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"script dropped", "<script>alert(1)</script>Hello <b onclick=\"x\">world</b>", "Hello world"},
		{"allowed block keeps text", "<p onclick=\"evil()\">hi</p>", "hi"},
		{"entities resolved", "fish &amp; chips", "fish & chips"},
		{"control characters removed", "a\x07b\x1bc", "abc"},
		{"emoji kept", "📄 done", "📄 done"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewStructured().Render(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, PlainText(doc))
		})
	}
}

func TestRenderers_EntitiesDecodedOnce(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"escaped tag kept as text", "Wrap it in &lt;div&gt; tags.", `document(paragraph("Wrap it in ‹div› tags."))`},
		{"escaped script inert", "&lt;script&gt;alert(1)&lt;/script&gt;", `document(paragraph("‹script›alert(1)‹/script›"))`},
		{"double escape decoded once", "Write &amp;lt; for a less-than sign.", `document(paragraph("Write &lt; for a less-than sign."))`},
		{"comparison untouched", "if a &lt; b &amp;&amp; c &gt; d", `document(paragraph("if a < b && c > d"))`},
		{"quotes survive sanitizing", `say "hi", it's fine`, `document(paragraph("say \"hi\", it's fine"))`},
		{"code keeps entities literal", "use `&lt;br&gt;` here", `document(paragraph("use " codespan("&lt;br&gt;") " here"))`},
	}

	for name, r := range renderers() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				doc, err := r.Render(tt.in)
				require.NoError(t, err)
				assert.Equal(t, tt.want, Outline(doc))
			})
		}
	}
}

func TestRenderers_NoLeafReadsAsTag(t *testing.T) {
	entityish := rapid.Map(rapid.SliceOf(rapid.SampledFrom([]string{
		"&lt;", "&gt;", "&amp;", "&#60;", "&#x3c;", "div", "/", " ", "a", "script", "\n",
	})), func(parts []string) string { return strings.Join(parts, "") })

	rapid.Check(t, func(t *rapid.T) {
		in := entityish.Draw(t, "text")
		for name, r := range renderers() {
			doc, err := RenderSafely(r, in)
			if err != nil {
				continue
			}
			var check func(n *Node)
			check = func(n *Node) {
				if n.Kind == KindText && tagShaped.MatchString(n.Text) {
					t.Fatalf("%s renderer left %q in a text leaf for %q", name, n.Text, in)
				}
				for _, c := range n.Children {
					check(c)
				}
			}
			check(doc)
		}
	})
}

func TestRenderers_Autolink(t *testing.T) {
	for name, r := range renderers() {
		t.Run(name, func(t *testing.T) {
			doc, err := r.Render("See <https://example.com> now")
			require.NoError(t, err)
			assert.Equal(t,
				`document(paragraph("See " link[https://example.com]("https://example.com") " now"))`,
				Outline(doc),
			)

			doc, err = r.Render("Mail <help@example.com>")
			require.NoError(t, err)
			var links []*Node
			collectLinks(doc, &links)
			require.Len(t, links, 1)
			assert.Equal(t, "mailto:help@example.com", links[0].Href)
		})
	}
}

func TestStructured_AutolinkInsideCodeStaysLiteral(t *testing.T) {
	doc, err := NewStructured().Render("`<https://example.com>`")
	require.NoError(t, err)
	assert.Equal(t, `document(paragraph(codespan("<https://example.com>")))`, Outline(doc))
}

func TestRenderers_EquivalentBlockquote(t *testing.T) {
	const want = `document(blockquote(paragraph("quote\nmore")))`

	for name, r := range renderers() {
		t.Run(name, func(t *testing.T) {
			doc, err := r.Render("> quote\n> more")
			require.NoError(t, err)
			assert.Equal(t, want, Outline(doc))
		})
	}
}

func TestLines_BlankQuoteLineSplitsParagraphs(t *testing.T) {
	doc, err := NewLines().Render("> a\n>\n> b")
	require.NoError(t, err)
	assert.Equal(t, `document(blockquote(paragraph("a") paragraph("b")))`, Outline(doc))
}

func TestLines_StripsAllMarkup(t *testing.T) {
	doc, err := NewLines().Render("<div><em>hi</em></div> there")
	require.NoError(t, err)
	assert.Equal(t, "hi there", PlainText(doc))
}

func collectLinks(n *Node, out *[]*Node) {
	if n == nil {
		return
	}
	if n.Kind == KindLink {
		*out = append(*out, n)
	}
	for _, c := range n.Children {
		collectLinks(c, out)
	}
}

func TestRenderers_LinksOpenSafely(t *testing.T) {
	for name, r := range renderers() {
		t.Run(name, func(t *testing.T) {
			doc, err := r.Render("[docs](https://example.com) and [bad](javascript:alert(1))")
			require.NoError(t, err)

			var links []*Node
			collectLinks(doc, &links)
			require.Len(t, links, 2)

			assert.Equal(t, "https://example.com", links[0].Href)
			assert.Equal(t, "docs", PlainText(links[0]))
			assert.Empty(t, links[1].Href)
			for _, l := range links {
				assert.Equal(t, "_blank", l.Target)
				assert.Equal(t, "noopener noreferrer", l.Rel)
			}
		})
	}
}

func TestStructured_Table(t *testing.T) {
	doc, err := NewStructured().Render("| a | b |\n|---|---|\n| 1 | 2 |")
	require.NoError(t, err)
	require.Len(t, doc.Children, 1)

	table := doc.Children[0]
	require.Equal(t, KindTable, table.Kind)
	require.Len(t, table.Children, 2)
	assert.True(t, table.Children[0].Header)
	assert.False(t, table.Children[1].Header)

	var cells []string
	for _, row := range table.Children {
		for _, cell := range row.Children {
			assert.Equal(t, KindTableCell, cell.Kind)
			cells = append(cells, strings.TrimSpace(PlainText(cell)))
		}
	}
	assert.Equal(t, []string{"a", "b", "1", "2"}, cells)
}

func TestStructured_InlineKinds(t *testing.T) {
	doc, err := NewStructured().Render("*em* **strong** ~~gone~~ `code`\\\nnext")
	require.NoError(t, err)
	assert.Equal(t,
		`document(paragraph(emphasis("em") " " strong("strong") " " strikethrough("gone") " " codespan("code") br "next"))`,
		Outline(doc),
	)
}

func TestLines_Grouping(t *testing.T) {
	in := "1. one\n2. two\n- a\n> q1\n> q2\n\ntext **b** and `c`\n#### four\n### three"
	doc, err := NewLines().Render(in)
	require.NoError(t, err)
	assert.Equal(t,
		`document(list[1](item("one") item("two")) list(item("a")) `+
			`blockquote(paragraph("q1\nq2")) br `+
			`paragraph("text " strong("b") " and " codespan("c")) `+
			`paragraph("#### four") heading3("three"))`,
		Outline(doc),
	)
}

func TestLines_OrderedListStart(t *testing.T) {
	doc, err := NewLines().Render("3. c\n4. d")
	require.NoError(t, err)
	require.Len(t, doc.Children, 1)
	assert.Equal(t, 3, doc.Children[0].Start)
	assert.True(t, doc.Children[0].Ordered)
}

func TestLines_SpanScanSkipsLinks(t *testing.T) {
	doc, err := NewLines().Render("[*not em*](https://x.io) *em*")
	require.NoError(t, err)
	assert.Equal(t,
		`document(paragraph(link[https://x.io]("*not em*") " " emphasis("em")))`,
		Outline(doc),
	)
}

func TestRenderers_Totality(t *testing.T) {
	markdownish := rapid.StringOf(rapid.SampledFrom([]rune("#*-_`~[]()<>|!\\&;:. \n\tabcя1😀\x00")))
	gen := rapid.OneOf(rapid.String(), markdownish)

	rapid.Check(t, func(t *rapid.T) {
		in := gen.Draw(t, "text")

		doc, err := RenderSafely(NewLines(), in)
		if err != nil || doc == nil {
			t.Fatalf("lines renderer failed on %q: %v", in, err)
		}

		doc, err = RenderSafely(NewStructured(), in)
		if err != nil && !errors.Is(err, ErrUnsupportedNode) {
			t.Fatalf("structured renderer failed on %q: %v", in, err)
		}
		if err == nil && doc.Kind != KindDocument {
			t.Fatalf("root is %s", doc.Kind)
		}

		if NewPipeline().Render(in, Options{}) == nil {
			t.Fatalf("pipeline returned nil for %q", in)
		}
	})
}
