package render

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Renderer turns markdown into a Node tree.
type Renderer interface {
	Render(src string) (*Node, error)
}

// Structured is the primary renderer. It sanitizes the text against an
// HTML allow-list and parses it as CommonMark with GFM tables and
// strikethrough.
type Structured struct {
	parser parser.Parser
}

func NewStructured() *Structured {
	md := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))
	return &Structured{parser: md.Parser()}
}

func (s *Structured) Render(src string) (*Node, error) {
	allow, _ := policies()
	clean := neutralizeOpenFence(restoreAutolinks(sanitizeMarkup(allow, protectAutolinks(src))))
	source := []byte(clean)

	root := s.parser.Parse(text.NewReader(source))
	m := &mapper{src: source}
	doc, err := m.block(root)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &Node{Kind: KindDocument}
	}
	normalize(doc)
	return doc, nil
}

type mapper struct {
	src []byte
}

func (m *mapper) children(parent *Node, n gast.Node, inline bool) error {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		var (
			out *Node
			err error
		)
		if inline {
			out, err = m.inline(c)
		} else {
			out, err = m.block(c)
		}
		if err != nil {
			return err
		}
		parent.append(out)
		if t, ok := c.(*gast.Text); ok && inline && t.HardLineBreak() {
			parent.append(&Node{Kind: KindLineBreak})
		}
	}
	return nil
}

func (m *mapper) block(n gast.Node) (*Node, error) {
	switch n := n.(type) {
	case *gast.Document:
		out := &Node{Kind: KindDocument}
		return out, m.children(out, n, false)

	case *gast.Paragraph:
		out := &Node{Kind: KindParagraph}
		return out, m.children(out, n, true)

	case *gast.Heading:
		out := &Node{Kind: KindHeading, Level: n.Level}
		return out, m.children(out, n, true)

	case *gast.ThematicBreak:
		return &Node{Kind: KindThematicBreak}, nil

	case *gast.CodeBlock:
		return &Node{Kind: KindCodeBlock, Text: m.lines(n)}, nil

	case *gast.FencedCodeBlock:
		return &Node{Kind: KindCodeBlock, Lang: string(n.Language(m.src)), Text: m.lines(n)}, nil

	case *gast.Blockquote:
		out := &Node{Kind: KindBlockquote}
		return out, m.children(out, n, false)

	case *gast.List:
		out := &Node{Kind: KindList, Ordered: n.IsOrdered()}
		if out.Ordered {
			out.Start = n.Start
		}
		return out, m.children(out, n, false)

	case *gast.ListItem:
		out := &Node{Kind: KindListItem}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			// tight items hold a bare text block; its inlines belong to the item
			if tb, ok := c.(*gast.TextBlock); ok {
				if err := m.children(out, tb, true); err != nil {
					return nil, err
				}
				continue
			}
			child, err := m.block(c)
			if err != nil {
				return nil, err
			}
			out.append(child)
		}
		return out, nil

	case *gast.TextBlock:
		out := &Node{Kind: KindParagraph}
		return out, m.children(out, n, true)

	case *gast.HTMLBlock:
		raw := m.lines(n)
		if n.HasClosure() {
			raw += "\n" + string(n.ClosureLine.Value(m.src))
		}
		_, strip := policies()
		plain := strings.TrimSpace(sanitize(strip, raw))
		if plain == "" {
			return nil, nil
		}
		return &Node{Kind: KindParagraph, Children: []*Node{newText(plain)}}, nil

	case *east.Table:
		out := &Node{Kind: KindTable}
		return out, m.children(out, n, false)

	case *east.TableHeader:
		out := &Node{Kind: KindTableRow, Header: true}
		return out, m.children(out, n, false)

	case *east.TableRow:
		out := &Node{Kind: KindTableRow}
		return out, m.children(out, n, false)

	case *east.TableCell:
		out := &Node{Kind: KindTableCell}
		return out, m.children(out, n, true)
	}
	return nil, fmt.Errorf("%w: block %s", ErrUnsupportedNode, n.Kind())
}

func (m *mapper) inline(n gast.Node) (*Node, error) {
	switch n := n.(type) {
	case *gast.Text:
		value := n.Segment.Value(m.src)
		if !n.IsRaw() {
			value = unescape(value)
		}
		s := string(value)
		if n.SoftLineBreak() && !n.HardLineBreak() {
			s += "\n"
		}
		return newText(s), nil

	case *gast.String:
		value := n.Value
		if !n.IsRaw() && !n.IsCode() {
			value = unescape(value)
		}
		return newText(string(value)), nil

	case *gast.CodeSpan:
		var b strings.Builder
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch c := c.(type) {
			case *gast.Text:
				b.Write(c.Segment.Value(m.src))
			case *gast.String:
				b.Write(c.Value)
			}
		}
		return &Node{Kind: KindCodeSpan, Text: b.String()}, nil

	case *gast.Emphasis:
		kind := KindEmphasis
		if n.Level >= 2 {
			kind = KindStrong
		}
		out := &Node{Kind: kind}
		return out, m.children(out, n, true)

	case *east.Strikethrough:
		out := &Node{Kind: KindStrikethrough}
		return out, m.children(out, n, true)

	case *gast.Link:
		out := newLink(string(unescape(n.Destination)))
		return out, m.children(out, n, true)

	case *gast.AutoLink:
		href := string(n.URL(m.src))
		if n.AutoLinkType == gast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			href = "mailto:" + href
		}
		out := newLink(href)
		out.append(newText(string(n.Label(m.src))))
		return out, nil

	case *gast.Image:
		out := newLink(string(unescape(n.Destination)))
		return out, m.children(out, n, true)

	case *gast.RawHTML:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: inline %s", ErrUnsupportedNode, n.Kind())
}

func (m *mapper) lines(n gast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(m.src))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func unescape(b []byte) []byte {
	return util.ResolveEntityNames(util.ResolveNumericReferences(util.UnescapePunctuations(b)))
}
