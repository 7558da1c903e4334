// Package render turns answer markdown into a tree of typed nodes that the
// presentation layer can draw. Two renderers produce the same tree shape:
// Structured parses with goldmark, Lines re-derives structure line by line
// and is used when Structured fails.
package render

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedNode is returned by Structured for markdown constructs it
// cannot map to a Node.
var ErrUnsupportedNode = errors.New("unsupported markdown node")

type Kind int

const (
	KindDocument Kind = iota
	KindParagraph
	KindHeading
	KindEmphasis
	KindStrong
	KindStrikethrough
	KindList
	KindListItem
	KindCodeSpan
	KindCodeBlock
	KindBlockquote
	KindLink
	KindTable
	KindTableRow
	KindTableCell
	KindThematicBreak
	KindLineBreak
	KindText
)

var kindNames = [...]string{
	KindDocument:      "document",
	KindParagraph:     "paragraph",
	KindHeading:       "heading",
	KindEmphasis:      "emphasis",
	KindStrong:        "strong",
	KindStrikethrough: "strikethrough",
	KindList:          "list",
	KindListItem:      "item",
	KindCodeSpan:      "codespan",
	KindCodeBlock:     "codeblock",
	KindBlockquote:    "blockquote",
	KindLink:          "link",
	KindTable:         "table",
	KindTableRow:      "row",
	KindTableCell:     "cell",
	KindThematicBreak: "hr",
	KindLineBreak:     "br",
	KindText:          "text",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Leaf reports whether nodes of this kind carry Text instead of children.
func (k Kind) Leaf() bool {
	switch k {
	case KindText, KindCodeSpan, KindCodeBlock:
		return true
	}
	return false
}

// Link attributes forced on every link.
const (
	LinkTarget = "_blank"
	LinkRel    = "noopener noreferrer"
)

// Node is one element of a rendered answer. Only the fields relevant to
// Kind are set.
type Node struct {
	Kind Kind

	// Text holds the content of leaves: text, code spans and code blocks.
	Text string

	Level   int    // heading 1-6
	Ordered bool   // list
	Start   int    // ordered list
	Lang    string // code block
	Header  bool   // table row
	Href    string // link, empty when the scheme was unsafe
	Target  string // link
	Rel     string // link

	// Streaming marks a document rendered from a message that is still
	// receiving text.
	Streaming bool
	// Tight marks a document whose blocks follow each other without
	// spacing; blank lines appear as explicit line breaks.
	Tight bool

	Children []*Node
}

func (n *Node) append(children ...*Node) {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
}

func newText(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

func newLink(href string) *Node {
	return &Node{Kind: KindLink, Href: safeHref(href), Target: LinkTarget, Rel: LinkRel}
}

// PlainText concatenates the text of every leaf under n.
func PlainText(n *Node) string {
	var b strings.Builder
	writePlain(&b, n)
	return b.String()
}

func writePlain(b *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	if n.Kind.Leaf() {
		b.WriteString(n.Text)
		return
	}
	if n.Kind == KindLineBreak {
		b.WriteString("\n")
		return
	}
	for _, c := range n.Children {
		writePlain(b, c)
	}
}

// Outline prints the structure of the tree in a compact form such as
// document(heading1("Title") list(item("one"))). Two trees with the same
// outline draw the same way.
func Outline(n *Node) string {
	var b strings.Builder
	writeOutline(&b, n)
	return b.String()
}

func writeOutline(b *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	if n.Kind == KindText {
		fmt.Fprintf(b, "%q", n.Text)
		return
	}
	b.WriteString(n.Kind.String())
	switch n.Kind {
	case KindHeading:
		fmt.Fprintf(b, "%d", n.Level)
	case KindList:
		if n.Ordered {
			fmt.Fprintf(b, "[%d]", n.Start)
		}
	case KindCodeBlock:
		if n.Lang != "" {
			fmt.Fprintf(b, "[%s]", n.Lang)
		}
	case KindTableRow:
		if n.Header {
			b.WriteString("[h]")
		}
	case KindLink:
		fmt.Fprintf(b, "[%s]", n.Href)
	}
	if n.Kind.Leaf() {
		fmt.Fprintf(b, "(%q)", n.Text)
		return
	}
	if len(n.Children) == 0 {
		return
	}
	b.WriteString("(")
	for i, c := range n.Children {
		if i > 0 {
			b.WriteString(" ")
		}
		writeOutline(b, c)
	}
	b.WriteString(")")
}

// normalize merges adjacent text leaves, drops empty ones and makes any
// tag-shaped text inert, so both renderers agree on how a run of text is
// split and no leaf reads as markup.
func normalize(n *Node) {
	if n == nil || n.Kind.Leaf() {
		return
	}
	out := n.Children[:0]
	for _, c := range n.Children {
		if c.Kind == KindText {
			if c.Text == "" {
				continue
			}
			if last := len(out) - 1; last >= 0 && out[last].Kind == KindText {
				out[last] = newText(out[last].Text + c.Text)
				continue
			}
		}
		normalize(c)
		out = append(out, c)
	}
	for _, c := range out {
		if c.Kind == KindText {
			c.Text = inertText(c.Text)
		}
	}
	n.Children = out
}
