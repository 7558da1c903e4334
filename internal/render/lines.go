package render

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	headingLine  = regexp.MustCompile(`^(#{1,3})\s+(.*)$`)
	bulletLine   = regexp.MustCompile(`^\s*[-*]\s+(.*)$`)
	numberedLine = regexp.MustCompile(`^\s*(\d+)\.\s+(.*)$`)
	quoteLine    = regexp.MustCompile(`^>\s?(.*)$`)

	inlineLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	inlineSpan = regexp.MustCompile("\\*\\*[^*]+\\*\\*|\\*[^*]+\\*|`[^`]+`")
)

// Lines is the fallback renderer. It strips all markup and rebuilds the
// structure one line at a time, so it never fails on partial text.
type Lines struct{}

func NewLines() *Lines { return &Lines{} }

func (*Lines) Render(src string) (*Node, error) {
	_, strip := policies()
	text := autolinksToLinks(sanitizeMarkup(strip, protectAutolinks(src)))
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	doc := &Node{Kind: KindDocument, Tight: true}
	var group *Node // the list or blockquote consecutive lines join
	var quote *Node // the paragraph consecutive quote lines continue
	join := func(kind Kind, ordered bool) *Node {
		if group != nil && group.Kind == kind && group.Ordered == ordered {
			return group
		}
		group = &Node{Kind: kind, Ordered: ordered}
		doc.append(group)
		return group
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t\r")

		if f, info, ok := parseFence(line); ok {
			if end := closingFence(lines, i+1, f); end >= 0 {
				group = nil
				doc.append(&Node{
					Kind: KindCodeBlock,
					Lang: firstWord(info),
					Text: strings.Join(lines[i+1:end], "\n"),
				})
				i = end
				continue
			}
		}

		if m := headingLine.FindStringSubmatch(line); m != nil {
			group = nil
			h := &Node{Kind: KindHeading, Level: len(m[1])}
			h.append(inlines(m[2])...)
			doc.append(h)
			continue
		}

		if m := bulletLine.FindStringSubmatch(line); m != nil {
			item := &Node{Kind: KindListItem}
			item.append(inlines(m[1])...)
			join(KindList, false).append(item)
			continue
		}

		if m := numberedLine.FindStringSubmatch(line); m != nil {
			list := join(KindList, true)
			if len(list.Children) == 0 {
				list.Start, _ = strconv.Atoi(m[1])
			}
			item := &Node{Kind: KindListItem}
			item.append(inlines(m[2])...)
			list.append(item)
			continue
		}

		if m := quoteLine.FindStringSubmatch(line); m != nil {
			bq := join(KindBlockquote, false)
			if strings.TrimSpace(m[1]) == "" {
				quote = nil
				continue
			}
			if quote == nil || len(bq.Children) == 0 || bq.Children[len(bq.Children)-1] != quote {
				quote = &Node{Kind: KindParagraph}
				bq.append(quote)
			} else {
				quote.append(newText("\n"))
			}
			quote.append(inlines(m[1])...)
			continue
		}

		group = nil
		if strings.TrimSpace(line) == "" {
			doc.append(&Node{Kind: KindLineBreak})
			continue
		}
		p := &Node{Kind: KindParagraph}
		p.append(inlines(line)...)
		doc.append(p)
	}

	normalize(doc)
	return doc, nil
}

func closingFence(lines []string, from int, f fence) int {
	for j := from; j < len(lines); j++ {
		if f.closedBy(strings.TrimRight(lines[j], " \t\r")) {
			return j
		}
	}
	return -1
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// inlines resolves links first, then scans the text between them for
// strong, emphasis and code spans. Entities are resolved everywhere but
// inside code.
func inlines(s string) []*Node {
	var out []*Node
	last := 0
	for _, m := range inlineLink.FindAllStringSubmatchIndex(s, -1) {
		out = append(out, spans(s[last:m[0]])...)
		link := newLink(decodeEntities(s[m[4]:m[5]]))
		link.append(newText(decodeEntities(s[m[2]:m[3]])))
		out = append(out, link)
		last = m[1]
	}
	return append(out, spans(s[last:])...)
}

func spans(s string) []*Node {
	var out []*Node
	last := 0
	for _, m := range inlineSpan.FindAllStringIndex(s, -1) {
		if m[0] > last {
			out = append(out, newText(decodeEntities(s[last:m[0]])))
		}
		tok := s[m[0]:m[1]]
		switch {
		case strings.HasPrefix(tok, "**"):
			out = append(out, &Node{Kind: KindStrong, Children: []*Node{newText(decodeEntities(tok[2 : len(tok)-2]))}})
		case strings.HasPrefix(tok, "*"):
			out = append(out, &Node{Kind: KindEmphasis, Children: []*Node{newText(decodeEntities(tok[1 : len(tok)-1]))}})
		default:
			out = append(out, &Node{Kind: KindCodeSpan, Text: tok[1 : len(tok)-1]})
		}
		last = m[1]
	}
	if last < len(s) {
		out = append(out, newText(decodeEntities(s[last:])))
	}
	return out
}
