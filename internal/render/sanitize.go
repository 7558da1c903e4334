package render

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark/util"
)

var (
	allowPolicy  *bluemonday.Policy
	stripPolicy  *bluemonday.Policy
	policiesOnce sync.Once
)

func policies() (allow, strip *bluemonday.Policy) {
	policiesOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements(
			"p", "br", "strong", "em", "u",
			"h1", "h2", "h3", "h4", "h5", "h6",
			"ul", "ol", "li", "code", "pre", "blockquote",
			"a", "table", "thead", "tbody", "tr", "th", "td",
			"span", "div",
		)
		p.AllowAttrs("href", "target", "rel").OnElements("a")
		p.AllowAttrs("class", "id").Globally()
		p.AllowURLSchemes("http", "https", "mailto")
		p.AllowRelativeURLs(true)
		p.RequireNoReferrerOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		allowPolicy = p
		stripPolicy = bluemonday.StrictPolicy()
	})
	return allowPolicy, stripPolicy
}

// sanitizeMarkup filters markup through policy and drops control
// characters other than newline, carriage return and tab. Entities the
// author wrote are shielded from the sanitizer and come back untouched,
// so they are resolved once, by whoever reads the result.
func sanitizeMarkup(policy *bluemonday.Policy, s string) string {
	s = strings.ReplaceAll(strings.ReplaceAll(s, string(ampersand), ""), "&", string(ampersand))
	out := decodeEntities(policy.Sanitize(s))
	return stripControl(strings.ReplaceAll(out, string(ampersand), "&"))
}

// sanitize returns the plain text of s with entities resolved.
func sanitize(policy *bluemonday.Policy, s string) string {
	return decodeEntities(sanitizeMarkup(policy, s))
}

// decodeEntities resolves character references in a single pass, so
// "&amp;lt;" becomes "&lt;".
func decodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return string(util.ResolveEntityNames(util.ResolveNumericReferences([]byte(s))))
}

// Private-use runes standing in for characters the sanitizer must not see.
const (
	autolinkOpen  = '\uE000'
	autolinkClose = '\uE001'
	ampersand     = '\uE002'
)

var (
	autolinkSyntax = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9+.\-]{1,31}:[^<>\s]*|[^<>\s@]+@[^<>\s@]+\.[^<>\s@]+)>`)
	protectedLink  = regexp.MustCompile("\uE000([^\uE000\uE001]*)\uE001")

	// tagShaped matches text that reads as an HTML tag.
	tagShaped = regexp.MustCompile(`<(/?[A-Za-z][^<>]*)>`)
)

func stripPrivate(s string) string {
	return strings.Map(func(r rune) rune {
		if r == autolinkOpen || r == autolinkClose || r == ampersand {
			return -1
		}
		return r
	}, s)
}

// protectAutolinks swaps the angle brackets around <scheme:...> and
// <user@host> autolinks for private-use runes so an HTML sanitizer
// reads them as text instead of unknown elements.
func protectAutolinks(s string) string {
	s = stripPrivate(s)
	return autolinkSyntax.ReplaceAllString(s, string(autolinkOpen)+"${1}"+string(autolinkClose))
}

// restoreAutolinks puts the angle brackets back.
func restoreAutolinks(s string) string {
	return protectedLink.ReplaceAllString(s, "<${1}>")
}

// autolinksToLinks rewrites protected autolinks as [label](url) links.
func autolinksToLinks(s string) string {
	return protectedLink.ReplaceAllStringFunc(s, func(m string) string {
		label := protectedLink.FindStringSubmatch(m)[1]
		href := label
		if !strings.Contains(label, ":") && strings.Contains(label, "@") {
			href = "mailto:" + label
		}
		return "[" + label + "](" + href + ")"
	})
}

// inertText rewrites tag-shaped runs such as "<div>" with single angle
// quotes, so a text leaf never carries markup.
func inertText(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	return tagShaped.ReplaceAllString(s, "\u2039${1}\u203A")
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

var safeSchemes = map[string]bool{"http": true, "https": true, "mailto": true}

// safeHref returns href when it is relative or uses an allowed scheme.
func safeHref(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme != "" && !safeSchemes[strings.ToLower(u.Scheme)] {
		return ""
	}
	return href
}

// fence describes an opening code fence line.
type fence struct {
	char   byte
	length int
	indent int
}

// parseFence reports whether line opens or closes a fenced code block.
func parseFence(line string) (fence, string, bool) {
	indent := 0
	for indent < len(line) && indent < 4 && line[indent] == ' ' {
		indent++
	}
	if indent > 3 || indent >= len(line) {
		return fence{}, "", false
	}
	c := line[indent]
	if c != '`' && c != '~' {
		return fence{}, "", false
	}
	n := 0
	for indent+n < len(line) && line[indent+n] == c {
		n++
	}
	if n < 3 {
		return fence{}, "", false
	}
	info := strings.TrimSpace(line[indent+n:])
	if c == '`' && strings.ContainsRune(info, '`') {
		return fence{}, "", false
	}
	return fence{char: c, length: n, indent: indent}, info, true
}

func (f fence) closedBy(line string) bool {
	g, info, ok := parseFence(line)
	return ok && g.char == f.char && g.length >= f.length && info == ""
}

// openFence returns the index of the line holding a fence that is never
// closed, or -1.
func openFence(lines []string) int {
	open := -1
	var current fence
	for i, line := range lines {
		if open >= 0 {
			if current.closedBy(line) {
				open = -1
			}
			continue
		}
		if f, _, ok := parseFence(line); ok {
			current, open = f, i
		}
	}
	return open
}

// neutralizeOpenFence escapes the markers of an unterminated fence so a
// parser reads the rest of the text as ordinary paragraphs.
func neutralizeOpenFence(s string) string {
	lines := strings.Split(s, "\n")
	i := openFence(lines)
	if i < 0 {
		return s
	}
	f, _, _ := parseFence(lines[i])
	line := lines[i]
	marker := strings.Repeat(`\`+string(f.char), f.length)
	lines[i] = line[:f.indent] + marker + line[f.indent+f.length:]
	return strings.Join(lines, "\n")
}
