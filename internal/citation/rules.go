package citation

import (
	"fmt"
	"regexp"
	"strings"
)

// rule is one textual rewrite. Rules run in slice order and the order
// matters: later rules assume earlier ones already removed the directive
// text they would otherwise half-match.
type rule struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// Base64 thresholds differ by context and stay separate.
const (
	base64LineMin   = 50
	base64InlineMin = 30
	base64ParenMin  = 20
)

var (
	metadataDirective = regexp.MustCompile(`Metadata:\s*([A-Za-z0-9+/=]+)`)
	documentHeader    = regexp.MustCompile(`Document \d+:[ \t]*([^\n]+)`)
	titleJunk         = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.]`)
)

var rewriteRules = []rule{
	{
		name:    "metadata directive",
		pattern: regexp.MustCompile(`Metadata:\s*[A-Za-z0-9+/=]+`),
	},
	{
		name:    "empty document parenthetical",
		pattern: regexp.MustCompile(`\((?:Документ|Document)\s*\d+,\s*\)`),
	},
	{
		name:    "document reference parenthetical",
		pattern: regexp.MustCompile(`\([^)]*(?:Документ|Document)\s*\d+(?:,\s*(?:Документ|Document)\s*\d+)*\)`),
	},
	{
		name:    "trailing sources line",
		pattern: regexp.MustCompile(`\n\s*(?:Источники|Sources):\s*(?:Документ|Document)\s*\d+(?:,\s*(?:Документ|Document)\s*\d+)*\.?\s*$`),
	},
	{
		name:    "base64 line",
		pattern: regexp.MustCompile(fmt.Sprintf(`(?m)^[A-Za-z0-9+/=]{%d,}$`, base64LineMin)),
	},
	{
		name:    "inline base64 run",
		pattern: regexp.MustCompile(fmt.Sprintf(`[A-Za-z0-9+/=]{%d,}`, base64InlineMin)),
	},
	{
		name:    "base64 parenthetical",
		pattern: regexp.MustCompile(fmt.Sprintf(`\([^)]*[A-Za-z0-9+/=]{%d,}[^)]*\)`, base64ParenMin)),
	},
	{
		name:    "technical metadata line",
		pattern: regexp.MustCompile(`(?m)^\s*(?:page|filename|filetype|pos):\s*[^\n]*$`),
	},
	{
		name:    "bare document header",
		pattern: regexp.MustCompile(`(?m)^Document \d+:\s*$`),
	},
	{
		name:    "bare localized document header",
		pattern: regexp.MustCompile(`(?m)^Документ \d+:\s*$`),
	},
	{
		name:    "blank line run",
		pattern: regexp.MustCompile(`\n\s*\n\s*\n`),
		replace: "\n\n",
	},
}

// maxRewritePasses bounds the fixpoint loop; real answers settle in two.
const maxRewritePasses = 16

func applyRules(s string) string {
	for _, r := range rewriteRules {
		s = r.pattern.ReplaceAllLiteralString(s, r.replace)
	}
	return strings.TrimSpace(s)
}

// rewrite applies the rule list until the text stops changing, so that a
// removal which joins two neighbours is caught on the next pass.
func rewrite(s string) string {
	for i := 0; i < maxRewritePasses; i++ {
		next := applyRules(s)
		if next == s {
			return s
		}
		s = next
	}
	return s
}

// cleanTitle keeps letters, digits, underscores, whitespace, hyphens and
// dots. It returns "" when fewer than four characters survive.
func cleanTitle(title string) string {
	if strings.Contains(title, "Metadata:") {
		return ""
	}
	t := normalizeEntry(titleJunk.ReplaceAllString(title, ""))
	if len([]rune(t)) <= 3 {
		return ""
	}
	return t
}
