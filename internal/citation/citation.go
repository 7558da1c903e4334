// Package citation strips retrieval artifacts from a finished answer and
// replaces them with a deduplicated sources footer.
package citation

import (
	"strings"

	"docchat-cli/internal/metrics"

	"go.uber.org/zap"
)

// Result of cleaning one answer.
type Result struct {
	Text string `json:"text"`
	// SourcesWereFiltered is set when the answer carried Metadata markers
	// and at least one of them decoded into a citation.
	SourcesWereFiltered bool     `json:"sources_were_filtered"`
	Citations           []string `json:"citations,omitempty"`
}

// Cleaner post-processes completed answers. The zero value is not usable;
// call NewCleaner.
type Cleaner struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewCleaner returns a cleaner. Both arguments may be nil.
func NewCleaner(logger *zap.Logger, m *metrics.Collector) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{
		logger:  logger.With(zap.String("component", "citation")),
		metrics: m,
	}
}

var defaultCleaner = NewCleaner(nil, nil)

// Clean runs the default cleaner. Applying it to its own output changes
// nothing.
func Clean(text string) Result {
	return defaultCleaner.Clean(text)
}

func (c *Cleaner) Clean(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Text: text}
	}

	body, harvested := harvestFooters(strings.TrimSpace(text))
	set := NewSet()
	for _, e := range harvested {
		set.Add(e)
	}
	c.metrics.Citations(metrics.OriginFooter, len(harvested))

	markers := metadataDirective.FindAllStringSubmatch(body, -1)
	produced := 0
	for _, m := range markers {
		rec, err := decodeRecord(m[1])
		if err != nil {
			c.logger.Debug("skipping metadata", zap.Error(err), zap.Int("token_len", len(m[1])))
			continue
		}
		produced++
		set.Add(rec.Format())
	}
	c.metrics.Citations(metrics.OriginMetadata, produced)

	headers := c.addHeaders(set, body)
	for {
		body = rewrite(body)
		var more []string
		body, more = harvestFooters(body)
		if len(more) == 0 {
			break
		}
		for _, e := range more {
			set.Add(e)
		}
	}
	headers += c.addHeaders(set, body)
	c.metrics.Citations(metrics.OriginHeader, headers)

	res := Result{
		Text:                body,
		SourcesWereFiltered: len(markers) > 0 && produced > 0,
	}
	if set.Len() == 0 {
		return res
	}
	res.Citations = set.Entries()
	footer := renderFooter(res.Citations)
	if body == "" {
		res.Text = footer
	} else {
		res.Text = body + "\n\n" + footer
	}
	return res
}

// addHeaders feeds "Document N: title" lines into set and returns how many
// were new.
func (c *Cleaner) addHeaders(set *Set, body string) int {
	added := 0
	for _, m := range documentHeader.FindAllStringSubmatch(body, -1) {
		title := cleanTitle(m[1])
		if title == "" {
			continue
		}
		if set.Add(title) {
			added++
		}
	}
	return added
}
