package citation

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const defaultDocumentName = "Документ"

var knownExtension = regexp.MustCompile(`(?i)\.(pdf|doc|docx)$`)

// Record is the payload carried by a Metadata directive.
type Record struct {
	Filename   string  `json:"filename"`
	Page       pageRef `json:"page"`
	TotalPages pageRef `json:"total_pages"`
}

// pageRef accepts a page number written as a JSON number or a numeric
// string. Anything else, and zero, means "no page".
type pageRef int

func (p *pageRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			*p = 0
			return nil
		}
	} else {
		raw = string(data)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f < 1 || f > math.MaxInt32 || f != math.Trunc(f) {
		*p = 0
		return nil
	}
	*p = pageRef(f)
	return nil
}

// decodeRecord turns a base64 token into a Record.
func decodeRecord(token string) (Record, error) {
	payload, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		var rawErr error
		payload, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(token, "="))
		if rawErr != nil {
			return Record{}, fmt.Errorf("decoding base64: %w", err)
		}
	}

	if trimmed := bytes.TrimSpace(payload); len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, errors.New("parsing metadata: payload is not a JSON object")
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("parsing metadata: %w", err)
	}
	return rec, nil
}

// Format renders the record as a footer entry: the file name without a
// known document extension, then the page reference if there is one.
func (r Record) Format() string {
	name := strings.TrimSpace(r.Filename)
	if name == "" {
		name = defaultDocumentName
	}
	name = knownExtension.ReplaceAllString(name, "")
	if name == "" {
		name = defaultDocumentName
	}

	if r.Page > 0 {
		if r.TotalPages > 0 {
			name += fmt.Sprintf(" (стр. %d из %d)", r.Page, r.TotalPages)
		} else {
			name += fmt.Sprintf(" (стр. %d)", r.Page)
		}
	}
	return normalizeEntry(name)
}

// normalizeEntry folds whitespace so an entry always fits on one footer line.
func normalizeEntry(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
