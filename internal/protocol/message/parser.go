package message

import (
	"strings"
	"time"
)

// timestampLayouts are tried in order for the leading bracket of the full
// form. Newer servers prefix the date.
var timestampLayouts = []string{
	"15:04:05",
	"2006-01-02 15:04:05",
}

// Parser maps logical lines onto Messages. It never fails on non-empty input:
//
//	[HH:MM:SS][category]: content   server timestamp
//	[category]: content             receipt timestamp
//	anything else                   fallback category, receipt timestamp
type Parser struct {
	fallback string
	now      func() time.Time
}

func NewParser(fallbackCategory string) *Parser {
	if strings.TrimSpace(fallbackCategory) == "" {
		fallbackCategory = DefaultFallbackCategory
	}
	return &Parser{fallback: fallbackCategory, now: time.Now}
}

// WithClock overrides the receipt clock.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	p.now = now
	return p
}

func (p *Parser) FallbackCategory() string {
	return p.fallback
}

// Parse returns false only for empty lines.
func (p *Parser) Parse(raw string) (Message, bool) {
	line := strings.TrimSuffix(raw, "\r")
	if line == "" {
		return Message{}, false
	}

	if stamp, rest, ok := cutBracket(line); ok {
		if ts, ok := parseTimestamp(stamp); ok {
			if category, content, ok := cutCategory(rest); ok {
				return Message{Timestamp: ts, Category: category, Content: content, Raw: raw}, true
			}
		}
	}

	received := ClockOf(p.now())
	if category, content, ok := cutCategory(line); ok {
		return Message{Timestamp: received, Category: category, Content: content, Raw: raw}, true
	}
	return Message{Timestamp: received, Category: p.fallback, Content: line, Raw: raw}, true
}

// cutBracket splits "[inner]rest" into inner and rest.
func cutBracket(s string) (string, string, bool) {
	if !strings.HasPrefix(s, "[") {
		return "", "", false
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return "", "", false
	}
	return s[1:end], s[end+1:], true
}

// cutCategory matches "[category]: content". A single space after the colon
// is part of the separator.
func cutCategory(s string) (string, string, bool) {
	category, rest, ok := cutBracket(s)
	if !ok || category == "" || strings.ContainsRune(category, '[') {
		return "", "", false
	}
	rest, ok = strings.CutPrefix(rest, ":")
	if !ok {
		return "", "", false
	}
	return category, strings.TrimPrefix(rest, " "), true
}

func parseTimestamp(s string) (TimeOfDay, bool) {
	for _, layout := range timestampLayouts {
		if len(s) != len(layout) {
			continue
		}
		t, err := time.Parse(layout, s)
		if err == nil {
			return ClockOf(t), true
		}
	}
	return TimeOfDay{}, false
}
