package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeSpace(s string) string {
	s = strings.Trim(s, " \n\t")
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// CurrencyRegex matches a dollar-prefixed decimal amount with optional
// thousands separators, e.g. "$12.50" or "$1,234.56".
var CurrencyRegex = regexp.MustCompile(`\$\s*((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)`)

// ParseCurrency extracts the first currency amount found in s.
func ParseCurrency(s string) (float64, bool) {
	groups := CurrencyRegex.FindStringSubmatch(s)
	if len(groups) < 2 {
		return 0, false
	}
	raw := strings.ReplaceAll(groups[1], ",", "")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// OrderIDRegex matches the hyphenated numeric order code shape,
// including the D-prefixed digital order variant.
var OrderIDRegex = regexp.MustCompile(`\b(?:\d{3}|D\d{2})-\d{7}-\d{7}\b`)

func FindOrderID(s string) (string, bool) {
	id := OrderIDRegex.FindString(s)
	return id, id != ""
}

type datePattern struct {
	regex   *regexp.Regexp
	layouts []string
}

// ordered by how often each shape shows up in practice.
var datePatterns = []datePattern{
	{
		regex:   regexp.MustCompile(`[A-Z][a-z]+ \d{1,2}, \d{4}`),
		layouts: []string{"January 2, 2006", "Jan 2, 2006"},
	},
	{
		regex:   regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
		layouts: []string{"2/1/2006"},
	},
	{
		regex:   regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		layouts: []string{"2006-01-02"},
	},
}

// FindDate scans s for the first substring matching a known date shape
// and parses it. patterns are tried in order, first hit wins.
func FindDate(s string) (time.Time, bool) {
	for _, p := range datePatterns {
		match := p.regex.FindString(s)
		if match == "" {
			continue
		}
		for _, layout := range p.layouts {
			t, err := time.Parse(layout, match)
			if err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
