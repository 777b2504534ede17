package reconcile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/TicketWorks/ticket-review-backend/types"
)

// dateLayouts are the ISO-like formats accepted from extraction payloads.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// usDateRe matches M/D/YYYY and M-D-YYYY style dates.
var usDateRe = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{4})`)

// NormalizeDate converts a raw extracted date to the canonical YYYY-MM-DD
// form. Unparseable input is passed through unchanged; coercion failure is
// never fatal.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}

	if m := usDateRe.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			return t.Format("2006-01-02")
		}
	}

	return raw
}

// HumanizeLabel derives a display label from a field's machine name:
// separators become spaces and each word is title-cased.
func HumanizeLabel(fieldName string) string {
	words := strings.FieldsFunc(fieldName, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// MatchEnumOption resolves a raw extracted label against an enumerated field's
// option list: case-insensitive, trimmed exact match on display labels. On a
// match the option's canonical value is returned.
func MatchEnumOption(raw string, options []types.Option) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	if needle == "" {
		return "", false
	}
	for _, opt := range options {
		if strings.ToLower(strings.TrimSpace(opt.Label)) == needle {
			return opt.Value, true
		}
	}
	return "", false
}

func foldTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Stringify renders an extracted JSON scalar as its review-field string form.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
