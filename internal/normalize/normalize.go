// Package normalize canonicalizes the labels, period keys and value
// representations that every later reconciliation stage compares.
//
// All functions are pure and total: absent or empty input yields the empty
// result rather than an error.
package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9 ]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	yearToken       = regexp.MustCompile(`(20\d{2}|19\d{2})`)
	parenthesized   = regexp.MustCompile(`^\((.*)\)$`)
)

// placeholders are cell texts that filings use to mean "no value".
var placeholders = map[string]bool{
	"-":   true,
	"—":   true,
	"–":   true,
	"n/a": true,
	"na":  true,
	"nm":  true,
	"*":   true,
}

// NormalizeLabel lowercases text, folds accented letters to their base form,
// replaces every character outside [a-z0-9 ] with a space and collapses
// whitespace. The result is idempotent: NormalizeLabel(NormalizeLabel(s)) ==
// NormalizeLabel(s).
func NormalizeLabel(text string) string {
	if text == "" {
		return ""
	}

	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		text,
	)
	if err != nil {
		folded = text
	}

	s := strings.ToLower(folded)
	s = nonAlphanumeric.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizePeriodKey extracts the first 19xx/20xx year token from key. Keys
// without a year token are returned unchanged.
func NormalizePeriodKey(key string) string {
	if m := yearToken.FindString(key); m != "" {
		return m
	}
	return key
}

// NormalizeValues re-keys a period-keyed map by normalized period key. When
// two raw keys normalize to the same year, the first in sorted raw-key order
// wins so the result does not depend on map iteration.
func NormalizeValues[V any](values map[string]V) map[string]V {
	out := make(map[string]V, len(values))
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		nk := NormalizePeriodKey(k)
		if _, exists := out[nk]; exists {
			continue
		}
		out[nk] = values[k]
	}
	return out
}

// ValueForComparison canonicalizes a cell's text for identity checks. It
// strips thousands separators and whitespace and turns "(123)" into "-123".
// The boolean is false when the value is empty, zero or a placeholder, so that
// two blank cells never compare equal.
func ValueForComparison(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" || placeholders[strings.ToLower(s)] {
		return "", false
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.Join(strings.Fields(s), "")
	if m := parenthesized.FindStringSubmatch(s); m != nil {
		s = "-" + m[1]
	}
	if s == "" || s == "-" {
		return "", false
	}

	if d, err := decimal.NewFromString(s); err == nil && d.IsZero() {
		return "", false
	}
	return s, true
}

// ParseFinancialValue parses display text such as "$(1,234.5)" or "12.5%"
// into a decimal. Placeholders and unparseable text report ok=false.
func ParseFinancialValue(text string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(text)
	if s == "" || placeholders[strings.ToLower(s)] {
		return decimal.Zero, false
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", ",", "", " ", "").Replace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	percent := false
	if strings.HasSuffix(s, "%") {
		percent = true
		s = strings.TrimSuffix(s, "%")
	}

	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if percent {
		d = d.Div(decimal.NewFromInt(100))
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// SectionKey is the identity of a section: its tag when present, otherwise its
// normalized label.
func SectionKey(gaap, label string) string {
	if g := strings.TrimSpace(gaap); g != "" {
		return g
	}
	return NormalizeLabel(label)
}

// SortPeriodsNewestFirst orders period keys by descending normalized year.
// Keys without a year token sort after all dated keys; ties fall back to
// descending raw key order.
func SortPeriodsNewestFirst(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		yi, iok := periodYear(out[i])
		yj, jok := periodYear(out[j])
		switch {
		case iok && jok && yi != yj:
			return yi > yj
		case iok != jok:
			return iok
		default:
			return out[i] > out[j]
		}
	})
	return out
}

func periodYear(key string) (int, bool) {
	m := yearToken.FindString(key)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}
