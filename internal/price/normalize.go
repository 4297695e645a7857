// Package price turns scraped, locale-formatted price text into comparable
// numeric amounts.
package price

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultFreeTokens are the substrings that mark an edition as not sold for
// money (free to play, included in a subscription, download-only).
var DefaultFreeTokens = []string{
	"ücretsiz", "free",
	"dahil", "included",
	"oyna", "play",
	"indir", "download",
}

// Amount is a normalized price. An unknown amount must never take part in a
// comparison.
type Amount struct {
	Value float64
	Known bool
}

// Unknown is the amount for text that could not be parsed.
var Unknown = Amount{}

// Of returns a known amount.
func Of(v float64) Amount {
	return Amount{Value: v, Known: true}
}

// Less reports whether a is strictly below b. It is false whenever either
// side is unknown.
func (a Amount) Less(b Amount) bool {
	return a.Known && b.Known && a.Value < b.Value
}

// Greater reports whether a is strictly above b. It is false whenever either
// side is unknown.
func (a Amount) Greater(b Amount) bool {
	return a.Known && b.Known && a.Value > b.Value
}

func (a Amount) String() string {
	if !a.Known {
		return "unknown"
	}
	return strconv.FormatFloat(a.Value, 'f', 2, 64)
}

// Normalizer parses price text. The zero value recognizes no free tokens.
type Normalizer struct {
	tokens []string
}

// NewNormalizer builds a Normalizer for the given non-priced tokens. Tokens
// are matched case-insensitively as substrings; a nil slice selects
// DefaultFreeTokens.
func NewNormalizer(tokens []string) *Normalizer {
	if tokens == nil {
		tokens = DefaultFreeTokens
	}
	n := &Normalizer{tokens: make([]string, 0, len(tokens))}
	for _, t := range tokens {
		t = fold(t)
		if t != "" {
			n.tokens = append(n.tokens, t)
		}
	}
	return n
}

// Normalize parses text such as "1.749,00" into 1749.00. Text containing a
// non-priced token yields a known 0. Anything unparseable yields Unknown.
func (n *Normalizer) Normalize(text string) Amount {
	s := fold(text)
	if s == "" {
		return Unknown
	}

	for _, t := range n.tokens {
		if strings.Contains(s, t) {
			return Of(0)
		}
	}

	s = trimCurrency(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Unknown
	}
	return Of(v)
}

// NormalizePtr is Normalize for optional text; nil is Unknown.
func (n *Normalizer) NormalizePtr(text *string) Amount {
	if text == nil {
		return Unknown
	}
	return n.Normalize(*text)
}

// currencyMarks are stripped from either end of folded price text.
var currencyMarks = []string{"₺", "try", "tl"}

// trimCurrency removes one leading or trailing lira mark, so "1.749,00 tl"
// and "₺1.749,00" parse like "1.749,00".
func trimCurrency(s string) string {
	for _, m := range currencyMarks {
		if rest, ok := strings.CutSuffix(s, m); ok {
			return strings.TrimSpace(rest)
		}
		if rest, ok := strings.CutPrefix(s, m); ok {
			return strings.TrimSpace(rest)
		}
	}
	return s
}

// fold applies NFKC (which also maps NBSP to a plain space), trims and
// lowercases.
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}
