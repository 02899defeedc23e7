package candidates

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// PartnerMatch grades how well a counterpart name matches a partner.
type PartnerMatch int

const (
	PartnerNone PartnerMatch = iota
	PartnerFuzzy
	PartnerExact
)

// legal form suffixes that carry no identity: "ABC d.o.o." and "ABC" are
// the same partner.
var legalForms = map[string]struct{}{
	"doo": {}, "dd": {}, "sp": {}, "gmbh": {}, "ag": {}, "ltd": {},
	"llc": {}, "inc": {}, "sa": {}, "bv": {}, "kft": {}, "sro": {},
}

// NormalizeName uppercases, strips punctuation and drops legal form
// suffixes.
func NormalizeName(name string) string {
	return strings.Join(NameTokens(name), " ")
}

// NameTokens splits a party name into normalized tokens.
func NameTokens(name string) []string {
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if _, ok := legalForms[tok]; ok {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// MatchPartner compares a transaction counterpart against a partner name
// and its aliases. Exact means the normalized names (or an alias) are
// equal; fuzzy means token overlap or edit-distance similarity clears the
// threshold.
func MatchPartner(counterpart, partner string, aliases []string, ratioThreshold float64) PartnerMatch {
	c := NormalizeName(counterpart)
	if c == "" {
		return PartnerNone
	}

	names := append([]string{partner}, aliases...)
	best := PartnerNone
	for _, name := range names {
		p := NormalizeName(name)
		if p == "" {
			continue
		}
		if c == p {
			return PartnerExact
		}
		if fuzzyMatch(c, p, ratioThreshold) && best < PartnerFuzzy {
			best = PartnerFuzzy
		}
	}
	return best
}

// fuzzyMatch accepts either sufficient token overlap or a Levenshtein
// similarity ratio at or above the threshold.
func fuzzyMatch(a, b string, ratioThreshold float64) bool {
	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	if overlap(aTokens, bTokens) {
		return true
	}

	ratio := levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
	return ratio >= ratioThreshold
}

// overlap reports whether at least half of the shorter token set appears in
// the longer one.
func overlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	set := make(map[string]struct{}, len(b))
	for _, tok := range b {
		set[tok] = struct{}{}
	}
	hits := 0
	for _, tok := range a {
		if _, ok := set[tok]; ok {
			hits++
		}
	}
	return hits*2 >= len(a) && hits > 0
}
