// Package scorer assigns the deterministic 0-100 confidence score to match
// candidates and defines the strict ranking order that makes auto-match
// reproducible.
package scorer

import (
	"sort"

	"finrecon/bankrecon/internal/config"
	"finrecon/bankrecon/internal/models"
)

// Score computes the weighted additive confidence for one candidate. Pure
// and deterministic: the same candidate and config always yield the same
// score. The amount bands are mutually exclusive by construction, so no
// double counting happens here.
func Score(c models.MatchCandidate, cfg config.MatchingConfig) models.ScoredCandidate {
	score := 0.0
	if c.HasTag(models.TagExactReference) {
		score += cfg.ExactReferenceWeight
	}
	if c.HasTag(models.TagAmountTight) {
		score += cfg.TightBandWeight
	} else if c.HasTag(models.TagAmountLoose) {
		score += cfg.LooseBandWeight
	}
	if c.HasTag(models.TagPartnerExact) {
		score += cfg.ExactPartnerWeight
	} else if c.HasTag(models.TagPartnerFuzzy) {
		score += cfg.FuzzyPartnerWeight
	}
	if c.HasTag(models.TagDateWindow) {
		score += cfg.DateWindowWeight
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return models.ScoredCandidate{
		MatchCandidate: c,
		Confidence:     score,
		Band:           Band(score, cfg),
	}
}

// ScoreAll scores and ranks a candidate list.
func ScoreAll(cands []models.MatchCandidate, cfg config.MatchingConfig) []models.ScoredCandidate {
	scored := make([]models.ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		scored = append(scored, Score(c, cfg))
	}
	Rank(scored)
	return scored
}

// Rank sorts candidates into the strict total order used for auto-match:
// confidence descending, then closer absolute amount difference, then
// earlier due date, then lexical target ID. Every tie-break is total, so
// equal inputs always produce the same ranking.
func Rank(scored []models.ScoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if c := a.AmountDiff.Cmp(b.AmountDiff); c != 0 {
			return c < 0
		}
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.TargetID < b.TargetID
	})
}

// Band buckets a confidence score: high scores are auto-match eligible,
// medium ones are suggested, low ones only surface on explicit search.
func Band(score float64, cfg config.MatchingConfig) models.ConfidenceBand {
	switch {
	case score >= cfg.AutoMatchThreshold:
		return models.BandHigh
	case score >= cfg.SuggestThreshold:
		return models.BandMedium
	default:
		return models.BandLow
	}
}

// Ambiguous reports whether the ranked list's top candidate is within the
// ambiguity margin of a rival targeting a different target, which excludes
// it from auto-matching.
func Ambiguous(scored []models.ScoredCandidate, margin float64) bool {
	if len(scored) < 2 {
		return false
	}
	top := scored[0]
	for _, rival := range scored[1:] {
		if rival.TargetID == top.TargetID {
			continue
		}
		if top.Confidence-rival.Confidence <= margin {
			return true
		}
	}
	return false
}
