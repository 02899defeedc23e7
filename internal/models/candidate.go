package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleTag names the rule that qualified a candidate. Tags double as the
// reason codes reported alongside a confidence score.
type RuleTag string

const (
	TagExactReference     RuleTag = "exact_reference"
	TagAmountTight        RuleTag = "amount_tight"
	TagAmountLoose        RuleTag = "amount_loose"
	TagPartnerExact       RuleTag = "partner_exact"
	TagPartnerFuzzy       RuleTag = "partner_fuzzy"
	TagDateWindow         RuleTag = "date_window"
	TagSurplusUnallocated RuleTag = "surplus_unallocated"
	TagManual             RuleTag = "manual"
)

// MatchCandidate is a transient, unpersisted pairing of a transaction with a
// plausible target, produced by the candidate generator before scoring.
type MatchCandidate struct {
	TransactionID string
	TargetType    TargetType
	TargetID      string
	Tags          []RuleTag

	// Carried from the target so the scorer can break ties without going
	// back to the target source.
	Remaining  decimal.Decimal
	AmountDiff decimal.Decimal
	DueDate    time.Time
	Version    int64
}

// HasTag reports whether the candidate was qualified by the given rule.
func (c MatchCandidate) HasTag(tag RuleTag) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ConfidenceBand buckets a score for presentation and auto-match
// eligibility.
type ConfidenceBand string

const (
	BandHigh   ConfidenceBand = "high"
	BandMedium ConfidenceBand = "medium"
	BandLow    ConfidenceBand = "low"
)

// ScoredCandidate is a candidate with its deterministic confidence score
// attached.
type ScoredCandidate struct {
	MatchCandidate
	Confidence float64
	Band       ConfidenceBand
}
