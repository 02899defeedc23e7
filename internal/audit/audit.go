// Package audit folds the append-only match log into the cached per
// transaction match status. The log is the source of truth; the cached
// column must always equal the fold.
package audit

import (
	"context"
	"sort"

	"finrecon/bankrecon/internal/models"
)

// Fold replays a transaction's match entries in order and returns the
// resulting status. An empty log means the transaction was never touched.
func Fold(entries []models.Match) models.MatchStatus {
	if len(entries) == 0 {
		return models.StatusUnmatched
	}

	ordered := make([]models.Match, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	return ordered[len(ordered)-1].ToStatus
}

// Current returns the latest entry that still governs the transaction's
// target linkage; nil after an unmatch or for an untouched transaction.
func Current(entries []models.Match) *models.Match {
	status := Fold(entries)
	if status == models.StatusUnmatched {
		return nil
	}

	ordered := make([]models.Match, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	last := ordered[len(ordered)-1]
	return &last
}

// Log is the minimal read surface a rebuild needs.
type Log interface {
	MatchesByTransaction(ctx context.Context, txID string) ([]models.Match, error)
}

// Rebuild recomputes the cached status of one transaction from its log.
func Rebuild(ctx context.Context, log Log, txID string) (models.MatchStatus, error) {
	entries, err := log.MatchesByTransaction(ctx, txID)
	if err != nil {
		return "", err
	}
	return Fold(entries), nil
}
