package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"finrecon/bankrecon/internal/models"
	"finrecon/bankrecon/internal/reconerror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is one allocation created by the matcher.
type Payment struct {
	ID                  string
	TargetID            string
	Amount              decimal.Decimal
	Currency            string
	SourceTransactionID string
	Cancelled           bool
	CreatedAt           time.Time
}

// MemoryLedger is an in-memory payment ledger that doubles as the target
// source. It backs tests and database-less runs, and is the reference for
// the conservation property: the sum of non-cancelled payments against a
// target never exceeds its original remaining amount.
type MemoryLedger struct {
	mu       sync.RWMutex
	targets  map[string]models.Target
	payments map[string]Payment
}

// NewMemoryLedger seeds the ledger with open targets.
func NewMemoryLedger(targets []models.Target) *MemoryLedger {
	l := &MemoryLedger{
		targets:  make(map[string]models.Target, len(targets)),
		payments: make(map[string]Payment),
	}
	for _, t := range targets {
		l.targets[t.ID] = t
	}
	return l
}

// ListOpenTargets implements store.TargetSource. Targets with nothing left
// to allocate are not open.
func (l *MemoryLedger) ListOpenTargets(_ context.Context, _ string, asOf time.Time) ([]models.Target, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.Target
	for _, t := range l.targets {
		if t.RemainingAmount.IsPositive() && !t.IssueDate.After(asOf) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Target implements store.TargetSource.
func (l *MemoryLedger) Target(_ context.Context, id string) (*models.Target, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.targets[id]
	if !ok {
		return nil, &reconerror.NotFoundError{Kind: "target", ID: id}
	}
	return &t, nil
}

// CreatePayment implements PaymentLedger.
func (l *MemoryLedger) CreatePayment(_ context.Context, targetID string, amount decimal.Decimal, currency, sourceTxID string, expectedVersion int64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.targets[targetID]
	if !ok {
		return "", &reconerror.NotFoundError{Kind: "target", ID: targetID}
	}
	if t.Version != expectedVersion {
		return "", &reconerror.ConflictError{
			TargetID:        targetID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   t.Version,
		}
	}
	if amount.GreaterThan(t.RemainingAmount) {
		// A stale allocation computed against old data; surface it the
		// same way as a lost version race.
		return "", &reconerror.ConflictError{
			TargetID:        targetID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   t.Version,
		}
	}

	t.RemainingAmount = t.RemainingAmount.Sub(amount)
	t.Version++
	l.targets[targetID] = t

	p := Payment{
		ID:                  uuid.New().String(),
		TargetID:            targetID,
		Amount:              amount,
		Currency:            currency,
		SourceTransactionID: sourceTxID,
		CreatedAt:           time.Now(),
	}
	l.payments[p.ID] = p
	return p.ID, nil
}

// CancelPayment implements PaymentLedger. Cancelling restores the target's
// remaining amount exactly and bumps the version; the payment row stays,
// flagged cancelled.
func (l *MemoryLedger) CancelPayment(_ context.Context, paymentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.payments[paymentID]
	if !ok {
		return &reconerror.NotFoundError{Kind: "payment", ID: paymentID}
	}
	if p.Cancelled {
		return nil
	}

	t, ok := l.targets[p.TargetID]
	if !ok {
		return &reconerror.NotFoundError{Kind: "target", ID: p.TargetID}
	}
	t.RemainingAmount = t.RemainingAmount.Add(p.Amount)
	t.Version++
	l.targets[p.TargetID] = t

	p.Cancelled = true
	l.payments[paymentID] = p
	return nil
}

// Payments returns all payments for a target, cancelled ones included.
func (l *MemoryLedger) Payments(targetID string) []Payment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Payment
	for _, p := range l.payments {
		if p.TargetID == targetID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Allocated returns the sum of non-cancelled payments against a target.
func (l *MemoryLedger) Allocated(targetID string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sum := decimal.Zero
	for _, p := range l.payments {
		if p.TargetID == targetID && !p.Cancelled {
			sum = sum.Add(p.Amount)
		}
	}
	return sum
}
