// Package ledger defines the payment ledger collaborator the matcher
// allocates against. The ledger owns the target's remaining amount; the
// core only reads targets and asks the ledger to create or cancel
// payments, guarded by the target's version token.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentLedger creates and cancels payment allocations against targets.
//
// CreatePayment performs the compare-and-swap on the target's version: it
// atomically reduces the remaining amount by amount and bumps the version,
// but only when the stored version still equals expectedVersion. Losing
// that race yields *reconerror.ConflictError, which callers may retry
// against refreshed target data.
//
// CancelPayment reverses a previously created payment and restores the
// target's remaining amount. Cancelled payments remain on record.
type PaymentLedger interface {
	CreatePayment(ctx context.Context, targetID string, amount decimal.Decimal, currency, sourceTxID string, expectedVersion int64) (string, error)
	CancelPayment(ctx context.Context, paymentID string) error
}
