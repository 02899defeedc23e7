// Package store defines the persistence surface of the reconciliation core
// and provides an in-memory implementation plus the Postgres-backed one.
// Statement, transaction and match rows are relational; the match log is
// append-only and authoritative, the transaction's match status a derived,
// rebuildable projection.
package store

import (
	"context"
	"time"

	"finrecon/bankrecon/internal/models"

	"github.com/google/uuid"
)

// Store persists statements, transactions and the append-only match log.
type Store interface {
	// SaveStatement persists a statement with its transactions in one unit.
	SaveStatement(ctx context.Context, st *models.BankStatement, txs []models.BankTransaction) error
	Statement(ctx context.Context, id uuid.UUID) (*models.BankStatement, error)
	StatementByFingerprint(ctx context.Context, fingerprint string) (*models.BankStatement, error)
	UpdateStatementStatus(ctx context.Context, id uuid.UUID, status models.StatementStatus) error

	Transaction(ctx context.Context, id string) (*models.BankTransaction, error)
	TransactionsByStatement(ctx context.Context, statementID uuid.UUID) ([]models.BankTransaction, error)
	// UpdateTransactionMatch refreshes the cached projection of the match
	// log for one transaction.
	UpdateTransactionMatch(ctx context.Context, id string, status models.MatchStatus, targetID string, confidence *float64) error

	// AppendMatch appends to the match log. Entries are never updated or
	// deleted.
	AppendMatch(ctx context.Context, m *models.Match) error
	MatchesByTransaction(ctx context.Context, txID string) ([]models.Match, error)
}

// TargetSource is the read-only query surface of the invoice/payment
// collaborator. The core never mutates targets through this interface.
type TargetSource interface {
	ListOpenTargets(ctx context.Context, companyID string, asOf time.Time) ([]models.Target, error)
	Target(ctx context.Context, id string) (*models.Target, error)
}
