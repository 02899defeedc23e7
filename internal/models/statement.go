// Package models provides the data structures used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatementStatus tracks a statement through its reconciliation lifecycle.
type StatementStatus string

const (
	StatementImported   StatementStatus = "IMPORTED"
	StatementProcessing StatementStatus = "PROCESSING"
	StatementMatched    StatementStatus = "MATCHED"
	StatementPosted     StatementStatus = "POSTED"
)

// BankStatement is one imported bank statement file. A statement owns its
// transactions; once POSTED it is immutable, including all match state of
// its transactions.
type BankStatement struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Fingerprint    string          `gorm:"uniqueIndex" json:"fingerprint"`
	AccountNumber  string          `json:"account_number"`
	BankName       string          `json:"bank_name"`
	StatementDate  time.Time       `json:"statement_date"`
	PeriodFrom     time.Time       `json:"period_from"`
	PeriodTo       time.Time       `json:"period_to"`
	OpeningBalance decimal.Decimal `gorm:"type:numeric" json:"opening_balance"`
	ClosingBalance decimal.Decimal `gorm:"type:numeric" json:"closing_balance"`
	TotalDebit     decimal.Decimal `gorm:"type:numeric" json:"total_debit"`
	TotalCredit    decimal.Decimal `gorm:"type:numeric" json:"total_credit"`
	Currency       string          `json:"currency"`
	Status         StatementStatus `gorm:"index" json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IsPosted reports whether the statement has been posted. Posting is the
// single point after which reconciliation state becomes immutable.
func (s *BankStatement) IsPosted() bool {
	return s.Status == StatementPosted
}
