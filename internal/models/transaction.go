package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the canonical direction of a transaction after
// normalization. Format-specific debit/credit conventions never leave the
// normalizer.
type TransactionType string

const (
	TypeCredit TransactionType = "CREDIT"
	TypeDebit  TransactionType = "DEBIT"
)

// MatchStatus is the cached reconciliation state of a transaction. It is a
// projection of the append-only match log, never an independent source of
// truth.
type MatchStatus string

const (
	StatusUnmatched MatchStatus = "UNMATCHED"
	StatusMatched   MatchStatus = "MATCHED"
	StatusPartial   MatchStatus = "PARTIAL"
	StatusIgnored   MatchStatus = "IGNORED"
)

// BankTransaction is a single normalized statement line. The ID is a
// deterministic hash of the statement fingerprint, position and raw fields,
// so re-importing the same file yields the same IDs.
type BankTransaction struct {
	ID                 string          `gorm:"primaryKey" json:"id"`
	StatementID        uuid.UUID       `gorm:"type:uuid;index" json:"statement_id"`
	Position           int             `json:"position"`
	TransactionDate    time.Time       `json:"transaction_date"`
	ValueDate          time.Time       `json:"value_date"`
	Amount             decimal.Decimal `gorm:"type:numeric" json:"amount"`
	Currency           string          `json:"currency"`
	Type               TransactionType `json:"type"`
	CounterpartName    string          `json:"counterpart_name"`
	CounterpartAccount string          `json:"counterpart_account"`
	Reference          string          `json:"reference"`
	Description        string          `json:"description"`
	MatchStatus        MatchStatus     `gorm:"index" json:"match_status"`
	MatchedTargetID    string          `json:"matched_target_id,omitempty"`
	MatchConfidence    *float64        `json:"match_confidence,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// IsCredit reports whether money came in.
func (t *BankTransaction) IsCredit() bool {
	return t.Type == TypeCredit
}

// IsDebit reports whether money went out.
func (t *BankTransaction) IsDebit() bool {
	return t.Type == TypeDebit
}

// AbsAmount returns the unsigned transaction amount, which is what gets
// allocated against a target's remaining amount.
func (t *BankTransaction) AbsAmount() decimal.Decimal {
	return t.Amount.Abs()
}
