package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TargetType distinguishes the two kinds of open items a transaction can be
// reconciled against.
type TargetType string

const (
	TargetInvoice TargetType = "INVOICE"
	TargetPayment TargetType = "PAYMENT"
)

// Target is the read-only projection of an open receivable or payable as
// exposed by the invoice/payment collaborator. The reconciliation core never
// mutates invoices directly; RemainingAmount changes only through the
// payment ledger, guarded by the Version token.
type Target struct {
	ID              string          `json:"id"`
	Type            TargetType      `json:"type"`
	Reference       string          `json:"reference"`
	PartnerID       string          `json:"partner_id"`
	PartnerName     string          `json:"partner_name"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Currency        string          `json:"currency"`
	IssueDate       time.Time       `json:"issue_date"`
	DueDate         time.Time       `json:"due_date"`
	Version         int64           `json:"version"`
}
