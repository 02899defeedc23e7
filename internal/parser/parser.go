// Package parser defines the statement parser contract, the supported wire
// formats and format autodetection. The per-format implementations live in
// their own packages; everything downstream of the normalizer only ever
// sees the canonical types defined here.
package parser

import (
	"time"

	"github.com/shopspring/decimal"
)

// Format identifies a supported statement wire format.
type Format string

const (
	FormatAuto    Format = "auto"
	FormatMT940   Format = "mt940"
	FormatCAMT053 Format = "camt053"
	FormatCSV     Format = "csv"
	FormatOFX     Format = "ofx"
)

// Debit/credit indicators used by parsers before sign canonicalization.
// These mirror the ISO20022 CdtDbtInd codes; every parser translates its
// format-local convention into these two values and the normalizer turns
// them into one signed amount.
const (
	IndicatorDebit  = "DBIT"
	IndicatorCredit = "CRDT"
)

// ParsedTransaction is a raw statement line as read off the wire. Amount is
// always unsigned here; the direction lives in Indicator until the
// normalizer folds both into a signed amount.
type ParsedTransaction struct {
	Position           int
	TransactionDate    time.Time
	ValueDate          time.Time
	Amount             decimal.Decimal
	Indicator          string
	Currency           string
	CounterpartName    string
	CounterpartAccount string
	Reference          string
	Description        string

	// Raw fields feed the deterministic transaction ID so that re-importing
	// an identical file reproduces the same IDs.
	RawDate   string
	RawAmount string
	RawRef    string
}

// ParsedStatement is the structural parse result of one statement file,
// prior to normalization.
type ParsedStatement struct {
	Format         Format
	AccountNumber  string
	BankName       string
	Currency       string
	StatementDate  time.Time
	PeriodFrom     time.Time
	PeriodTo       time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	Transactions   []ParsedTransaction
}

// Parser converts raw statement bytes of one specific format into a
// ParsedStatement. Implementations are pure: no I/O, no side effects, and
// any structural violation rejects the whole file with a
// *reconerror.ParseError.
type Parser interface {
	Parse(data []byte) (*ParsedStatement, error)
}
