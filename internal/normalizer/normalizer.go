// Package normalizer turns a parsed statement into the canonical persisted
// form: one signed amount representation, deterministic transaction IDs,
// duplicate flagging and the soft balance check. It is the single point
// where format-specific sign conventions disappear.
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"finrecon/bankrecon/internal/models"
	"finrecon/bankrecon/internal/parser"
	"finrecon/bankrecon/internal/reconerror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogger allows setting a configured logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// NormalizedStatement is the persistable result of an import.
type NormalizedStatement struct {
	Statement    models.BankStatement
	Transactions []models.BankTransaction
}

// Normalize validates and canonicalizes a parsed statement. Soft findings
// (balance mismatch, suspected duplicates) come back as warnings; a
// zero-amount transaction is a hard error because the data model forbids
// it.
func Normalize(ps *parser.ParsedStatement, balanceEpsilon decimal.Decimal) (*NormalizedStatement, []reconerror.Warning, error) {
	fingerprint := statementFingerprint(ps)
	out := &NormalizedStatement{
		Statement: models.BankStatement{
			ID:             uuid.New(),
			Fingerprint:    fingerprint,
			AccountNumber:  ps.AccountNumber,
			BankName:       ps.BankName,
			StatementDate:  ps.StatementDate,
			PeriodFrom:     ps.PeriodFrom,
			PeriodTo:       ps.PeriodTo,
			OpeningBalance: ps.OpeningBalance,
			ClosingBalance: ps.ClosingBalance,
			Currency:       ps.Currency,
			Status:         models.StatementImported,
			CreatedAt:      time.Now(),
		},
	}

	var warnings []reconerror.Warning
	seen := make(map[string]int)
	totalCredit := decimal.Zero
	totalDebit := decimal.Zero

	for _, raw := range ps.Transactions {
		if raw.Amount.IsZero() {
			return nil, nil, &reconerror.ParseError{
				Format: string(ps.Format),
				Field:  "amount",
				Value:  raw.RawAmount,
				Err:    fmt.Errorf("transaction at position %d has zero amount", raw.Position),
			}
		}

		tx := models.BankTransaction{
			ID:                 TransactionID(fingerprint, raw),
			StatementID:        out.Statement.ID,
			Position:           raw.Position,
			TransactionDate:    raw.TransactionDate,
			ValueDate:          raw.ValueDate,
			Currency:           raw.Currency,
			CounterpartName:    strings.TrimSpace(raw.CounterpartName),
			CounterpartAccount: strings.TrimSpace(raw.CounterpartAccount),
			Reference:          strings.TrimSpace(raw.Reference),
			Description:        strings.TrimSpace(raw.Description),
			MatchStatus:        models.StatusUnmatched,
			CreatedAt:          time.Now(),
		}
		if tx.Currency == "" {
			tx.Currency = ps.Currency
		}

		// Canonical signed representation: credits positive, debits
		// negative. Type is derived from the sign from here on.
		switch raw.Indicator {
		case parser.IndicatorCredit:
			tx.Amount = raw.Amount.Abs()
			tx.Type = models.TypeCredit
			totalCredit = totalCredit.Add(tx.Amount)
		case parser.IndicatorDebit:
			tx.Amount = raw.Amount.Abs().Neg()
			tx.Type = models.TypeDebit
			totalDebit = totalDebit.Add(tx.Amount.Abs())
		default:
			return nil, nil, &reconerror.ParseError{
				Format: string(ps.Format),
				Field:  "indicator",
				Value:  raw.Indicator,
				Err:    fmt.Errorf("transaction at position %d has no debit/credit indicator", raw.Position),
			}
		}

		key := duplicateKey(tx)
		if prev, ok := seen[key]; ok {
			warnings = append(warnings, reconerror.Warning{
				Code: reconerror.WarnDuplicateSuspect,
				Message: fmt.Sprintf("transactions at positions %d and %d share date, amount and reference",
					prev, tx.Position),
			})
		} else {
			seen[key] = tx.Position
		}

		out.Transactions = append(out.Transactions, tx)
	}

	out.Statement.TotalCredit = totalCredit
	out.Statement.TotalDebit = totalDebit

	// opening + credits - debits ≈ closing; real files carry rounding
	// noise, so a mismatch is a warning, never a failure.
	expected := ps.OpeningBalance.Add(totalCredit).Sub(totalDebit)
	delta := expected.Sub(ps.ClosingBalance).Abs()
	if delta.GreaterThan(balanceEpsilon) {
		warnings = append(warnings, reconerror.Warning{
			Code: reconerror.WarnBalanceMismatch,
			Message: fmt.Sprintf("declared closing balance %s differs from computed %s by %s",
				ps.ClosingBalance.String(), expected.String(), delta.String()),
		})
	}

	log.WithFields(logrus.Fields{
		"fingerprint":  fingerprint,
		"transactions": len(out.Transactions),
		"warnings":     len(warnings),
	}).Debug("Normalized statement")
	return out, warnings, nil
}

// statementFingerprint identifies a statement by content, independent of
// import time, so re-importing the same file is detectable.
func statementFingerprint(ps *parser.ParsedStatement) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%d",
		ps.AccountNumber,
		ps.StatementDate.Format("2006-01-02"),
		ps.PeriodFrom.Format("2006-01-02"),
		ps.PeriodTo.Format("2006-01-02"),
		ps.OpeningBalance.String(),
		ps.ClosingBalance.String(),
		len(ps.Transactions),
	)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// TransactionID derives the deterministic synthetic transaction ID from the
// statement fingerprint, the position and the raw wire fields.
func TransactionID(fingerprint string, raw parser.ParsedTransaction) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s", fingerprint, raw.Position, raw.RawDate, raw.RawAmount, raw.RawRef)
	return hex.EncodeToString(h.Sum(nil))[:24]
}

func duplicateKey(tx models.BankTransaction) string {
	return fmt.Sprintf("%s|%s|%s",
		tx.TransactionDate.Format("2006-01-02"),
		tx.Amount.String(),
		NormalizeReference(tx.Reference))
}

// NormalizeReference strips everything but alphanumerics and lowercases,
// so "2024-0123", "2024/0123" and "SI00 2024 0123" all compare equal.
func NormalizeReference(ref string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(ref) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
