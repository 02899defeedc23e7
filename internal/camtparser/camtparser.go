package camtparser

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"finrecon/bankrecon/internal/dateutils"
	"finrecon/bankrecon/internal/parser"
	"finrecon/bankrecon/internal/reconerror"

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

// CAMTParser parses camt.053 XML statements.
type CAMTParser struct{}

// New returns a camt.053 parser.
func New() parser.Parser {
	return &CAMTParser{}
}

// Parse unmarshals a camt.053 document and maps it onto the canonical
// parsed statement. Any structural violation rejects the whole file.
func (p *CAMTParser) Parse(data []byte) (*parser.ParsedStatement, error) {
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &reconerror.ParseError{
			Format: string(parser.FormatCAMT053),
			Field:  "document",
			Err:    fmt.Errorf("unbalanced or malformed XML: %w", err),
		}
	}

	if len(doc.BkToCstmrStmt.Stmt) == 0 {
		return nil, &reconerror.ParseError{
			Format: string(parser.FormatCAMT053),
			Field:  "BkToCstmrStmt/Stmt",
			Err:    fmt.Errorf("no statement element present"),
		}
	}
	// Multi-statement files exist but each import is one statement.
	st := doc.BkToCstmrStmt.Stmt[0]

	out := &parser.ParsedStatement{
		Format:        parser.FormatCAMT053,
		AccountNumber: accountOf(st.Acct),
		BankName:      st.Acct.Svcr.FinInstnId.Nm,
		Currency:      st.Acct.Ccy,
	}

	var err error
	if out.StatementDate, err = parseDateTime(st.CreDtTm); err != nil {
		return nil, fieldError("CreDtTm", st.CreDtTm, err)
	}
	if st.FrToDt.FrDtTm != "" {
		if out.PeriodFrom, err = parseDateTime(st.FrToDt.FrDtTm); err != nil {
			return nil, fieldError("FrToDt/FrDtTm", st.FrToDt.FrDtTm, err)
		}
	}
	if st.FrToDt.ToDtTm != "" {
		if out.PeriodTo, err = parseDateTime(st.FrToDt.ToDtTm); err != nil {
			return nil, fieldError("FrToDt/ToDtTm", st.FrToDt.ToDtTm, err)
		}
	}

	if err := p.readBalances(st.Bal, out); err != nil {
		return nil, err
	}

	for i, e := range st.Ntry {
		tx, err := p.readEntry(i, e, out.Currency)
		if err != nil {
			return nil, err
		}
		out.Transactions = append(out.Transactions, tx)
	}

	log.WithFields(logrus.Fields{
		"account": out.AccountNumber,
		"entries": len(out.Transactions),
	}).Debug("Parsed camt.053 statement")
	return out, nil
}

// readBalances picks the opening (OPBD) and closing (CLBD) balances and
// applies the credit/debit indicator as the balance sign.
func (p *CAMTParser) readBalances(bals []bal, out *parser.ParsedStatement) error {
	var haveOpening, haveClosing bool
	for _, b := range bals {
		amount, err := decimal.NewFromString(strings.TrimSpace(b.Amt.Text))
		if err != nil {
			return fieldError("Bal/Amt", b.Amt.Text, err)
		}
		if b.CdtDbtInd == parser.IndicatorDebit {
			amount = amount.Neg()
		}
		switch b.Tp.CdOrPrtry.Cd {
		case balanceOpening:
			out.OpeningBalance = amount
			haveOpening = true
		case balanceClosing:
			out.ClosingBalance = amount
			haveClosing = true
		}
		if out.Currency == "" {
			out.Currency = b.Amt.Ccy
		}
	}
	if !haveOpening || !haveClosing {
		return &reconerror.ParseError{
			Format: string(parser.FormatCAMT053),
			Field:  "Bal",
			Err:    fmt.Errorf("missing OPBD or CLBD balance"),
		}
	}
	return nil
}

func (p *CAMTParser) readEntry(pos int, e ntry, stmtCcy string) (parser.ParsedTransaction, error) {
	var tx parser.ParsedTransaction
	tx.Position = pos

	amount, err := decimal.NewFromString(strings.TrimSpace(e.Amt.Text))
	if err != nil {
		return tx, fieldError(fmt.Sprintf("Ntry[%d]/Amt", pos), e.Amt.Text, err)
	}
	tx.Amount = amount
	tx.RawAmount = strings.TrimSpace(e.Amt.Text)
	tx.Currency = e.Amt.Ccy
	if tx.Currency == "" {
		tx.Currency = stmtCcy
	}

	switch e.CdtDbtInd {
	case parser.IndicatorCredit, parser.IndicatorDebit:
		tx.Indicator = e.CdtDbtInd
	default:
		return tx, fieldError(fmt.Sprintf("Ntry[%d]/CdtDbtInd", pos), e.CdtDbtInd,
			fmt.Errorf("expected CRDT or DBIT"))
	}

	if tx.TransactionDate, err = dateutils.ParseDate(e.BookgDt.Dt); err != nil {
		return tx, fieldError(fmt.Sprintf("Ntry[%d]/BookgDt", pos), e.BookgDt.Dt, err)
	}
	tx.RawDate = e.BookgDt.Dt
	if e.ValDt.Dt != "" {
		if tx.ValueDate, err = dateutils.ParseDate(e.ValDt.Dt); err != nil {
			return tx, fieldError(fmt.Sprintf("Ntry[%d]/ValDt", pos), e.ValDt.Dt, err)
		}
	} else {
		tx.ValueDate = tx.TransactionDate
	}

	tx.Reference = entryReference(e)
	tx.RawRef = tx.Reference
	tx.Description = entryDescription(e)

	// The relevant counterpart depends on direction: the debtor paid us on
	// a credit, we paid the creditor on a debit.
	if len(e.NtryDtls.TxDtls) > 0 {
		d := e.NtryDtls.TxDtls[0]
		if tx.Indicator == parser.IndicatorCredit {
			tx.CounterpartName = d.RltdPties.Dbtr.Nm
			tx.CounterpartAccount = d.RltdPties.DbtrAcct.Id.IBAN
		} else {
			tx.CounterpartName = d.RltdPties.Cdtr.Nm
			tx.CounterpartAccount = d.RltdPties.CdtrAcct.Id.IBAN
		}
	}

	return tx, nil
}

// entryReference prefers the structured creditor reference, then the
// end-to-end id, then the entry reference.
func entryReference(e ntry) string {
	if len(e.NtryDtls.TxDtls) > 0 {
		d := e.NtryDtls.TxDtls[0]
		if ref := d.RmtInf.Strd.CdtrRefInf.Ref; ref != "" {
			return ref
		}
		if d.Refs.EndToEndId != "" && d.Refs.EndToEndId != "NOTPROVIDED" {
			return d.Refs.EndToEndId
		}
	}
	if e.NtryRef != "" {
		return e.NtryRef
	}
	return e.AcctSvcrRef
}

func entryDescription(e ntry) string {
	var parts []string
	if len(e.NtryDtls.TxDtls) > 0 {
		parts = append(parts, e.NtryDtls.TxDtls[0].RmtInf.Ustrd...)
	}
	if e.AddtlNtryInf != "" {
		parts = append(parts, e.AddtlNtryInf)
	}
	return strings.Join(parts, " ")
}

func accountOf(a acct) string {
	if a.Id.IBAN != "" {
		return a.Id.IBAN
	}
	return a.Id.Othr.Id
}

// parseDateTime accepts both plain dates and ISO date-times.
func parseDateTime(s string) (time.Time, error) {
	s = dateutils.Clean(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if len(s) >= 10 {
		if t, err := time.Parse(dateutils.LayoutISO, s[:10]); err == nil {
			return t, nil
		}
	}
	return dateutils.ParseDate(s)
}

func fieldError(field, value string, err error) error {
	return &reconerror.ParseError{
		Format: string(parser.FormatCAMT053),
		Field:  field,
		Value:  value,
		Err:    err,
	}
}
