// Package ofxparser parses OFX bank statement downloads. OFX 1.x is SGML,
// not XML: tags are frequently unclosed, so the parser scans tag/value
// pairs rather than unmarshaling a document tree.
package ofxparser

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

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

// OFXParser parses OFX statement downloads.
type OFXParser struct{}

// New returns an OFX parser.
func New() parser.Parser {
	return &OFXParser{}
}

// Parse scans STMTTRN blocks plus the surrounding account and balance tags.
// OFX carries only the ledger (closing) balance; the opening balance is
// derived by subtracting the net movement.
func (p *OFXParser) Parse(data []byte) (*parser.ParsedStatement, error) {
	out := &parser.ParsedStatement{Format: parser.FormatOFX}

	var (
		inTxn     bool
		txn       map[string]string
		txnLine   int
		lineNo    int
		sawHeader bool
		sawTxns   bool
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "OFXHEADER") || upper == "<OFX>":
			sawHeader = true
			continue
		case upper == "<STMTTRN>":
			if inTxn {
				return nil, tagError(lineNo, "STMTTRN", "nested transaction block")
			}
			inTxn = true
			txn = make(map[string]string)
			txnLine = lineNo
			continue
		case upper == "</STMTTRN>":
			if !inTxn {
				return nil, tagError(lineNo, "STMTTRN", "closing tag without opening")
			}
			tx, err := convertTransaction(txn, txnLine, len(out.Transactions))
			if err != nil {
				return nil, err
			}
			out.Transactions = append(out.Transactions, tx)
			inTxn = false
			sawTxns = true
			continue
		}

		tag, value, ok := tagValue(line)
		if !ok {
			continue
		}
		if inTxn {
			txn[tag] = value
			continue
		}

		switch tag {
		case "ACCTID":
			out.AccountNumber = value
		case "ORG":
			out.BankName = value
		case "CURDEF":
			out.Currency = strings.ToUpper(value)
		case "DTSTART":
			if t, err := dateutils.ParseOFXDate(value); err == nil {
				out.PeriodFrom = t
			}
		case "DTEND":
			if t, err := dateutils.ParseOFXDate(value); err == nil {
				out.PeriodTo = t
				out.StatementDate = t
			}
		case "BALAMT":
			bal, err := decimal.NewFromString(value)
			if err != nil {
				return nil, &reconerror.ParseError{
					Format: string(parser.FormatOFX),
					Line:   lineNo,
					Field:  "BALAMT",
					Value:  value,
					Err:    err,
				}
			}
			// The first BALAMT belongs to LEDGERBAL; AVAILBAL follows it
			// and must not overwrite the closing balance.
			if out.ClosingBalance.IsZero() {
				out.ClosingBalance = bal
			}
		case "DTASOF":
			if out.StatementDate.IsZero() {
				if t, err := dateutils.ParseOFXDate(value); err == nil {
					out.StatementDate = t
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OFX input: %w", err)
	}

	if inTxn {
		return nil, tagError(txnLine, "STMTTRN", "unterminated transaction block")
	}
	if !sawHeader {
		return nil, tagError(0, "OFXHEADER", "missing OFX header")
	}
	if !sawTxns {
		return nil, tagError(0, "STMTTRN", "no transactions present")
	}

	// Derive the opening balance from the ledger balance and net movement.
	net := decimal.Zero
	for _, tx := range out.Transactions {
		if tx.Indicator == parser.IndicatorDebit {
			net = net.Sub(tx.Amount)
		} else {
			net = net.Add(tx.Amount)
		}
	}
	out.OpeningBalance = out.ClosingBalance.Sub(net)

	log.WithFields(logrus.Fields{
		"account": out.AccountNumber,
		"entries": len(out.Transactions),
	}).Debug("Parsed OFX statement")
	return out, nil
}

func convertTransaction(txn map[string]string, line, pos int) (parser.ParsedTransaction, error) {
	var tx parser.ParsedTransaction
	tx.Position = pos

	rawAmount, ok := txn["TRNAMT"]
	if !ok {
		return tx, tagError(line, "TRNAMT", "missing amount")
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return tx, &reconerror.ParseError{
			Format: string(parser.FormatOFX),
			Line:   line,
			Field:  "TRNAMT",
			Value:  rawAmount,
			Err:    err,
		}
	}
	tx.RawAmount = rawAmount

	// Sign wins over TRNTYPE: some banks label everything OTHER.
	tx.Indicator = parser.IndicatorCredit
	if amount.IsNegative() {
		tx.Indicator = parser.IndicatorDebit
	} else if strings.EqualFold(txn["TRNTYPE"], "DEBIT") {
		tx.Indicator = parser.IndicatorDebit
	}
	tx.Amount = amount.Abs()

	rawDate, ok := txn["DTPOSTED"]
	if !ok {
		return tx, tagError(line, "DTPOSTED", "missing posting date")
	}
	date, err := dateutils.ParseOFXDate(rawDate)
	if err != nil {
		return tx, &reconerror.ParseError{
			Format: string(parser.FormatOFX),
			Line:   line,
			Field:  "DTPOSTED",
			Value:  rawDate,
			Err:    err,
		}
	}
	tx.TransactionDate = date
	tx.ValueDate = date
	tx.RawDate = rawDate
	if avail, ok := txn["DTAVAIL"]; ok {
		if t, err := dateutils.ParseOFXDate(avail); err == nil {
			tx.ValueDate = t
		}
	}

	tx.Reference = txn["FITID"]
	if refnum := txn["REFNUM"]; refnum != "" {
		tx.Reference = refnum
	}
	tx.RawRef = tx.Reference
	tx.CounterpartName = txn["NAME"]
	if payee := txn["PAYEE"]; payee != "" {
		tx.CounterpartName = payee
	}
	tx.Description = txn["MEMO"]
	return tx, nil
}

// tagValue splits an SGML line like <TRNAMT>-125.00 into tag and value.
// Lines holding only a closing tag or an opening aggregate yield ok=false.
func tagValue(line string) (string, string, bool) {
	if !strings.HasPrefix(line, "<") || strings.HasPrefix(line, "</") {
		return "", "", false
	}
	end := strings.IndexByte(line, '>')
	if end <= 1 {
		return "", "", false
	}
	tag := strings.ToUpper(line[1:end])
	value := strings.TrimSpace(line[end+1:])
	if value == "" {
		return "", "", false
	}
	// SGML values may carry a trailing close tag on the same line.
	if idx := strings.IndexByte(value, '<'); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return tag, value, value != ""
}

func tagError(line int, field, msg string) error {
	return &reconerror.ParseError{
		Format: string(parser.FormatOFX),
		Line:   line,
		Field:  field,
		Err:    fmt.Errorf("%s", msg),
	}
}
