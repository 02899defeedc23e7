// Package csvparser parses delimiter-separated bank statement exports.
// Banks disagree on header names and on whether they ship one signed amount
// column or a debit/credit pair; both shapes are normalized here into the
// canonical parsed statement.
package csvparser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"finrecon/bankrecon/internal/dateutils"
	"finrecon/bankrecon/internal/parser"
	"finrecon/bankrecon/internal/reconerror"

	"github.com/gocarina/gocsv"
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

// statementRow is the canonical row shape gocsv unmarshals into after the
// header line has been rewritten to canonical names.
type statementRow struct {
	Date        string `csv:"date"`
	ValueDate   string `csv:"value_date"`
	Amount      string `csv:"amount"`
	Debit       string `csv:"debit"`
	Credit      string `csv:"credit"`
	Currency    string `csv:"currency"`
	Reference   string `csv:"reference"`
	Counterpart string `csv:"counterpart"`
	Account     string `csv:"account"`
	Description string `csv:"description"`
}

// headerSynonyms maps the header spellings seen in bank exports onto the
// canonical column names.
var headerSynonyms = map[string]string{
	"date":              "date",
	"transaction date":  "date",
	"booking date":      "date",
	"datum":             "date",
	"value date":        "value_date",
	"valuta":            "value_date",
	"amount":            "amount",
	"betrag":            "amount",
	"znesek":            "amount",
	"debit":             "debit",
	"debit amount":      "debit",
	"withdrawal":        "debit",
	"credit":            "credit",
	"credit amount":     "credit",
	"deposit":           "credit",
	"currency":          "currency",
	"ccy":               "currency",
	"valuta oznaka":     "currency",
	"reference":         "reference",
	"payment reference": "reference",
	"ref":               "reference",
	"sklic":             "reference",
	"counterpart":       "counterpart",
	"counterparty":      "counterpart",
	"partner":           "counterpart",
	"name":              "counterpart",
	"payee":             "counterpart",
	"account":           "account",
	"iban":              "account",
	"counterparty iban": "account",
	"description":       "description",
	"memo":              "description",
	"details":           "description",
	"namen":             "description",
}

// CSVParser parses delimiter-separated statements.
type CSVParser struct{}

// New returns a CSV statement parser.
func New() parser.Parser {
	return &CSVParser{}
}

// Parse detects the delimiter, canonicalizes the header and unmarshals the
// rows. The statement-level fields a CSV export lacks (balances, period)
// are derived from the rows; the balance equation then holds by
// construction, so no spurious warnings arise downstream.
func (p *CSVParser) Parse(data []byte) (*parser.ParsedStatement, error) {
	data = bytes.TrimLeft(data, "\ufeff")
	delim := parser.DetectDelimiter(data)
	if delim == 0 {
		return nil, &reconerror.ParseError{
			Format: string(parser.FormatCSV),
			Line:   1,
			Field:  "header",
			Err:    fmt.Errorf("no delimiter found in header line"),
		}
	}

	canonical, hasAmount, hasPair, err := canonicalizeHeader(data, delim)
	if err != nil {
		return nil, err
	}
	if !hasAmount && !hasPair {
		return nil, &reconerror.ParseError{
			Format: string(parser.FormatCSV),
			Line:   1,
			Field:  "header",
			Err:    fmt.Errorf("no amount column and no debit/credit column pair"),
		}
	}

	var rows []statementRow
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = delim
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		return r
	})
	if err := gocsv.UnmarshalBytes(canonical, &rows); err != nil {
		return nil, &reconerror.ParseError{
			Format: string(parser.FormatCSV),
			Field:  "rows",
			Err:    err,
		}
	}

	out := &parser.ParsedStatement{Format: parser.FormatCSV}
	for i, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		tx, err := convertRow(i, row)
		if err != nil {
			return nil, err
		}
		if out.Currency == "" {
			out.Currency = tx.Currency
		}
		out.Transactions = append(out.Transactions, tx)
	}

	deriveStatementFields(out)

	log.WithFields(logrus.Fields{
		"delimiter": string(delim),
		"rows":      len(out.Transactions),
	}).Debug("Parsed CSV statement")
	return out, nil
}

// canonicalizeHeader rewrites the header line to canonical column names so
// gocsv can map by tag. Unrecognized columns keep their name and are
// ignored by the unmarshal.
func canonicalizeHeader(data []byte, delim rune) ([]byte, bool, bool, error) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return nil, false, false, &reconerror.ParseError{
			Format: string(parser.FormatCSV),
			Line:   1,
			Field:  "header",
			Err:    fmt.Errorf("missing header line"),
		}
	}

	header := strings.TrimRight(string(data[:idx]), "\r")
	cells := strings.Split(header, string(delim))
	var hasAmount, hasDebit, hasCredit bool
	for i, cell := range cells {
		key := strings.ToLower(strings.Trim(strings.TrimSpace(cell), `"`))
		if canon, ok := headerSynonyms[key]; ok {
			cells[i] = canon
			switch canon {
			case "amount":
				hasAmount = true
			case "debit":
				hasDebit = true
			case "credit":
				hasCredit = true
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString(strings.Join(cells, string(delim)))
	buf.WriteByte('\n')
	buf.Write(data[idx+1:])
	return buf.Bytes(), hasAmount, hasDebit && hasCredit, nil
}

// convertRow turns one canonical row into a parsed transaction. Line
// numbers in errors are 1-based and account for the header.
func convertRow(i int, row statementRow) (parser.ParsedTransaction, error) {
	line := i + 2
	var tx parser.ParsedTransaction
	tx.Position = i

	date, err := dateutils.ParseDate(row.Date)
	if err != nil {
		return tx, rowError(line, "date", row.Date, err)
	}
	tx.TransactionDate = date
	tx.ValueDate = date
	tx.RawDate = row.Date
	if row.ValueDate != "" {
		if tx.ValueDate, err = dateutils.ParseDate(row.ValueDate); err != nil {
			return tx, rowError(line, "value_date", row.ValueDate, err)
		}
	}

	switch {
	case row.Amount != "":
		amount, err := parseAmount(row.Amount)
		if err != nil {
			return tx, rowError(line, "amount", row.Amount, err)
		}
		tx.Indicator = parser.IndicatorCredit
		if amount.IsNegative() {
			tx.Indicator = parser.IndicatorDebit
		}
		tx.Amount = amount.Abs()
		tx.RawAmount = row.Amount
	case row.Debit != "":
		amount, err := parseAmount(row.Debit)
		if err != nil {
			return tx, rowError(line, "debit", row.Debit, err)
		}
		tx.Indicator = parser.IndicatorDebit
		tx.Amount = amount.Abs()
		tx.RawAmount = row.Debit
	case row.Credit != "":
		amount, err := parseAmount(row.Credit)
		if err != nil {
			return tx, rowError(line, "credit", row.Credit, err)
		}
		tx.Indicator = parser.IndicatorCredit
		tx.Amount = amount.Abs()
		tx.RawAmount = row.Credit
	default:
		return tx, rowError(line, "amount", "", fmt.Errorf("row has neither amount nor debit/credit value"))
	}

	tx.Currency = strings.ToUpper(strings.TrimSpace(row.Currency))
	tx.Reference = strings.TrimSpace(row.Reference)
	tx.RawRef = tx.Reference
	tx.CounterpartName = strings.TrimSpace(row.Counterpart)
	tx.CounterpartAccount = strings.TrimSpace(row.Account)
	tx.Description = strings.TrimSpace(row.Description)
	return tx, nil
}

// parseAmount handles thousand separators and comma decimals. Decimal
// parsing only; float64 never touches an amount.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "'", "")
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		// Both separators present: the one further right is the decimal
		// point, the other marks thousands. Covers 1.234,56 and 1,234.56.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	s = strings.ReplaceAll(s, ",", ".")
	return decimal.NewFromString(s)
}

// deriveStatementFields computes the period from the row dates and treats
// the net movement as the closing balance over a zero opening, since CSV
// exports carry no balance records.
func deriveStatementFields(out *parser.ParsedStatement) {
	net := decimal.Zero
	for _, tx := range out.Transactions {
		if out.PeriodFrom.IsZero() || tx.TransactionDate.Before(out.PeriodFrom) {
			out.PeriodFrom = tx.TransactionDate
		}
		if tx.TransactionDate.After(out.PeriodTo) {
			out.PeriodTo = tx.TransactionDate
		}
		if tx.Indicator == parser.IndicatorDebit {
			net = net.Sub(tx.Amount)
		} else {
			net = net.Add(tx.Amount)
		}
	}
	out.ClosingBalance = net
	out.StatementDate = out.PeriodTo
}

func isEmptyRow(row statementRow) bool {
	return row.Date == "" && row.Amount == "" && row.Debit == "" && row.Credit == ""
}

func rowError(line int, field, value string, err error) error {
	return &reconerror.ParseError{
		Format: string(parser.FormatCSV),
		Line:   line,
		Field:  field,
		Value:  value,
		Err:    err,
	}
}
