// Package mt940parser parses SWIFT MT940 customer statement messages.
package mt940parser

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
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

// MT940Parser parses MT940 statements.
type MT940Parser struct{}

// New returns an MT940 parser.
func New() parser.Parser {
	return &MT940Parser{}
}

// statementLine matches the :61: field:
// value date (6), optional entry date (4), D/C mark with reversal variants,
// optional funds code letter, amount with comma decimal, 4-char transaction
// type, then the customer reference with optional //bank reference.
var statementLine = regexp.MustCompile(
	`^(\d{6})(\d{4})?(RC|RD|C|D)([A-Z])?([\d,]+)([A-Z][A-Z0-9]{3})(.*)$`)

// balanceLine matches :60F:/:62F: (and the intermediate M variants):
// D/C mark, date (6), currency (3), amount with comma decimal.
var balanceLine = regexp.MustCompile(`^(C|D)(\d{6})([A-Z]{3})([\d,]+)$`)

type rawField struct {
	tag   string
	value string
	line  int
}

// Parse scans the tagged fields of an MT940 message and maps them onto the
// canonical parsed statement. A missing :20: or :60F: header, or any
// malformed numeric field, rejects the whole file.
func (p *MT940Parser) Parse(data []byte) (*parser.ParsedStatement, error) {
	fields, err := splitFields(data)
	if err != nil {
		return nil, err
	}

	out := &parser.ParsedStatement{Format: parser.FormatMT940}
	var (
		sawRef     bool
		sawOpening bool
		sawClosing bool
		current    *parser.ParsedTransaction
	)

	flush := func() {
		if current != nil {
			out.Transactions = append(out.Transactions, *current)
			current = nil
		}
	}

	for _, f := range fields {
		switch f.tag {
		case "20":
			sawRef = true
		case "25":
			out.AccountNumber = strings.TrimSpace(f.value)
		case "28C":
			// statement/sequence number, not needed for matching
		case "60F", "60M":
			bal, ccy, date, err := parseBalance(f)
			if err != nil {
				return nil, err
			}
			if f.tag == "60F" {
				out.OpeningBalance = bal
				out.Currency = ccy
				out.PeriodFrom = date
				sawOpening = true
			}
		case "62F", "62M":
			bal, ccy, date, err := parseBalance(f)
			if err != nil {
				return nil, err
			}
			if f.tag == "62F" {
				out.ClosingBalance = bal
				if out.Currency == "" {
					out.Currency = ccy
				}
				out.PeriodTo = date
				out.StatementDate = date
				sawClosing = true
			}
		case "61":
			flush()
			tx, err := parseStatementLine(f, len(out.Transactions))
			if err != nil {
				return nil, err
			}
			current = &tx
		case "86":
			if current == nil {
				// Statement-level information field, keep as bank name hint.
				if out.BankName == "" {
					out.BankName = firstLine(f.value)
				}
				continue
			}
			applyInformation(current, f.value)
		}
	}
	flush()

	if !sawRef {
		return nil, headerError("20", "missing transaction reference field")
	}
	if !sawOpening || !sawClosing {
		return nil, headerError("60F", "missing opening or closing balance field")
	}

	log.WithFields(logrus.Fields{
		"account": out.AccountNumber,
		"entries": len(out.Transactions),
	}).Debug("Parsed MT940 statement")
	return out, nil
}

// splitFields cuts the message into :TAG:value fields, joining continuation
// lines. SWIFT block markers around the text block are tolerated.
func splitFields(data []byte) ([]rawField, error) {
	var fields []rawField
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || line == "-" {
			continue
		}
		if strings.HasPrefix(line, "{") {
			// Block header like {1:...}{2:...}{4:; the text block content
			// follows on subsequent lines.
			continue
		}
		if strings.HasPrefix(line, ":") {
			rest := line[1:]
			idx := strings.Index(rest, ":")
			if idx <= 0 {
				return nil, &reconerror.ParseError{
					Format: string(parser.FormatMT940),
					Line:   lineNo,
					Field:  "tag",
					Value:  line,
					Err:    fmt.Errorf("malformed field tag"),
				}
			}
			fields = append(fields, rawField{tag: rest[:idx], value: rest[idx+1:], line: lineNo})
			continue
		}
		if len(fields) == 0 {
			return nil, headerError("20", "content before first tagged field")
		}
		// Continuation line of the previous field.
		fields[len(fields)-1].value += "\n" + line
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading MT940 input: %w", err)
	}
	if len(fields) == 0 {
		return nil, headerError("20", "no tagged fields present")
	}
	return fields, nil
}

func parseBalance(f rawField) (decimal.Decimal, string, time.Time, error) {
	m := balanceLine.FindStringSubmatch(strings.TrimSpace(firstLine(f.value)))
	if m == nil {
		return decimal.Zero, "", time.Time{}, &reconerror.ParseError{
			Format: string(parser.FormatMT940),
			Line:   f.line,
			Field:  ":" + f.tag + ":",
			Value:  f.value,
			Err:    fmt.Errorf("malformed balance field"),
		}
	}
	amount, err := parseSwiftAmount(m[4])
	if err != nil {
		return decimal.Zero, "", time.Time{}, &reconerror.ParseError{
			Format: string(parser.FormatMT940),
			Line:   f.line,
			Field:  ":" + f.tag + ":",
			Value:  m[4],
			Err:    err,
		}
	}
	if m[1] == "D" {
		amount = amount.Neg()
	}
	date, err := dateutils.ParseSwiftDate(m[2])
	if err != nil {
		return decimal.Zero, "", time.Time{}, &reconerror.ParseError{
			Format: string(parser.FormatMT940),
			Line:   f.line,
			Field:  ":" + f.tag + ":",
			Value:  m[2],
			Err:    err,
		}
	}
	return amount, m[3], date, nil
}

func parseStatementLine(f rawField, pos int) (parser.ParsedTransaction, error) {
	var tx parser.ParsedTransaction
	tx.Position = pos

	value := strings.TrimSpace(firstLine(f.value))
	m := statementLine.FindStringSubmatch(value)
	if m == nil {
		return tx, &reconerror.ParseError{
			Format: string(parser.FormatMT940),
			Line:   f.line,
			Field:  ":61:",
			Value:  value,
			Err:    fmt.Errorf("malformed statement line"),
		}
	}

	valueDate, err := dateutils.ParseSwiftDate(m[1])
	if err != nil {
		return tx, &reconerror.ParseError{
			Format: string(parser.FormatMT940),
			Line:   f.line,
			Field:  ":61:",
			Value:  m[1],
			Err:    err,
		}
	}
	tx.ValueDate = valueDate
	tx.TransactionDate = valueDate
	if m[2] != "" {
		// Entry date is MMDD in the value date's year.
		if entry, err := dateutils.ParseSwiftDate(m[1][:2] + m[2]); err == nil {
			tx.TransactionDate = entry
		}
	}
	tx.RawDate = m[1]

	amount, err := parseSwiftAmount(m[5])
	if err != nil {
		return tx, &reconerror.ParseError{
			Format: string(parser.FormatMT940),
			Line:   f.line,
			Field:  ":61:",
			Value:  m[5],
			Err:    err,
		}
	}
	tx.Amount = amount
	tx.RawAmount = m[5]

	// RC/RD reversals flip the original direction.
	switch m[3] {
	case "C", "RD":
		tx.Indicator = parser.IndicatorCredit
	case "D", "RC":
		tx.Indicator = parser.IndicatorDebit
	}

	ref := strings.TrimSpace(m[7])
	if idx := strings.Index(ref, "//"); idx >= 0 {
		ref = strings.TrimSpace(ref[:idx])
	}
	if ref == "NONREF" {
		ref = ""
	}
	tx.Reference = ref
	tx.RawRef = strings.TrimSpace(m[7])

	return tx, nil
}

// applyInformation fills counterpart and description from the :86: free
// text. Structured subfields (?20, ?32, ?38 style) are honored when
// present, otherwise the whole text becomes the description.
func applyInformation(tx *parser.ParsedTransaction, value string) {
	text := strings.ReplaceAll(value, "\n", " ")
	if !strings.Contains(text, "?") {
		tx.Description = strings.TrimSpace(text)
		if tx.CounterpartName == "" {
			tx.CounterpartName = firstSegment(text)
		}
		return
	}

	var desc []string
	for _, part := range strings.Split(text, "?") {
		if len(part) < 2 {
			continue
		}
		code, rest := part[:2], strings.TrimSpace(part[2:])
		switch {
		case code >= "20" && code <= "29":
			desc = append(desc, rest)
		case code == "32" || code == "33":
			if tx.CounterpartName == "" {
				tx.CounterpartName = rest
			} else {
				tx.CounterpartName += " " + rest
			}
		case code == "31" || code == "38":
			tx.CounterpartAccount = rest
		}
	}
	tx.Description = strings.TrimSpace(strings.Join(desc, " "))
	if tx.Reference == "" && tx.Description != "" {
		tx.RawRef = tx.Description
	}
}

// parseSwiftAmount converts the comma-decimal SWIFT amount notation.
func parseSwiftAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSuffix(strings.ReplaceAll(s, ",", "."), ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed amount: %w", err)
	}
	return d, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func firstSegment(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ",;"); idx > 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

func headerError(field, msg string) error {
	return &reconerror.ParseError{
		Format: string(parser.FormatMT940),
		Field:  ":" + field + ":",
		Err:    fmt.Errorf("%s", msg),
	}
}
