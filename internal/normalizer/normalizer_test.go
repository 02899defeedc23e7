package normalizer

import (
	"testing"
	"time"

	"finrecon/bankrecon/internal/models"
	"finrecon/bankrecon/internal/parser"
	"finrecon/bankrecon/internal/reconerror"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log = logrus.New()
	log.SetLevel(logrus.DebugLevel)
}

var epsilon = decimal.RequireFromString("0.05")

func testStatement() *parser.ParsedStatement {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	return &parser.ParsedStatement{
		Format:         parser.FormatCSV,
		AccountNumber:  "SI56191000000123438",
		Currency:       "EUR",
		StatementDate:  time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		PeriodFrom:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodTo:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		OpeningBalance: decimal.RequireFromString("1000.00"),
		ClosingBalance: decimal.RequireFromString("1150.00"),
		Transactions: []parser.ParsedTransaction{
			{
				Position:        0,
				TransactionDate: day,
				ValueDate:       day,
				Amount:          decimal.RequireFromString("250.00"),
				Indicator:       parser.IndicatorCredit,
				Reference:       "INV-2024-0042",
				CounterpartName: "ABC d.o.o.",
				RawDate:         "2024-03-10",
				RawAmount:       "250.00",
				RawRef:          "INV-2024-0042",
			},
			{
				Position:        1,
				TransactionDate: day.AddDate(0, 0, 5),
				ValueDate:       day.AddDate(0, 0, 5),
				Amount:          decimal.RequireFromString("100.00"),
				Indicator:       parser.IndicatorDebit,
				CounterpartName: "Utility Co",
				RawDate:         "2024-03-15",
				RawAmount:       "-100.00",
			},
		},
	}
}

func TestNormalizeSignCanonicalization(t *testing.T) {
	norm, warnings, err := Normalize(testStatement(), epsilon)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, norm.Transactions, 2)
	credit, debit := norm.Transactions[0], norm.Transactions[1]

	assert.True(t, credit.Amount.Equal(decimal.RequireFromString("250.00")), "credits are positive")
	assert.Equal(t, models.TypeCredit, credit.Type)
	assert.True(t, debit.Amount.Equal(decimal.RequireFromString("-100.00")), "debits are negative")
	assert.Equal(t, models.TypeDebit, debit.Type)

	assert.Equal(t, models.StatusUnmatched, credit.MatchStatus)
	assert.Equal(t, norm.Statement.ID, credit.StatementID)
	assert.True(t, norm.Statement.TotalCredit.Equal(decimal.RequireFromString("250.00")))
	assert.True(t, norm.Statement.TotalDebit.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, models.StatementImported, norm.Statement.Status)
}

func TestNormalizeDeterministicIDs(t *testing.T) {
	first, _, err := Normalize(testStatement(), epsilon)
	require.NoError(t, err)
	second, _, err := Normalize(testStatement(), epsilon)
	require.NoError(t, err)

	assert.Equal(t, first.Statement.Fingerprint, second.Statement.Fingerprint,
		"fingerprint depends only on content")
	assert.NotEqual(t, first.Statement.ID, second.Statement.ID,
		"statement row IDs are fresh per import")
	for i := range first.Transactions {
		assert.Equal(t, first.Transactions[i].ID, second.Transactions[i].ID,
			"transaction IDs are reproducible across imports")
	}
}

func TestNormalizeZeroAmountIsHardError(t *testing.T) {
	ps := testStatement()
	ps.Transactions[1].Amount = decimal.Zero

	_, _, err := Normalize(ps, epsilon)
	require.Error(t, err)
	var parseErr *reconerror.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestNormalizeDuplicateSuspectWarning(t *testing.T) {
	ps := testStatement()
	dup := ps.Transactions[0]
	dup.Position = 2
	dup.RawRef = "SI00 2024 0042" // same reference, different spelling
	dup.Reference = "SI00 2024 0042"
	ps.Transactions = append(ps.Transactions, dup)
	ps.ClosingBalance = decimal.RequireFromString("1400.00")

	norm, warnings, err := Normalize(ps, epsilon)
	require.NoError(t, err)
	require.Len(t, norm.Transactions, 3, "duplicates are flagged, never dropped")

	var codes []string
	for _, w := range warnings {
		codes = append(codes, w.Code)
	}
	assert.NotContains(t, codes, reconerror.WarnBalanceMismatch)
	assert.NotContains(t, codes, reconerror.WarnDuplicateSuspect,
		"differing normalized references are distinct transactions")

	exact := ps.Transactions[0]
	exact.Position = 3
	ps.Transactions = append(ps.Transactions, exact)
	ps.ClosingBalance = decimal.RequireFromString("1650.00")
	_, warnings, err = Normalize(ps, epsilon)
	require.NoError(t, err)
	codes = codes[:0]
	for _, w := range warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, reconerror.WarnDuplicateSuspect)
}

func TestNormalizeBalanceMismatchWarning(t *testing.T) {
	ps := testStatement()
	ps.ClosingBalance = decimal.RequireFromString("1400.00")

	norm, warnings, err := Normalize(ps, epsilon)
	require.NoError(t, err)
	require.NotNil(t, norm, "balance mismatch never aborts an import")
	require.Len(t, warnings, 1)
	assert.Equal(t, reconerror.WarnBalanceMismatch, warnings[0].Code)
}

func TestNormalizeWithinEpsilonIsClean(t *testing.T) {
	ps := testStatement()
	ps.ClosingBalance = decimal.RequireFromString("1150.04")

	_, warnings, err := Normalize(ps, epsilon)
	require.NoError(t, err)
	assert.Empty(t, warnings, "rounding noise inside the epsilon passes")
}

func TestNormalizeReference(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "2024-0123", want: "20240123"},
		{input: "2024/0123", want: "20240123"},
		{input: "SI00 2024 0123", want: "si0020240123"},
		{input: "INV-2024-0042", want: "inv20240042"},
		{input: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeReference(tt.input))
	}
}
