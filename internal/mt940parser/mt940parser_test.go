package mt940parser

import (
	"testing"

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

const validMT940 = `{1:F01BANKSI2XAXXX0000000000}{2:I940BANKSI2XXXXXN}{4:
:20:STMT-2024-001
:25:SI56191000000123438
:28C:61/1
:60F:C240301EUR1000,00
:61:2403100310C250,00NTRFINV-2024-0042//BANK-77
:86:?20Invoice payment?32ABC d.o.o.?38SI56020170014356205
:61:240315D100,00NDDTNONREF
:86:Electricity March, Utility Co
:62F:C240331EUR1150,00
-`

func TestParseValidStatement(t *testing.T) {
	st, err := New().Parse([]byte(validMT940))
	require.NoError(t, err)

	assert.Equal(t, parser.FormatMT940, st.Format)
	assert.Equal(t, "SI56191000000123438", st.AccountNumber)
	assert.Equal(t, "EUR", st.Currency)
	assert.True(t, st.OpeningBalance.Equal(decimal.RequireFromString("1000")))
	assert.True(t, st.ClosingBalance.Equal(decimal.RequireFromString("1150")))
	assert.Equal(t, "2024-03-01", st.PeriodFrom.Format("2006-01-02"))
	assert.Equal(t, "2024-03-31", st.PeriodTo.Format("2006-01-02"))
	require.Len(t, st.Transactions, 2)

	credit := st.Transactions[0]
	assert.Equal(t, parser.IndicatorCredit, credit.Indicator)
	assert.True(t, credit.Amount.Equal(decimal.RequireFromString("250")))
	assert.Equal(t, "INV-2024-0042", credit.Reference, "bank reference after // is stripped")
	assert.Equal(t, "2024-03-10", credit.ValueDate.Format("2006-01-02"))
	assert.Equal(t, "ABC d.o.o.", credit.CounterpartName)
	assert.Equal(t, "SI56020170014356205", credit.CounterpartAccount)
	assert.Equal(t, "Invoice payment", credit.Description)

	debit := st.Transactions[1]
	assert.Equal(t, parser.IndicatorDebit, debit.Indicator)
	assert.Equal(t, "", debit.Reference, "NONREF maps to empty reference")
	assert.Equal(t, "Electricity March", debit.CounterpartName, "first segment of free text")
	assert.Equal(t, "Electricity March, Utility Co", debit.Description)
}

func TestParseReversalFlipsDirection(t *testing.T) {
	input := `:20:REV-1
:25:SI56191000000123438
:60F:C240301EUR100,00
:61:240310RC50,00NTRFREF-1
:61:240311RD50,00NTRFREF-2
:62F:C240331EUR100,00
`
	st, err := New().Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, st.Transactions, 2)
	assert.Equal(t, parser.IndicatorDebit, st.Transactions[0].Indicator, "RC reverses a credit")
	assert.Equal(t, parser.IndicatorCredit, st.Transactions[1].Indicator, "RD reverses a debit")
}

func TestParseDecimalAmounts(t *testing.T) {
	input := `:20:AMT-1
:25:ACC1
:60F:C240301EUR0,01
:61:240310C1234,56NTRFREF-1
:62F:C240331EUR1234,57
`
	st, err := New().Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, st.Transactions, 1)
	assert.True(t, st.Transactions[0].Amount.Equal(decimal.RequireFromString("1234.56")))
}

func TestParseRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "Empty", input: ""},
		{name: "NoTransactionReference", input: ":25:ACC1\n:60F:C240301EUR1,00\n:62F:C240331EUR1,00\n"},
		{name: "NoOpeningBalance", input: ":20:R1\n:25:ACC1\n:62F:C240331EUR1,00\n"},
		{name: "MalformedBalance", input: ":20:R1\n:25:ACC1\n:60F:XYZ\n:62F:C240331EUR1,00\n"},
		{name: "MalformedStatementLine", input: ":20:R1\n:25:ACC1\n:60F:C240301EUR1,00\n:61:garbage\n:62F:C240331EUR1,00\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Parse([]byte(tt.input))
			require.Error(t, err)
			var parseErr *reconerror.ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}
