package camtparser

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

const validCAMT = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.053.001.02">
  <BkToCstmrStmt>
    <Stmt>
      <Id>STMT-2024-03</Id>
      <CreDtTm>2024-03-31T23:59:00Z</CreDtTm>
      <FrToDt>
        <FrDtTm>2024-03-01T00:00:00Z</FrDtTm>
        <ToDtTm>2024-03-31T23:59:59Z</ToDtTm>
      </FrToDt>
      <Acct>
        <Id><IBAN>SI56191000000123438</IBAN></Id>
        <Ccy>EUR</Ccy>
        <Svcr><FinInstnId><Nm>Deželna Banka</Nm></FinInstnId></Svcr>
      </Acct>
      <Bal>
        <Tp><CdOrPrtry><Cd>OPBD</Cd></CdOrPrtry></Tp>
        <Amt Ccy="EUR">1000.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
      </Bal>
      <Bal>
        <Tp><CdOrPrtry><Cd>CLBD</Cd></CdOrPrtry></Tp>
        <Amt Ccy="EUR">1150.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
      </Bal>
      <Ntry>
        <Amt Ccy="EUR">250.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <BookgDt><Dt>2024-03-10</Dt></BookgDt>
        <ValDt><Dt>2024-03-11</Dt></ValDt>
        <NtryDtls>
          <TxDtls>
            <Refs><EndToEndId>E2E-001</EndToEndId></Refs>
            <RltdPties>
              <Dbtr><Nm>ABC d.o.o.</Nm></Dbtr>
              <DbtrAcct><Id><IBAN>SI56020170014356205</IBAN></Id></DbtrAcct>
            </RltdPties>
            <RmtInf>
              <Ustrd>Invoice payment</Ustrd>
              <Strd><CdtrRefInf><Ref>SI00 2024-0042</Ref></CdtrRefInf></Strd>
            </RmtInf>
          </TxDtls>
        </NtryDtls>
      </Ntry>
      <Ntry>
        <Amt Ccy="EUR">100.00</Amt>
        <CdtDbtInd>DBIT</CdtDbtInd>
        <BookgDt><Dt>2024-03-15</Dt></BookgDt>
        <NtryDtls>
          <TxDtls>
            <Refs><EndToEndId>NOTPROVIDED</EndToEndId></Refs>
            <RltdPties>
              <Cdtr><Nm>Utility Co</Nm></Cdtr>
            </RltdPties>
          </TxDtls>
        </NtryDtls>
        <AddtlNtryInf>Electricity March</AddtlNtryInf>
      </Ntry>
    </Stmt>
  </BkToCstmrStmt>
</Document>`

func TestParseValidStatement(t *testing.T) {
	p := New()
	st, err := p.Parse([]byte(validCAMT))
	require.NoError(t, err)

	assert.Equal(t, parser.FormatCAMT053, st.Format)
	assert.Equal(t, "SI56191000000123438", st.AccountNumber)
	assert.Equal(t, "Deželna Banka", st.BankName)
	assert.Equal(t, "EUR", st.Currency)
	assert.True(t, st.OpeningBalance.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, st.ClosingBalance.Equal(decimal.RequireFromString("1150.00")))
	require.Len(t, st.Transactions, 2)

	credit := st.Transactions[0]
	assert.Equal(t, 0, credit.Position)
	assert.Equal(t, parser.IndicatorCredit, credit.Indicator)
	assert.True(t, credit.Amount.Equal(decimal.RequireFromString("250.00")))
	assert.Equal(t, "SI00 2024-0042", credit.Reference, "structured creditor reference wins over EndToEndId")
	assert.Equal(t, "ABC d.o.o.", credit.CounterpartName)
	assert.Equal(t, "SI56020170014356205", credit.CounterpartAccount)
	assert.Equal(t, "2024-03-10", credit.TransactionDate.Format("2006-01-02"))
	assert.Equal(t, "2024-03-11", credit.ValueDate.Format("2006-01-02"))

	debit := st.Transactions[1]
	assert.Equal(t, parser.IndicatorDebit, debit.Indicator)
	assert.Equal(t, "", debit.Reference, "NOTPROVIDED end-to-end id does not become a reference")
	assert.Equal(t, "Utility Co", debit.CounterpartName, "creditor is the counterpart on a debit")
	assert.Equal(t, "Electricity March", debit.Description)
	assert.Equal(t, debit.TransactionDate, debit.ValueDate, "value date falls back to booking date")
}

func TestParseDebitBalance(t *testing.T) {
	xml := `<Document><BkToCstmrStmt><Stmt>
  <CreDtTm>2024-03-31</CreDtTm>
  <Acct><Id><IBAN>SI56191000000123438</IBAN></Id><Ccy>EUR</Ccy></Acct>
  <Bal><Tp><CdOrPrtry><Cd>OPBD</Cd></CdOrPrtry></Tp><Amt Ccy="EUR">500.00</Amt><CdtDbtInd>DBIT</CdtDbtInd></Bal>
  <Bal><Tp><CdOrPrtry><Cd>CLBD</Cd></CdOrPrtry></Tp><Amt Ccy="EUR">500.00</Amt><CdtDbtInd>CRDT</CdtDbtInd></Bal>
</Stmt></BkToCstmrStmt></Document>`

	st, err := New().Parse([]byte(xml))
	require.NoError(t, err)
	assert.True(t, st.OpeningBalance.Equal(decimal.RequireFromString("-500.00")), "DBIT balance is negative")
}

func TestParseRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "UnbalancedXML", input: `<Document><BkToCstmrStmt>`},
		{name: "NoStatement", input: `<Document><BkToCstmrStmt></BkToCstmrStmt></Document>`},
		{
			name: "MissingClosingBalance",
			input: `<Document><BkToCstmrStmt><Stmt>
  <CreDtTm>2024-03-31</CreDtTm>
  <Acct><Id><IBAN>SI56</IBAN></Id></Acct>
  <Bal><Tp><CdOrPrtry><Cd>OPBD</Cd></CdOrPrtry></Tp><Amt Ccy="EUR">1.00</Amt><CdtDbtInd>CRDT</CdtDbtInd></Bal>
</Stmt></BkToCstmrStmt></Document>`,
		},
		{
			name: "BadIndicator",
			input: `<Document><BkToCstmrStmt><Stmt>
  <CreDtTm>2024-03-31</CreDtTm>
  <Acct><Id><IBAN>SI56</IBAN></Id><Ccy>EUR</Ccy></Acct>
  <Bal><Tp><CdOrPrtry><Cd>OPBD</Cd></CdOrPrtry></Tp><Amt Ccy="EUR">1.00</Amt><CdtDbtInd>CRDT</CdtDbtInd></Bal>
  <Bal><Tp><CdOrPrtry><Cd>CLBD</Cd></CdOrPrtry></Tp><Amt Ccy="EUR">1.00</Amt><CdtDbtInd>CRDT</CdtDbtInd></Bal>
  <Ntry><Amt Ccy="EUR">10.00</Amt><CdtDbtInd>BOTH</CdtDbtInd><BookgDt><Dt>2024-03-10</Dt></BookgDt></Ntry>
</Stmt></BkToCstmrStmt></Document>`,
		},
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
