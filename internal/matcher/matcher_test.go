package matcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"finrecon/bankrecon/internal/config"
	"finrecon/bankrecon/internal/ledger"
	"finrecon/bankrecon/internal/models"
	"finrecon/bankrecon/internal/parser"
	"finrecon/bankrecon/internal/reconerror"
	"finrecon/bankrecon/internal/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log = logrus.New()
	log.SetLevel(logrus.DebugLevel)
}

func openInvoice(id, ref, partner, remaining string) models.Target {
	return models.Target{
		ID:              id,
		Type:            models.TargetInvoice,
		Reference:       ref,
		PartnerName:     partner,
		RemainingAmount: decimal.RequireFromString(remaining),
		Currency:        "EUR",
		IssueDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:         time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

type fixture struct {
	svc    *Service
	store  *store.MemoryStore
	ledger *ledger.MemoryLedger
}

func newFixture(targets ...models.Target) *fixture {
	st := store.NewMemoryStore()
	l := ledger.NewMemoryLedger(targets)
	return &fixture{
		svc:    New(st, l, l, config.DefaultMatching()),
		store:  st,
		ledger: l,
	}
}

// importCSV imports a statement and returns its transactions in position
// order.
func (f *fixture) importCSV(t *testing.T, csv string) (*ImportResult, []models.BankTransaction) {
	t.Helper()
	result, err := f.svc.Import(context.Background(), []byte(csv), parser.FormatCSV)
	require.NoError(t, err)
	txs, err := f.store.TransactionsByStatement(context.Background(), result.Statement.ID)
	require.NoError(t, err)
	return result, txs
}

const singleCredit = `date,amount,currency,reference,counterpart,description
2024-03-10,250.00,EUR,INV-2024-0042,ABC d.o.o.,Invoice payment
`

func TestAutoMatchExactReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(openInvoice("inv-1", "INV-2024-0042", "ABC d.o.o.", "250.00"))
	result, txs := f.importCSV(t, singleCredit)
	require.Len(t, txs, 1)

	summary, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Matched)
	assert.Zero(t, summary.Ambiguous)
	assert.Zero(t, summary.Errors)

	tx, err := f.store.Transaction(ctx, txs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusMatched, tx.MatchStatus)
	assert.Equal(t, "inv-1", tx.MatchedTargetID)
	require.NotNil(t, tx.MatchConfidence)
	assert.Equal(t, 100.0, *tx.MatchConfidence)

	target, err := f.ledger.Target(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, target.RemainingAmount.IsZero(), "the allocation settles the invoice")
	assert.True(t, f.ledger.Allocated("inv-1").Equal(decimal.RequireFromString("250.00")))

	entries, err := f.store.MatchesByTransaction(ctx, txs[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionMatch, entries[0].Action)
	assert.Equal(t, models.SystemActor, entries[0].MatchedBy)
	assert.NotEmpty(t, entries[0].PaymentID)

	st, err := f.store.Statement(ctx, result.Statement.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatementMatched, st.Status, "every transaction resolved")
}

func TestAutoMatchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(openInvoice("inv-1", "INV-2024-0042", "ABC d.o.o.", "250.00"))
	result, txs := f.importCSV(t, singleCredit)

	_, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)
	summary, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.Matched, "matched transactions are not touched again")

	entries, err := f.store.MatchesByTransaction(ctx, txs[0].ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no duplicate log entries")
	assert.True(t, f.ledger.Allocated("inv-1").Equal(decimal.RequireFromString("250.00")),
		"no double allocation")
}

func TestAutoMatchAmbiguityBlocks(t *testing.T) {
	ctx := context.Background()
	// Two invoices whose references normalize to the same value: both score
	// identically, so neither may be chosen automatically.
	f := newFixture(
		openInvoice("inv-a", "INV-7", "ABC d.o.o.", "250.00"),
		openInvoice("inv-b", "INV/7", "ABC d.o.o.", "250.00"),
	)
	csv := `date,amount,currency,reference,counterpart
2024-03-10,250.00,EUR,INV-7,ABC d.o.o.
`
	result, txs := f.importCSV(t, csv)

	summary, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.Matched)
	assert.Equal(t, 1, summary.Ambiguous)

	tx, _ := f.store.Transaction(ctx, txs[0].ID)
	assert.Equal(t, models.StatusUnmatched, tx.MatchStatus)
	assert.True(t, f.ledger.Allocated("inv-a").IsZero())
	assert.True(t, f.ledger.Allocated("inv-b").IsZero())

	st, _ := f.store.Statement(ctx, result.Statement.ID)
	assert.Equal(t, models.StatementProcessing, st.Status, "unresolved transactions keep the statement open")
}

func TestAutoMatchBelowThresholdIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(openInvoice("inv-1", "INV-1", "Somebody Else", "900.00"))
	csv := `date,amount,currency,reference,counterpart
2024-03-10,901.00,EUR,,Unknown Payer
`
	result, txs := f.importCSV(t, csv)

	summary, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.Matched)
	assert.Equal(t, 1, summary.Skipped)

	tx, _ := f.store.Transaction(ctx, txs[0].ID)
	assert.Equal(t, models.StatusUnmatched, tx.MatchStatus)
}

func TestAutoMatchOverpaymentGoesPartial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(openInvoice("inv-1", "INV-2024-0042", "ABC d.o.o.", "250.00"))
	csv := `date,amount,currency,reference,counterpart
2024-03-10,300.00,EUR,INV-2024-0042,ABC d.o.o.
`
	result, txs := f.importCSV(t, csv)

	summary, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Partial)

	tx, _ := f.store.Transaction(ctx, txs[0].ID)
	assert.Equal(t, models.StatusPartial, tx.MatchStatus)

	target, _ := f.ledger.Target(ctx, "inv-1")
	assert.True(t, target.RemainingAmount.IsZero(), "only the covered part is allocated")
	assert.True(t, f.ledger.Allocated("inv-1").Equal(decimal.RequireFromString("250.00")),
		"the surplus stays unallocated")

	entries, _ := f.store.MatchesByTransaction(ctx, txs[0].ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionPartial, entries[0].Action)
	assert.Contains(t, string(entries[0].RuleTags), string(models.TagSurplusUnallocated))
}

func TestAutoMatchUnderpaymentGoesPartial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(openInvoice("inv-1", "INV-2024-0042", "ABC d.o.o.", "255.00"))
	result, txs := f.importCSV(t, singleCredit)

	summary, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Partial, "a payment below the remaining amount does not settle the invoice")
	assert.Zero(t, summary.Matched)

	tx, _ := f.store.Transaction(ctx, txs[0].ID)
	assert.Equal(t, models.StatusPartial, tx.MatchStatus)

	target, _ := f.ledger.Target(ctx, "inv-1")
	assert.True(t, target.RemainingAmount.Equal(decimal.RequireFromString("5.00")),
		"the invoice stays open for the rest")

	entries, _ := f.store.MatchesByTransaction(ctx, txs[0].ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionPartial, entries[0].Action)
	assert.NotContains(t, string(entries[0].RuleTags), string(models.TagSurplusUnallocated),
		"an underpayment carries no surplus")
}

func TestManualMatchUnderpaymentGoesPartial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(openInvoice("inv-1", "OTHER-REF", "Somebody", "1000.00"))
	_, txs := f.importCSV(t, singleCredit)
	txID := txs[0].ID

	status, err := f.svc.ManualMatch(ctx, txID, "inv-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartial, status)

	target, _ := f.ledger.Target(ctx, "inv-1")
	assert.True(t, target.RemainingAmount.Equal(decimal.RequireFromString("750.00")))
	assert.True(t, f.ledger.Allocated("inv-1").Equal(decimal.RequireFromString("250.00")))

	entries, _ := f.store.MatchesByTransaction(ctx, txID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionPartial, entries[0].Action)
}

func TestAutoMatchCompetingTransactionsConserve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(openInvoice("inv-1", "INV-2024-0042", "ABC d.o.o.", "250.00"))
	csv := `date,amount,currency,reference,counterpart
2024-03-10,250.00,EUR,INV-2024-0042,ABC d.o.o.
2024-03-12,250.00,EUR,INV-2024-0042,ABC d.o.o.
`
	result, txs := f.importCSV(t, csv)
	require.Len(t, txs, 2)

	summary, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Matched, "only one payment fits the invoice")
	assert.Equal(t, 1, summary.Ambiguous, "the losing transaction is reported for review")
	assert.Zero(t, summary.Errors)

	assert.True(t, f.ledger.Allocated("inv-1").Equal(decimal.RequireFromString("250.00")),
		"allocations never exceed the invoice amount")

	first, _ := f.store.Transaction(ctx, txs[0].ID)
	second, _ := f.store.Transaction(ctx, txs[1].ID)
	assert.Equal(t, models.StatusMatched, first.MatchStatus, "the earlier transaction wins")
	assert.Equal(t, models.StatusUnmatched, second.MatchStatus)
}

func TestManualMatchAndUnmatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(openInvoice("inv-1", "OTHER-REF", "Somebody", "250.00"))
	_, txs := f.importCSV(t, singleCredit)
	txID := txs[0].ID

	status, err := f.svc.ManualMatch(ctx, txID, "inv-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusMatched, status)

	tx, _ := f.store.Transaction(ctx, txID)
	assert.Equal(t, models.StatusMatched, tx.MatchStatus)
	assert.Nil(t, tx.MatchConfidence, "manual matches carry no score")

	target, _ := f.ledger.Target(ctx, "inv-1")
	assert.True(t, target.RemainingAmount.IsZero())

	require.NoError(t, f.svc.Unmatch(ctx, txID, "alice", "wrong invoice"))

	tx, _ = f.store.Transaction(ctx, txID)
	assert.Equal(t, models.StatusUnmatched, tx.MatchStatus)
	assert.Empty(t, tx.MatchedTargetID)

	target, _ = f.ledger.Target(ctx, "inv-1")
	assert.True(t, target.RemainingAmount.Equal(decimal.RequireFromString("250.00")),
		"unmatch restores the full remaining amount")

	entries, _ := f.store.MatchesByTransaction(ctx, txID)
	require.Len(t, entries, 2, "the unmatch is appended, the match entry stays")
	assert.Equal(t, models.ActionMatch, entries[0].Action)
	assert.Equal(t, models.ActionUnmatch, entries[1].Action)
	assert.Equal(t, "wrong invoice", entries[1].Reason)

	// The invoice is open again, so a rematch must succeed.
	_, err = f.svc.ManualMatch(ctx, txID, "inv-1", "alice")
	require.NoError(t, err)
}

func TestManualMatchValidation(t *testing.T) {
	ctx := context.Background()
	usd := openInvoice("inv-usd", "U-1", "ABC d.o.o.", "250.00")
	usd.Currency = "USD"
	f := newFixture(usd, openInvoice("inv-settled", "S-1", "ABC d.o.o.", "0"))
	_, txs := f.importCSV(t, singleCredit)
	txID := txs[0].ID

	_, err := f.svc.ManualMatch(ctx, txID, "inv-usd", "alice")
	var validation *reconerror.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "currency", validation.Field)

	_, err = f.svc.ManualMatch(ctx, txID, "inv-settled", "alice")
	var conflict *reconerror.ConflictError
	assert.ErrorAs(t, err, &conflict, "a settled target is surfaced as a conflict")

	_, err = f.svc.ManualMatch(ctx, txID, "missing", "alice")
	var notFound *reconerror.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = f.svc.ManualMatch(ctx, "no-such-tx", "inv-usd", "alice")
	assert.ErrorAs(t, err, &notFound)
}

func TestIgnoreTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, txs := f.importCSV(t, singleCredit)
	txID := txs[0].ID

	require.NoError(t, f.svc.Ignore(ctx, txID, "alice", "bank fee"))

	tx, _ := f.store.Transaction(ctx, txID)
	assert.Equal(t, models.StatusIgnored, tx.MatchStatus)

	entries, _ := f.store.MatchesByTransaction(ctx, txID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionIgnore, entries[0].Action)
	assert.Equal(t, "bank fee", entries[0].Reason)

	assert.Error(t, f.svc.Ignore(ctx, txID, "alice", "again"), "only unmatched transactions can be ignored")
}

func TestPostedStatementIsImmutable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(openInvoice("inv-1", "INV-2024-0042", "ABC d.o.o.", "250.00"))
	result, txs := f.importCSV(t, singleCredit)
	txID := txs[0].ID

	_, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.PostStatement(ctx, result.Statement.ID))

	var locked *reconerror.LockedError
	assert.ErrorAs(t, f.svc.Unmatch(ctx, txID, "alice", "late change"), &locked)
	_, err = f.svc.ManualMatch(ctx, txID, "inv-1", "alice")
	assert.ErrorAs(t, err, &locked)
	assert.ErrorAs(t, f.svc.Ignore(ctx, txID, "alice", "fee"), &locked)
	_, err = f.svc.AutoMatch(ctx, result.Statement.ID)
	assert.ErrorAs(t, err, &locked)
	assert.ErrorAs(t, f.svc.PostStatement(ctx, result.Statement.ID), &locked)

	tx, _ := f.store.Transaction(ctx, txID)
	assert.Equal(t, models.StatusMatched, tx.MatchStatus, "the posted state is frozen")
}

func TestImportReimportIsFlagged(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	first, err := f.svc.Import(ctx, []byte(singleCredit), parser.FormatCSV)
	require.NoError(t, err)
	assert.False(t, first.AlreadyImported)

	second, err := f.svc.Import(ctx, []byte(singleCredit), parser.FormatCSV)
	require.NoError(t, err)
	assert.True(t, second.AlreadyImported)
	assert.Equal(t, first.Statement.ID, second.Statement.ID)

	var codes []string
	for _, w := range second.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, reconerror.WarnReimport)
}

func TestImportAutodetectsFormat(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	result, err := f.svc.Import(ctx, []byte(singleCredit), parser.FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransactionCount)
}

func TestSuggestionsRankedAndFiltered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(
		openInvoice("inv-strong", "INV-2024-0042", "ABC d.o.o.", "250.00"),
		openInvoice("inv-weak", "W-1", "ABC d.o.o.", "5000.00"),
	)
	_, txs := f.importCSV(t, singleCredit)

	scored, err := f.svc.Suggestions(ctx, txs[0].ID, false)
	require.NoError(t, err)
	require.Len(t, scored, 1, "low band candidates stay hidden by default")
	assert.Equal(t, "inv-strong", scored[0].TargetID)
	assert.Equal(t, models.BandHigh, scored[0].Band)

	all, err := f.svc.Suggestions(ctx, txs[0].ID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "inv-strong", all[0].TargetID, "ranking puts the best candidate first")
	assert.Equal(t, "inv-weak", all[1].TargetID)
}

func TestReportCounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(openInvoice("inv-1", "INV-2024-0042", "ABC d.o.o.", "250.00"))
	csv := `date,amount,currency,reference,counterpart
2024-03-10,250.00,EUR,INV-2024-0042,ABC d.o.o.
2024-03-15,-18.50,EUR,,Bank
2024-03-20,42.00,EUR,,Mystery Payer
`
	result, txs := f.importCSV(t, csv)

	_, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Ignore(ctx, txs[1].ID, "alice", "bank fee"))

	report, err := f.svc.Report(ctx, result.Statement.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalTransactions)
	assert.Equal(t, 1, report.MatchedTransactions)
	assert.Equal(t, 1, report.IgnoredTransactions)
	assert.Equal(t, 1, report.UnmatchedTransactions)
	assert.Equal(t, "292", report.TotalCredits)
	assert.Equal(t, "18.5", report.TotalDebits)
	assert.InDelta(t, 33.3, report.MatchRate, 0.1)
}

func TestRebuildStatusRepairsDrift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(openInvoice("inv-1", "INV-2024-0042", "ABC d.o.o.", "250.00"))
	result, txs := f.importCSV(t, singleCredit)
	txID := txs[0].ID

	_, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)

	// Corrupt the cached projection, then rebuild it from the log.
	require.NoError(t, f.store.UpdateTransactionMatch(ctx, txID, models.StatusUnmatched, "", nil))

	status, err := f.svc.RebuildStatus(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusMatched, status)

	tx, _ := f.store.Transaction(ctx, txID)
	assert.Equal(t, models.StatusMatched, tx.MatchStatus)
	assert.Equal(t, "inv-1", tx.MatchedTargetID)
}

func TestAutoMatchManyStatementsManyTargets(t *testing.T) {
	ctx := context.Background()

	var targets []models.Target
	var rows string
	for i := 0; i < 20; i++ {
		ref := fmt.Sprintf("INV-2024-%04d", i)
		targets = append(targets, openInvoice(fmt.Sprintf("inv-%02d", i), ref, fmt.Sprintf("Partner %02d d.o.o.", i), "100.00"))
		rows += fmt.Sprintf("2024-03-%02d,100.00,EUR,%s,Partner %02d d.o.o.\n", 10+i%15, ref, i)
	}
	f := newFixture(targets...)

	result, _ := f.importCSV(t, "date,amount,currency,reference,counterpart\n"+rows)
	summary, err := f.svc.AutoMatch(ctx, result.Statement.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Matched, "distinct targets match in parallel without interference")

	for i := 0; i < 20; i++ {
		target, err := f.ledger.Target(ctx, fmt.Sprintf("inv-%02d", i))
		require.NoError(t, err)
		assert.True(t, target.RemainingAmount.IsZero())
	}
}
