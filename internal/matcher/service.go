// Package matcher is the reconciler: it drives the per-transaction state
// machine (UNMATCHED to MATCHED, PARTIAL or IGNORED and back), commits
// allocations against the payment ledger under optimistic concurrency, and
// appends every transition to the match log.
package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finrecon/bankrecon/internal/audit"
	"finrecon/bankrecon/internal/candidates"
	"finrecon/bankrecon/internal/config"
	"finrecon/bankrecon/internal/factory"
	"finrecon/bankrecon/internal/ledger"
	"finrecon/bankrecon/internal/models"
	"finrecon/bankrecon/internal/normalizer"
	"finrecon/bankrecon/internal/parser"
	"finrecon/bankrecon/internal/reconerror"
	"finrecon/bankrecon/internal/scorer"
	"finrecon/bankrecon/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

var log = logrus.New()

// SetLogger allows setting a configured logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Service wires the store, the read-only target source and the payment
// ledger into the reconciliation operations.
type Service struct {
	store     store.Store
	targets   store.TargetSource
	ledger    ledger.PaymentLedger
	cfg       config.MatchingConfig
	aliases   map[string][]string
	companyID string
}

// New creates a reconciliation service.
func New(st store.Store, targets store.TargetSource, pl ledger.PaymentLedger, cfg config.MatchingConfig) *Service {
	return &Service{
		store:   st,
		targets: targets,
		ledger:  pl,
		cfg:     cfg,
	}
}

// SetAliases installs the partner alias map used by candidate generation.
func (s *Service) SetAliases(aliases map[string][]string) {
	s.aliases = aliases
}

// SetCompany scopes target queries to one company.
func (s *Service) SetCompany(companyID string) {
	s.companyID = companyID
}

// ImportResult is what an import returns to its caller.
type ImportResult struct {
	Statement        models.BankStatement  `json:"statement"`
	TransactionCount int                   `json:"transaction_count"`
	Warnings         []reconerror.Warning  `json:"warnings,omitempty"`
	AlreadyImported  bool                  `json:"already_imported"`
}

// Import parses, normalizes and persists one statement file. Re-importing
// a file whose fingerprint is already known is reported, not duplicated.
func (s *Service) Import(ctx context.Context, data []byte, format parser.Format) (*ImportResult, error) {
	parsed, err := factory.Parse(data, format)
	if err != nil {
		return nil, err
	}

	norm, warnings, err := normalizer.Normalize(parsed, s.cfg.Epsilon())
	if err != nil {
		return nil, err
	}

	if existing, err := s.store.StatementByFingerprint(ctx, norm.Statement.Fingerprint); err == nil {
		warnings = append(warnings, reconerror.Warning{
			Code:    reconerror.WarnReimport,
			Message: fmt.Sprintf("statement already imported as %s", existing.ID),
		})
		return &ImportResult{
			Statement:        *existing,
			TransactionCount: len(norm.Transactions),
			Warnings:         warnings,
			AlreadyImported:  true,
		}, nil
	}

	if err := s.store.SaveStatement(ctx, &norm.Statement, norm.Transactions); err != nil {
		return nil, fmt.Errorf("persisting statement: %w", err)
	}

	log.WithFields(logrus.Fields{
		"statement":    norm.Statement.ID,
		"transactions": len(norm.Transactions),
		"warnings":     len(warnings),
	}).Info("Imported bank statement")

	return &ImportResult{
		Statement:        norm.Statement,
		TransactionCount: len(norm.Transactions),
		Warnings:         warnings,
	}, nil
}

// Suggestions returns the ranked candidate list for one transaction. Low
// band candidates only appear when includeLow is set (explicit search).
func (s *Service) Suggestions(ctx context.Context, txID string, includeLow bool) ([]models.ScoredCandidate, error) {
	tx, err := s.store.Transaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.MatchStatus == models.StatusIgnored {
		return nil, nil
	}

	targets, err := s.targets.ListOpenTargets(ctx, s.companyID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("loading open targets: %w", err)
	}

	gen := candidates.NewGenerator(targets, s.aliases)
	scored := scorer.ScoreAll(gen.Generate(tx, s.cfg), s.cfg)
	if includeLow {
		return scored, nil
	}

	var out []models.ScoredCandidate
	for _, sc := range scored {
		if sc.Band != models.BandLow {
			out = append(out, sc)
		}
	}
	return out, nil
}

// Report is the per-statement reconciliation summary consumed by the UI.
type Report struct {
	StatementID           uuid.UUID       `json:"statement_id"`
	Status                models.StatementStatus `json:"status"`
	TotalTransactions     int             `json:"total_transactions"`
	MatchedTransactions   int             `json:"matched_transactions"`
	PartialTransactions   int             `json:"partial_transactions"`
	UnmatchedTransactions int             `json:"unmatched_transactions"`
	IgnoredTransactions   int             `json:"ignored_transactions"`
	TotalCredits          string          `json:"total_credits"`
	TotalDebits           string          `json:"total_debits"`
	MatchRate             float64         `json:"match_rate"`
}

// Report computes the reconciliation summary for a statement.
func (s *Service) Report(ctx context.Context, statementID uuid.UUID) (*Report, error) {
	st, err := s.store.Statement(ctx, statementID)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.TransactionsByStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}

	r := &Report{
		StatementID:       st.ID,
		Status:            st.Status,
		TotalTransactions: len(txs),
		TotalCredits:      st.TotalCredit.String(),
		TotalDebits:       st.TotalDebit.String(),
	}
	for _, tx := range txs {
		switch tx.MatchStatus {
		case models.StatusMatched:
			r.MatchedTransactions++
		case models.StatusPartial:
			r.PartialTransactions++
		case models.StatusIgnored:
			r.IgnoredTransactions++
		default:
			r.UnmatchedTransactions++
		}
	}
	if resolved := r.MatchedTransactions + r.PartialTransactions; len(txs) > 0 {
		r.MatchRate = float64(resolved) / float64(len(txs)) * 100
	}
	return r, nil
}

// RebuildStatus recomputes a transaction's cached status from the match
// log, repairing any drift between the projection and the source of truth.
func (s *Service) RebuildStatus(ctx context.Context, txID string) (models.MatchStatus, error) {
	entries, err := s.store.MatchesByTransaction(ctx, txID)
	if err != nil {
		return "", err
	}

	status := audit.Fold(entries)
	targetID := ""
	var confidence *float64
	if current := audit.Current(entries); current != nil {
		targetID = current.TargetID
		confidence = current.Confidence
	}
	if err := s.store.UpdateTransactionMatch(ctx, txID, status, targetID, confidence); err != nil {
		return "", err
	}
	return status, nil
}

// statementOf loads the owning statement and enforces the POSTED lock.
func (s *Service) statementOf(ctx context.Context, tx *models.BankTransaction) (*models.BankStatement, error) {
	st, err := s.store.Statement(ctx, tx.StatementID)
	if err != nil {
		return nil, err
	}
	if st.IsPosted() {
		return nil, &reconerror.LockedError{StatementID: st.ID.String()}
	}
	return st, nil
}

func tagsJSON(tags []models.RuleTag) datatypes.JSON {
	if len(tags) == 0 {
		return nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
