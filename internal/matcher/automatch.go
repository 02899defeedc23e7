package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"finrecon/bankrecon/internal/audit"
	"finrecon/bankrecon/internal/candidates"
	"finrecon/bankrecon/internal/models"
	"finrecon/bankrecon/internal/reconerror"
	"finrecon/bankrecon/internal/scorer"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Summary is the outcome of an auto-match run over one statement.
type Summary struct {
	Matched   int `json:"matched"`
	Partial   int `json:"partial"`
	Ambiguous int `json:"ambiguous"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// decision pairs a transaction with the candidate auto-match settled on.
type decision struct {
	tx     models.BankTransaction
	chosen models.ScoredCandidate
}

// AutoMatch runs the automatic pass over every unmatched transaction of a
// statement. The decide phase is a pure function of the loaded targets;
// commits are grouped per target and applied in transaction date order, so
// two transactions competing for the same remaining amount are serialized
// while distinct targets proceed in parallel.
func (s *Service) AutoMatch(ctx context.Context, statementID uuid.UUID) (*Summary, error) {
	st, err := s.store.Statement(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if st.IsPosted() {
		return nil, &reconerror.LockedError{StatementID: st.ID.String()}
	}
	if err := s.store.UpdateStatementStatus(ctx, statementID, models.StatementProcessing); err != nil {
		return nil, err
	}

	txs, err := s.store.TransactionsByStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}

	targets, err := s.targets.ListOpenTargets(ctx, s.companyID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("loading open targets: %w", err)
	}
	gen := candidates.NewGenerator(targets, s.aliases)

	summary := &Summary{}
	byTarget := make(map[string][]decision)
	for i := range txs {
		tx := txs[i]
		if tx.MatchStatus != models.StatusUnmatched {
			continue
		}
		scored := scorer.ScoreAll(gen.Generate(&tx, s.cfg), s.cfg)
		if len(scored) == 0 || scored[0].Band != models.BandHigh {
			summary.Skipped++
			continue
		}
		if scorer.Ambiguous(scored, s.cfg.AmbiguityMargin) {
			summary.Ambiguous++
			log.WithFields(logrus.Fields{
				"transaction": tx.ID,
				"top_target":  scored[0].TargetID,
				"confidence":  scored[0].Confidence,
			}).Info("Auto-match ambiguous, left for review")
			continue
		}
		top := scored[0]
		byTarget[top.TargetID] = append(byTarget[top.TargetID], decision{tx: tx, chosen: top})
	}

	targetIDs := make([]string, 0, len(byTarget))
	for id := range byTarget {
		sort.Slice(byTarget[id], func(a, b int) bool {
			da, db := byTarget[id][a].tx, byTarget[id][b].tx
			if !da.TransactionDate.Equal(db.TransactionDate) {
				return da.TransactionDate.Before(db.TransactionDate)
			}
			return da.ID < db.ID
		})
		targetIDs = append(targetIDs, id)
	}
	sort.Strings(targetIDs)

	var mu sync.Mutex
	var wg sync.WaitGroup
	work := make(chan string)

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for targetID := range work {
				for _, d := range byTarget[targetID] {
					status, err := s.commitWithRetry(ctx, d)
					mu.Lock()
					switch {
					case err != nil:
						summary.Errors++
						log.WithError(err).WithField("transaction", d.tx.ID).Warn("Auto-match commit failed")
					case status == models.StatusPartial:
						summary.Partial++
					case status == models.StatusMatched:
						summary.Matched++
					default:
						// The allocation was contested and could not be
						// committed on refreshed data; the transaction stays
						// unmatched and is reported ambiguous for review.
						summary.Ambiguous++
					}
					mu.Unlock()
				}
			}
		}()
	}
	for _, id := range targetIDs {
		work <- id
	}
	close(work)
	wg.Wait()

	status := models.StatementMatched
	if summary.Skipped > 0 || summary.Ambiguous > 0 || summary.Errors > 0 {
		status = models.StatementProcessing
	}
	if err := s.store.UpdateStatementStatus(ctx, statementID, status); err != nil {
		return summary, err
	}

	log.WithFields(logrus.Fields{
		"statement": statementID,
		"matched":   summary.Matched,
		"partial":   summary.Partial,
		"ambiguous": summary.Ambiguous,
		"skipped":   summary.Skipped,
		"errors":    summary.Errors,
	}).Info("Auto-match pass complete")
	return summary, nil
}

// commitWithRetry commits a decided match, re-evaluating the target on
// version conflicts. After RetryLimit conflicts, or when the refreshed
// target no longer qualifies, the transaction is left unmatched rather
// than committed on stale data.
func (s *Service) commitWithRetry(ctx context.Context, d decision) (models.MatchStatus, error) {
	chosen := d.chosen
	for attempt := 0; ; attempt++ {
		status, err := s.commit(ctx, &d.tx, chosen, models.SystemActor)
		var conflict *reconerror.ConflictError
		if !errors.As(err, &conflict) {
			return status, err
		}
		if attempt >= s.cfg.RetryLimit {
			log.WithFields(logrus.Fields{
				"transaction": d.tx.ID,
				"target":      chosen.TargetID,
				"attempts":    attempt + 1,
			}).Info("Retry budget exhausted, leaving transaction for review")
			return models.StatusUnmatched, nil
		}

		fresh, err := s.targets.Target(ctx, chosen.TargetID)
		if err != nil {
			var nf *reconerror.NotFoundError
			if errors.As(err, &nf) {
				return models.StatusUnmatched, nil
			}
			return "", err
		}
		if fresh.RemainingAmount.Sign() <= 0 {
			return models.StatusUnmatched, nil
		}

		cand := candidates.Qualify(&d.tx, *fresh, s.aliases, s.cfg)
		rescored := scorer.Score(cand, s.cfg)
		if rescored.Band != models.BandHigh {
			return models.StatusUnmatched, nil
		}
		chosen = rescored
	}
}

// commit allocates against the ledger and appends the match log entry. The
// ledger write happens first; if the log append then fails the allocation
// is compensated so the two systems cannot drift apart.
func (s *Service) commit(ctx context.Context, tx *models.BankTransaction, chosen models.ScoredCandidate, actor string) (models.MatchStatus, error) {
	amount := tx.AbsAmount()
	remaining := chosen.Remaining
	alloc := amount
	if remaining.LessThan(amount) {
		alloc = remaining
	}
	if alloc.Sign() <= 0 {
		return models.StatusUnmatched, &reconerror.ConflictError{
			TargetID:        chosen.TargetID,
			ExpectedVersion: chosen.Version,
		}
	}

	paymentID, err := s.ledger.CreatePayment(ctx, chosen.TargetID, alloc, tx.Currency, tx.ID, chosen.Version)
	if err != nil {
		return "", err
	}

	status := models.StatusMatched
	action := models.ActionMatch
	tags := chosen.Tags
	switch {
	case amount.GreaterThan(remaining):
		// Surplus stays unallocated on a suspense footing until a human
		// resolves it.
		status = models.StatusPartial
		action = models.ActionPartial
		tags = append(append([]models.RuleTag{}, tags...), models.TagSurplusUnallocated)
	case alloc.LessThan(remaining):
		// Underpayment: the target stays open for further transactions.
		status = models.StatusPartial
		action = models.ActionPartial
	}

	// Manual matches carry no score.
	var conf *float64
	if actor == models.SystemActor {
		c := chosen.Confidence
		conf = &c
	}
	entry := &models.Match{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		TargetType:    chosen.TargetType,
		TargetID:      chosen.TargetID,
		Confidence:    conf,
		MatchedBy:     actor,
		Action:        action,
		PaymentID:     paymentID,
		RuleTags:      tagsJSON(tags),
		FromStatus:    tx.MatchStatus,
		ToStatus:      status,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.AppendMatch(ctx, entry); err != nil {
		if cancelErr := s.ledger.CancelPayment(ctx, paymentID); cancelErr != nil {
			log.WithError(cancelErr).WithField("payment", paymentID).Error("Compensation failed, payment orphaned")
		}
		return "", fmt.Errorf("appending match entry: %w", err)
	}

	if err := s.store.UpdateTransactionMatch(ctx, tx.ID, status, chosen.TargetID, conf); err != nil {
		// The log entry is already durable; the projection can be rebuilt.
		log.WithError(err).WithField("transaction", tx.ID).Warn("Match status cache update failed")
	}
	return status, nil
}

// ManualMatch pairs a transaction with an operator-chosen target. It skips
// scoring thresholds entirely but still goes through the same ledger commit
// path as auto-match.
func (s *Service) ManualMatch(ctx context.Context, txID, targetID, actor string) (models.MatchStatus, error) {
	tx, err := s.store.Transaction(ctx, txID)
	if err != nil {
		return "", err
	}
	if _, err := s.statementOf(ctx, tx); err != nil {
		return "", err
	}
	if tx.MatchStatus == models.StatusMatched || tx.MatchStatus == models.StatusIgnored {
		return "", fmt.Errorf("transaction %s is %s, unmatch it first", txID, tx.MatchStatus)
	}

	target, err := s.targets.Target(ctx, targetID)
	if err != nil {
		return "", err
	}
	if target.RemainingAmount.Sign() <= 0 {
		// The target was settled between selection and commit; same
		// footing as a lost version race.
		return "", &reconerror.ConflictError{
			TargetID:        targetID,
			ExpectedVersion: target.Version,
			ActualVersion:   target.Version,
		}
	}
	if target.Currency != tx.Currency {
		return "", &reconerror.ValidationError{
			Field: "currency",
			Message: fmt.Sprintf("transaction %s is %s, target %s is %s",
				txID, tx.Currency, targetID, target.Currency),
		}
	}

	chosen := models.ScoredCandidate{
		MatchCandidate: models.MatchCandidate{
			TransactionID: tx.ID,
			TargetType:    target.Type,
			TargetID:      target.ID,
			Tags:          []models.RuleTag{models.TagManual},
			Remaining:     target.RemainingAmount,
			AmountDiff:    tx.AbsAmount().Sub(target.RemainingAmount).Abs(),
			DueDate:       target.DueDate,
			Version:       target.Version,
		},
	}
	status, err := s.commit(ctx, tx, chosen, actor)
	if err != nil {
		return "", err
	}
	log.WithFields(logrus.Fields{
		"transaction": txID,
		"target":      targetID,
		"actor":       actor,
		"status":      status,
	}).Info("Manual match committed")
	return status, nil
}

// Ignore marks a transaction as requiring no target (bank fees, internal
// transfers). The reason is recorded in the match log.
func (s *Service) Ignore(ctx context.Context, txID, actor, reason string) error {
	tx, err := s.store.Transaction(ctx, txID)
	if err != nil {
		return err
	}
	if _, err := s.statementOf(ctx, tx); err != nil {
		return err
	}
	if tx.MatchStatus != models.StatusUnmatched {
		return fmt.Errorf("transaction %s is %s, only unmatched transactions can be ignored", txID, tx.MatchStatus)
	}

	entry := &models.Match{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		MatchedBy:     actor,
		Action:        models.ActionIgnore,
		Reason:        reason,
		FromStatus:    tx.MatchStatus,
		ToStatus:      models.StatusIgnored,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.AppendMatch(ctx, entry); err != nil {
		return err
	}
	return s.store.UpdateTransactionMatch(ctx, txID, models.StatusIgnored, "", nil)
}

// Unmatch reverts a matched, partial or ignored transaction back to
// unmatched, cancelling the ledger payment the match created.
func (s *Service) Unmatch(ctx context.Context, txID, actor, reason string) error {
	tx, err := s.store.Transaction(ctx, txID)
	if err != nil {
		return err
	}
	if _, err := s.statementOf(ctx, tx); err != nil {
		return err
	}
	if tx.MatchStatus == models.StatusUnmatched {
		return fmt.Errorf("transaction %s is already unmatched", txID)
	}

	entries, err := s.store.MatchesByTransaction(ctx, txID)
	if err != nil {
		return err
	}
	current := audit.Current(entries)
	if current != nil && current.PaymentID != "" {
		if err := s.ledger.CancelPayment(ctx, current.PaymentID); err != nil {
			return fmt.Errorf("cancelling payment %s: %w", current.PaymentID, err)
		}
	}

	entry := &models.Match{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		MatchedBy:     actor,
		Action:        models.ActionUnmatch,
		Reason:        reason,
		FromStatus:    tx.MatchStatus,
		ToStatus:      models.StatusUnmatched,
		CreatedAt:     time.Now().UTC(),
	}
	if current != nil {
		entry.TargetType = current.TargetType
		entry.TargetID = current.TargetID
		entry.PaymentID = current.PaymentID
	}
	if err := s.store.AppendMatch(ctx, entry); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"transaction": txID,
		"actor":       actor,
	}).Info("Match reverted")
	return s.store.UpdateTransactionMatch(ctx, txID, models.StatusUnmatched, "", nil)
}

// PostStatement locks a statement. Posted statements reject every further
// match mutation; unposting is not supported.
func (s *Service) PostStatement(ctx context.Context, statementID uuid.UUID) error {
	st, err := s.store.Statement(ctx, statementID)
	if err != nil {
		return err
	}
	if st.IsPosted() {
		return &reconerror.LockedError{StatementID: st.ID.String()}
	}
	return s.store.UpdateStatementStatus(ctx, statementID, models.StatementPosted)
}
