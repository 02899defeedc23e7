package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"finrecon/bankrecon/internal/models"
	"finrecon/bankrecon/internal/reconerror"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and for single-process
// runs without a database.
type MemoryStore struct {
	mu           sync.RWMutex
	statements   map[uuid.UUID]models.BankStatement
	fingerprints map[string]uuid.UUID
	transactions map[string]models.BankTransaction
	matches      []models.Match
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statements:   make(map[uuid.UUID]models.BankStatement),
		fingerprints: make(map[string]uuid.UUID),
		transactions: make(map[string]models.BankTransaction),
	}
}

// SaveStatement implements Store.
func (s *MemoryStore) SaveStatement(_ context.Context, st *models.BankStatement, txs []models.BankTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statements[st.ID] = *st
	s.fingerprints[st.Fingerprint] = st.ID
	for _, tx := range txs {
		s.transactions[tx.ID] = tx
	}
	return nil
}

// Statement implements Store.
func (s *MemoryStore) Statement(_ context.Context, id uuid.UUID) (*models.BankStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statements[id]
	if !ok {
		return nil, &reconerror.NotFoundError{Kind: "statement", ID: id.String()}
	}
	return &st, nil
}

// StatementByFingerprint implements Store.
func (s *MemoryStore) StatementByFingerprint(_ context.Context, fingerprint string) (*models.BankStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.fingerprints[fingerprint]
	if !ok {
		return nil, &reconerror.NotFoundError{Kind: "statement", ID: fingerprint}
	}
	st := s.statements[id]
	return &st, nil
}

// UpdateStatementStatus implements Store.
func (s *MemoryStore) UpdateStatementStatus(_ context.Context, id uuid.UUID, status models.StatementStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statements[id]
	if !ok {
		return &reconerror.NotFoundError{Kind: "statement", ID: id.String()}
	}
	st.Status = status
	s.statements[id] = st
	return nil
}

// Transaction implements Store.
func (s *MemoryStore) Transaction(_ context.Context, id string) (*models.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, &reconerror.NotFoundError{Kind: "transaction", ID: id}
	}
	return &tx, nil
}

// TransactionsByStatement implements Store. Results are ordered by
// position for reproducible batch runs.
func (s *MemoryStore) TransactionsByStatement(_ context.Context, statementID uuid.UUID) ([]models.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.BankTransaction
	for _, tx := range s.transactions {
		if tx.StatementID == statementID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// UpdateTransactionMatch implements Store.
func (s *MemoryStore) UpdateTransactionMatch(_ context.Context, id string, status models.MatchStatus, targetID string, confidence *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return &reconerror.NotFoundError{Kind: "transaction", ID: id}
	}
	tx.MatchStatus = status
	tx.MatchedTargetID = targetID
	tx.MatchConfidence = confidence
	s.transactions[id] = tx
	return nil
}

// AppendMatch implements Store.
func (s *MemoryStore) AppendMatch(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.matches = append(s.matches, *m)
	return nil
}

// MatchesByTransaction implements Store. Entries come back in append
// order.
func (s *MemoryStore) MatchesByTransaction(_ context.Context, txID string) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Match
	for _, m := range s.matches {
		if m.TransactionID == txID {
			out = append(out, m)
		}
	}
	return out, nil
}
