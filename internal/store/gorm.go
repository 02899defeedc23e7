package store

import (
	"context"
	"errors"
	"time"

	"finrecon/bankrecon/internal/models"
	"finrecon/bankrecon/internal/reconerror"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the reconciliation tables.
func Open(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.BankStatement{},
		&models.BankTransaction{},
		&models.Match{},
	); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

// NewGormStore wraps an existing gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying connection for collaborators sharing it.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// SaveStatement implements Store. Statement and transactions go in a
// single database transaction so a failed import leaves nothing behind.
func (s *GormStore) SaveStatement(ctx context.Context, st *models.BankStatement, txs []models.BankTransaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(st).Error; err != nil {
			return err
		}
		if len(txs) == 0 {
			return nil
		}
		return tx.Create(&txs).Error
	})
}

// Statement implements Store.
func (s *GormStore) Statement(ctx context.Context, id uuid.UUID) (*models.BankStatement, error) {
	var st models.BankStatement
	err := s.db.WithContext(ctx).First(&st, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &reconerror.NotFoundError{Kind: "statement", ID: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// StatementByFingerprint implements Store.
func (s *GormStore) StatementByFingerprint(ctx context.Context, fingerprint string) (*models.BankStatement, error) {
	var st models.BankStatement
	err := s.db.WithContext(ctx).First(&st, "fingerprint = ?", fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &reconerror.NotFoundError{Kind: "statement", ID: fingerprint}
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// UpdateStatementStatus implements Store.
func (s *GormStore) UpdateStatementStatus(ctx context.Context, id uuid.UUID, status models.StatementStatus) error {
	res := s.db.WithContext(ctx).Model(&models.BankStatement{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &reconerror.NotFoundError{Kind: "statement", ID: id.String()}
	}
	return nil
}

// Transaction implements Store.
func (s *GormStore) Transaction(ctx context.Context, id string) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	err := s.db.WithContext(ctx).First(&tx, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &reconerror.NotFoundError{Kind: "transaction", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// TransactionsByStatement implements Store.
func (s *GormStore) TransactionsByStatement(ctx context.Context, statementID uuid.UUID) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := s.db.WithContext(ctx).
		Where("statement_id = ?", statementID).
		Order("position ASC").
		Find(&txs).Error
	return txs, err
}

// UpdateTransactionMatch implements Store.
func (s *GormStore) UpdateTransactionMatch(ctx context.Context, id string, status models.MatchStatus, targetID string, confidence *float64) error {
	res := s.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"match_status":      status,
			"matched_target_id": targetID,
			"match_confidence":  confidence,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &reconerror.NotFoundError{Kind: "transaction", ID: id}
	}
	return nil
}

// AppendMatch implements Store.
func (s *GormStore) AppendMatch(ctx context.Context, m *models.Match) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(m).Error
}

// MatchesByTransaction implements Store.
func (s *GormStore) MatchesByTransaction(ctx context.Context, txID string) ([]models.Match, error) {
	var out []models.Match
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", txID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
