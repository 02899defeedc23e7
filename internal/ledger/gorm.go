package ledger

import (
	"context"
	"errors"
	"time"

	"finrecon/bankrecon/internal/models"
	"finrecon/bankrecon/internal/reconerror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TargetRow is the relational projection of an open receivable/payable
// maintained by the invoicing side. The reconciliation core only ever
// reads it and moves remaining_amount through CAS updates.
type TargetRow struct {
	ID              string            `gorm:"primaryKey"`
	Type            models.TargetType `gorm:"index"`
	Reference       string            `gorm:"index"`
	PartnerID       string            `gorm:"index"`
	PartnerName     string
	RemainingAmount decimal.Decimal `gorm:"type:numeric"`
	Currency        string
	IssueDate       time.Time
	DueDate         time.Time
	Version         int64
}

// PaymentRow is one allocation row.
type PaymentRow struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TargetID            string          `gorm:"index"`
	Amount              decimal.Decimal `gorm:"type:numeric"`
	Currency            string
	SourceTransactionID string `gorm:"index"`
	Cancelled           bool
	CreatedAt           time.Time
}

// GormLedger is the Postgres-backed payment ledger and target source.
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger wraps an existing gorm connection and migrates the ledger
// tables.
func NewGormLedger(db *gorm.DB) (*GormLedger, error) {
	if err := db.AutoMigrate(&TargetRow{}, &PaymentRow{}); err != nil {
		return nil, err
	}
	return &GormLedger{db: db}, nil
}

// ListOpenTargets implements store.TargetSource.
func (l *GormLedger) ListOpenTargets(ctx context.Context, _ string, asOf time.Time) ([]models.Target, error) {
	var rows []TargetRow
	err := l.db.WithContext(ctx).
		Where("remaining_amount > 0 AND issue_date <= ?", asOf).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.Target, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Target implements store.TargetSource.
func (l *GormLedger) Target(ctx context.Context, id string) (*models.Target, error) {
	var row TargetRow
	err := l.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &reconerror.NotFoundError{Kind: "target", ID: id}
	}
	if err != nil {
		return nil, err
	}
	t := row.toModel()
	return &t, nil
}

// CreatePayment implements PaymentLedger. The conditional UPDATE carries
// both the version token and the remaining-amount floor, so a lost race
// and a stale over-allocation fail the same way.
func (l *GormLedger) CreatePayment(ctx context.Context, targetID string, amount decimal.Decimal, currency, sourceTxID string, expectedVersion int64) (string, error) {
	payment := PaymentRow{
		ID:                  uuid.New(),
		TargetID:            targetID,
		Amount:              amount,
		Currency:            currency,
		SourceTransactionID: sourceTxID,
		CreatedAt:           time.Now(),
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&TargetRow{}).
			Where("id = ? AND version = ? AND remaining_amount >= ?", targetID, expectedVersion, amount).
			Updates(map[string]interface{}{
				"remaining_amount": gorm.Expr("remaining_amount - ?", amount),
				"version":          gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var row TargetRow
			if err := tx.First(&row, "id = ?", targetID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &reconerror.NotFoundError{Kind: "target", ID: targetID}
				}
				return err
			}
			return &reconerror.ConflictError{
				TargetID:        targetID,
				ExpectedVersion: expectedVersion,
				ActualVersion:   row.Version,
			}
		}
		return tx.Create(&payment).Error
	})
	if err != nil {
		return "", err
	}
	return payment.ID.String(), nil
}

// CancelPayment implements PaymentLedger.
func (l *GormLedger) CancelPayment(ctx context.Context, paymentID string) error {
	id, err := uuid.Parse(paymentID)
	if err != nil {
		return &reconerror.NotFoundError{Kind: "payment", ID: paymentID}
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment PaymentRow
		if err := tx.First(&payment, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &reconerror.NotFoundError{Kind: "payment", ID: paymentID}
			}
			return err
		}
		if payment.Cancelled {
			return nil
		}

		res := tx.Model(&TargetRow{}).
			Where("id = ?", payment.TargetID).
			Updates(map[string]interface{}{
				"remaining_amount": gorm.Expr("remaining_amount + ?", payment.Amount),
				"version":          gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &reconerror.NotFoundError{Kind: "target", ID: payment.TargetID}
		}

		return tx.Model(&PaymentRow{}).
			Where("id = ?", id).
			Update("cancelled", true).Error
	})
}

func (r TargetRow) toModel() models.Target {
	return models.Target{
		ID:              r.ID,
		Type:            r.Type,
		Reference:       r.Reference,
		PartnerID:       r.PartnerID,
		PartnerName:     r.PartnerName,
		RemainingAmount: r.RemainingAmount,
		Currency:        r.Currency,
		IssueDate:       r.IssueDate,
		DueDate:         r.DueDate,
		Version:         r.Version,
	}
}
