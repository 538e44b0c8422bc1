package ledger

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dev1d123/CyberDOJO/internal/models"
)

// CreditTransaction records every balance movement for audit and history.
type CreditTransaction struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint64    `gorm:"index;not null" json:"-"`
	Amount          int64     `gorm:"not null" json:"amount"`
	TransactionType string    `gorm:"type:varchar(32);not null" json:"transaction_type"`
	Description     string    `gorm:"type:varchar(255)" json:"description"`
	ReferenceID     string    `gorm:"type:varchar(64);index" json:"reference_id"`
	ReferenceType   string    `gorm:"type:varchar(32)" json:"reference_type"`
	CreatedAt       time.Time `json:"created_at"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// CreditTx moves amount onto the user's balance and records the transaction.
// It runs on the caller's transaction handle so reward issuance commits or
// rolls back together with the session transition that triggered it.
func (l *Ledger) CreditTx(tx *gorm.DB, userID uint64, amount int64, txType, description, refID, refType string) error {
	if amount < 0 {
		return fmt.Errorf("ledger: negative credit %d", amount)
	}

	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("cyber_creds", gorm.Expr("cyber_creds + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ledger: user %d not found", userID)
	}

	return tx.Create(&CreditTransaction{
		UserID:          userID,
		Amount:          amount,
		TransactionType: txType,
		Description:     description,
		ReferenceID:     refID,
		ReferenceType:   refType,
	}).Error
}

// ListByUser returns the user's transactions, newest first.
func (l *Ledger) ListByUser(ctx context.Context, userID uint64, limit int) ([]CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var txs []CreditTransaction
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}
