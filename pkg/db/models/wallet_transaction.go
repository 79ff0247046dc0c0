package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/enums"
)

// WalletTransaction is one immutable balance-affecting ledger entry. Rows are
// inserted at the moment a debit or credit is applied and never updated or
// deleted; balance_after_cents snapshots the account balance immediately
// after the entry was applied.
type WalletTransaction struct {
	ID       uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	UserID   uuid.UUID                 `gorm:"column:user_id;type:uuid;not null;index:ix_wallet_tx_user_created,priority:1"`
	Type     enums.TransactionType     `gorm:"column:type;type:transaction_type_enum;not null"`
	Amount   int64                     `gorm:"column:amount_cents;not null"`
	Category enums.TransactionCategory `gorm:"column:category;type:transaction_category_enum;not null"`

	Description string `gorm:"column:description"`

	RelatedNoteID     *uuid.UUID `gorm:"column:related_note_id;type:uuid"`
	RelatedPurchaseID *uuid.UUID `gorm:"column:related_purchase_id;type:uuid"`
	RelatedTutoringID *uuid.UUID `gorm:"column:related_tutoring_id;type:uuid"`

	BalanceAfterCents int64                   `gorm:"column:balance_after_cents;not null"`
	Status            enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null;default:'COMPLETED'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:ix_wallet_tx_user_created,priority:2,sort:desc"`
}

func (t *WalletTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
