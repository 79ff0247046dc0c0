package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
)

// Repository manages persistence for wallet transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.WalletTransaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.WalletTransaction, error)
	SumByType(ctx context.Context, userID uuid.UUID, txType enums.TransactionType) (int64, error)
	ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.WalletTransaction, error)
}

// ListFilter narrows a user's transaction listing. Zero values mean no
// constraint; Before/BeforeID implement the keyset cursor.
type ListFilter struct {
	Type     enums.TransactionType
	Category enums.TransactionCategory
	Limit    int
	Before   time.Time
	BeforeID uuid.UUID
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if !filter.Before.IsZero() {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Before, filter.Before, filter.BeforeID,
		)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []models.WalletTransaction
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumByType(ctx context.Context, userID uuid.UUID, txType enums.TransactionType) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("user_id = ? AND type = ? AND status = ?", userID, txType, enums.TransactionStatusCompleted).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.WalletTransaction, error) {
	var entries []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("related_purchase_id = ?", purchaseID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
