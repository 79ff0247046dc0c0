package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
)

// Repository manages wallet balance state on the users table. Balance
// mutations go through conditional UPDATEs so two concurrent spenders can
// never drive a balance negative.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	Debit(ctx context.Context, userID uuid.UUID, amountCents int64, trackSpend bool) (int64, bool, error)
	Credit(ctx context.Context, userID uuid.UUID, amountCents int64, trackEarnings bool) (int64, error)
	GrantSubscription(ctx context.Context, userID uuid.UUID, plan enums.SubscriptionPlan, startsAt, endsAt time.Time) (bool, error)
	SetSubscription(ctx context.Context, userID uuid.UUID, plan enums.SubscriptionPlan, startsAt, endsAt *time.Time, active bool) error
	ListExpiredSubscriptions(ctx context.Context, asOf time.Time, limit int) ([]models.User, error)
	ListWallets(ctx context.Context, afterID uuid.UUID, limit int) ([]models.User, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an accounts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Debit subtracts amountCents only when the current balance covers it. The
// bool result reports whether the debit was applied; the returned balance is
// valid only when it was.
func (r *repository) Debit(ctx context.Context, userID uuid.UUID, amountCents int64, trackSpend bool) (int64, bool, error) {
	updates := map[string]any{
		"wallet_balance_cents": gorm.Expr("wallet_balance_cents - ?", amountCents),
	}
	if trackSpend {
		updates["total_spent_cents"] = gorm.Expr("total_spent_cents + ?", amountCents)
	}

	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND wallet_balance_cents >= ?", userID, amountCents).
		Updates(updates)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}

	balance, err := r.currentBalance(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

// Credit adds amountCents unconditionally and returns the new balance.
func (r *repository) Credit(ctx context.Context, userID uuid.UUID, amountCents int64, trackEarnings bool) (int64, error) {
	updates := map[string]any{
		"wallet_balance_cents": gorm.Expr("wallet_balance_cents + ?", amountCents),
	}
	if trackEarnings {
		updates["total_earnings_cents"] = gorm.Expr("total_earnings_cents + ?", amountCents)
	}

	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return r.currentBalance(ctx, userID)
}

// GrantSubscription opens a new window only while no window covers startsAt.
// The guard lives in the WHERE clause, so two concurrent grants serialize on
// the row lock and the loser sees zero rows affected. The bool result reports
// whether the grant was applied.
func (r *repository) GrantSubscription(ctx context.Context, userID uuid.UUID, plan enums.SubscriptionPlan, startsAt, endsAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND (subscription_is_active = ? OR subscription_ends_at IS NULL OR subscription_ends_at < ?)",
			userID, false, startsAt).
		Updates(map[string]any{
			"subscription_plan":      plan,
			"subscription_starts_at": startsAt,
			"subscription_ends_at":   endsAt,
			"subscription_is_active": true,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SetSubscription(ctx context.Context, userID uuid.UUID, plan enums.SubscriptionPlan, startsAt, endsAt *time.Time, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"subscription_plan":      plan,
			"subscription_starts_at": startsAt,
			"subscription_ends_at":   endsAt,
			"subscription_is_active": active,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListExpiredSubscriptions returns accounts still flagged active whose
// subscription end date has passed.
func (r *repository) ListExpiredSubscriptions(ctx context.Context, asOf time.Time, limit int) ([]models.User, error) {
	var users []models.User
	q := r.db.WithContext(ctx).
		Where("subscription_is_active = ? AND subscription_ends_at IS NOT NULL AND subscription_ends_at < ?", true, asOf).
		Order("subscription_ends_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListWallets pages through all accounts in id order for full-table sweeps.
// Pass uuid.Nil to start from the beginning.
func (r *repository) ListWallets(ctx context.Context, afterID uuid.UUID, limit int) ([]models.User, error) {
	var users []models.User
	q := r.db.WithContext(ctx).Order("id ASC")
	if afterID != uuid.Nil {
		q = q.Where("id > ?", afterID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) currentBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Pluck("wallet_balance_cents", &balance).Error
	return balance, err
}
