package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/enums"
)

// User is the canonical identity entity. The wallet lives inline: balance and
// lifetime totals are integer minor units mutated only through the accounts
// service, never by direct assignment.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email        string         `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	Name         string         `gorm:"column:name;not null"`
	Role         enums.UserRole `gorm:"column:role;type:user_role_enum;not null;default:'USER'"`
	Bio          *string        `gorm:"column:bio"`
	Education    *string        `gorm:"column:education"`
	Interests    pq.StringArray `gorm:"column:interests;type:text[]"`
	Subjects     pq.StringArray `gorm:"column:subjects;type:text[]"`
	IsVerified   bool           `gorm:"column:is_verified;not null;default:false"`

	WalletBalanceCents int64 `gorm:"column:wallet_balance_cents;not null;default:0"`
	TotalEarningsCents int64 `gorm:"column:total_earnings_cents;not null;default:0"`
	TotalSpentCents    int64 `gorm:"column:total_spent_cents;not null;default:0"`

	SubscriptionPlan     enums.SubscriptionPlan `gorm:"column:subscription_plan;type:subscription_plan_enum;not null;default:'FREE'"`
	SubscriptionStartsAt *time.Time             `gorm:"column:subscription_starts_at"`
	SubscriptionEndsAt   *time.Time             `gorm:"column:subscription_ends_at"`
	SubscriptionIsActive bool                   `gorm:"column:subscription_is_active;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasActiveSubscription reports whether the user's PLUS window covers now.
// The stored subscription_is_active flag is display state only; entitlement
// decisions always compare against the end date.
func (u *User) HasActiveSubscription(now time.Time) bool {
	if u == nil || u.SubscriptionPlan != enums.SubscriptionPlanPlus {
		return false
	}
	if u.SubscriptionEndsAt == nil {
		return false
	}
	return now.Before(*u.SubscriptionEndsAt)
}
