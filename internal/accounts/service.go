package accounts

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
)

// Service defines wallet balance operations shared by every settlement flow.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)
	Debit(ctx context.Context, input DebitInput) (int64, error)
	Credit(ctx context.Context, input CreditInput) (int64, error)
	GrantSubscription(ctx context.Context, userID uuid.UUID, plan enums.SubscriptionPlan, startsAt, endsAt time.Time) error
	ExpireSubscription(ctx context.Context, userID uuid.UUID) error
}

// DebitInput moves money out of a wallet. TrackSpend folds the amount into
// the user's lifetime spend counter; settlement legs that merely route the
// platform's share leave it off.
type DebitInput struct {
	UserID      uuid.UUID
	AmountCents int64
	TrackSpend  bool
}

// CreditInput moves money into a wallet.
type CreditInput struct {
	UserID        uuid.UUID
	AmountCents   int64
	TrackEarnings bool
}

type service struct {
	repo Repository
}

// NewService wires an accounts service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "user not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading user")
	}
	return user, nil
}

// Debit applies a guarded balance decrement and returns the balance after the
// debit. A rejected guard on an existing user maps to the insufficient funds
// code; the balance is never read before the UPDATE, so concurrent debits
// cannot both pass on the same funds.
func (s *service) Debit(ctx context.Context, input DebitInput) (int64, error) {
	if input.UserID == uuid.Nil {
		return 0, errors.New(errors.CodeValidation, "user id is required")
	}
	if input.AmountCents <= 0 {
		return 0, errors.New(errors.CodeValidation, "debit amount must be positive")
	}

	balance, applied, err := s.repo.Debit(ctx, input.UserID, input.AmountCents, input.TrackSpend)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "debiting wallet")
	}
	if !applied {
		user, lookupErr := s.repo.GetByID(ctx, input.UserID)
		if lookupErr != nil {
			if stderrors.Is(lookupErr, gorm.ErrRecordNotFound) {
				return 0, errors.New(errors.CodeNotFound, "user not found")
			}
			return 0, errors.Wrap(errors.CodeInternal, lookupErr, "loading user after rejected debit")
		}
		return 0, errors.New(errors.CodeInsufficientFunds, "insufficient wallet balance").
			WithDetails(map[string]any{
				"required_cents":  input.AmountCents,
				"available_cents": user.WalletBalanceCents,
			})
	}
	return balance, nil
}

func (s *service) Credit(ctx context.Context, input CreditInput) (int64, error) {
	if input.UserID == uuid.Nil {
		return 0, errors.New(errors.CodeValidation, "user id is required")
	}
	if input.AmountCents <= 0 {
		return 0, errors.New(errors.CodeValidation, "credit amount must be positive")
	}

	balance, err := s.repo.Credit(ctx, input.UserID, input.AmountCents, input.TrackEarnings)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errors.New(errors.CodeNotFound, "user not found")
		}
		return 0, errors.Wrap(errors.CodeInternal, err, "crediting wallet")
	}
	return balance, nil
}

// GrantSubscription opens a window via a conditional UPDATE so it doubles as
// the already-subscribed guard: a grant racing another grant loses on the row
// lock and maps to the conflict code, never a second charge.
func (s *service) GrantSubscription(ctx context.Context, userID uuid.UUID, plan enums.SubscriptionPlan, startsAt, endsAt time.Time) error {
	if userID == uuid.Nil {
		return errors.New(errors.CodeValidation, "user id is required")
	}
	if !plan.IsValid() {
		return errors.New(errors.CodeValidation, fmt.Sprintf("invalid subscription plan %q", plan))
	}
	if !endsAt.After(startsAt) {
		return errors.New(errors.CodeValidation, "subscription end must be after start")
	}
	applied, err := s.repo.GrantSubscription(ctx, userID, plan, startsAt, endsAt)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating subscription")
	}
	if !applied {
		if _, lookupErr := s.repo.GetByID(ctx, userID); lookupErr != nil {
			if stderrors.Is(lookupErr, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "user not found")
			}
			return errors.Wrap(errors.CodeInternal, lookupErr, "loading user after rejected grant")
		}
		return errors.New(errors.CodeConflict, "subscription already active")
	}
	return nil
}

// ExpireSubscription drops the user back to the free plan. The window dates
// stay in place for history; only the plan and active flag change.
func (s *service) ExpireSubscription(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return errors.New(errors.CodeValidation, "user id is required")
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "user not found")
		}
		return errors.Wrap(errors.CodeInternal, err, "loading user")
	}
	if err := s.repo.SetSubscription(ctx, userID, enums.SubscriptionPlanFree, user.SubscriptionStartsAt, user.SubscriptionEndsAt, false); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "expiring subscription")
	}
	return nil
}
