package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/internal/accounts"
	"github.com/notemarket/backend/internal/ledger"
	dbpkg "github.com/notemarket/backend/pkg/db"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
	"github.com/notemarket/backend/pkg/metrics"
	"github.com/notemarket/backend/pkg/outbox"
)

// Service settles PLUS subscription purchases.
type Service interface {
	PurchaseSubscription(ctx context.Context, userID uuid.UUID) (*Result, error)
	Status(ctx context.Context, userID uuid.UUID) (*StatusResult, error)
}

// Result reports the activated subscription window and the balance after the
// debit.
type Result struct {
	Plan            enums.SubscriptionPlan
	StartsAt        time.Time
	EndsAt          time.Time
	PricePaidCents  int64
	NewBalanceCents int64
}

// StatusResult is the caller-facing view of their subscription.
type StatusResult struct {
	Plan     enums.SubscriptionPlan `json:"plan"`
	Active   bool                   `json:"active"`
	StartsAt *time.Time             `json:"starts_at,omitempty"`
	EndsAt   *time.Time             `json:"ends_at,omitempty"`
}

type service struct {
	db         *dbpkg.Client
	accounts   accounts.Service
	ledger     ledger.Service
	events     *outbox.Service
	metrics    *metrics.WalletMetrics
	priceCents int64
	duration   time.Duration
	platformID uuid.UUID
	now        func() time.Time
}

// Deps collects the collaborators subscription settlement needs.
type Deps struct {
	DB         *dbpkg.Client
	Accounts   accounts.Service
	Ledger     ledger.Service
	Events     *outbox.Service
	Metrics    *metrics.WalletMetrics
	PriceCents int64
	Duration   time.Duration
	PlatformID uuid.UUID
}

// NewService wires the subscription service.
func NewService(deps Deps) (Service, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if deps.Accounts == nil {
		return nil, fmt.Errorf("accounts service required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if deps.PriceCents <= 0 {
		return nil, fmt.Errorf("subscription price must be positive")
	}
	if deps.Duration <= 0 {
		return nil, fmt.Errorf("subscription duration must be positive")
	}
	if deps.PlatformID == uuid.Nil {
		return nil, fmt.Errorf("platform account id required")
	}
	return &service{
		db:         deps.DB,
		accounts:   deps.Accounts,
		ledger:     deps.Ledger,
		events:     deps.Events,
		metrics:    deps.Metrics,
		priceCents: deps.PriceCents,
		duration:   deps.Duration,
		platformID: deps.PlatformID,
		now:        time.Now,
	}, nil
}

// PurchaseSubscription activates a PLUS window. The conditional window grant
// runs first and doubles as the already-subscribed guard, so two concurrent
// purchases serialize on the user row and exactly one debits; the grant, the
// debit, the platform credit, and both ledger entries share one transaction.
func (s *service) PurchaseSubscription(ctx context.Context, userID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}

	started := s.now()
	var result *Result
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		accountsSvc := s.accounts.WithTx(tx)
		ledgerSvc := s.ledger.WithTx(tx)

		now := s.now().UTC()
		endsAt := now.Add(s.duration)
		if err := accountsSvc.GrantSubscription(ctx, userID, enums.SubscriptionPlanPlus, now, endsAt); err != nil {
			return err
		}

		balance, err := accountsSvc.Debit(ctx, accounts.DebitInput{
			UserID:      userID,
			AmountCents: s.priceCents,
			TrackSpend:  true,
		})
		if err != nil {
			return err
		}

		platformBalance, err := accountsSvc.Credit(ctx, accounts.CreditInput{
			UserID:      s.platformID,
			AmountCents: s.priceCents,
		})
		if err != nil {
			return err
		}

		if _, err := ledgerSvc.RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:            userID,
			Type:              enums.TransactionTypeDebit,
			AmountCents:       s.priceCents,
			Category:          enums.TransactionCategorySubscription,
			Description:       "PLUS subscription",
			BalanceAfterCents: balance,
		}); err != nil {
			return err
		}
		if _, err := ledgerSvc.RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:            s.platformID,
			Type:              enums.TransactionTypeCredit,
			AmountCents:       s.priceCents,
			Category:          enums.TransactionCategorySubscription,
			Description:       "PLUS subscription revenue",
			BalanceAfterCents: platformBalance,
		}); err != nil {
			return err
		}

		if s.events != nil {
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.OutboxEventSubscriptionActivated,
				AggregateType: enums.OutboxAggregateWallet,
				AggregateID:   userID,
				Actor:         &outbox.ActorRef{UserID: userID},
				Data: map[string]any{
					"user_id":     userID,
					"price_cents": s.priceCents,
					"starts_at":   now,
					"ends_at":     endsAt,
				},
				Version: 1,
			}); err != nil {
				return err
			}
		}

		result = &Result{
			Plan:            enums.SubscriptionPlanPlus,
			StartsAt:        now,
			EndsAt:          endsAt,
			PricePaidCents:  s.priceCents,
			NewBalanceCents: balance,
		}
		return nil
	})
	if err != nil {
		if errors.HasCode(err, errors.CodeInsufficientFunds) {
			s.metrics.IncInsufficientFunds()
		}
		if errors.As(err) != nil {
			return nil, err
		}
		s.metrics.IncSettlementFailure("subscription")
		return nil, errors.Wrap(errors.CodeInternal, err, "settling subscription")
	}

	s.metrics.ObserveSettlement("subscription", s.priceCents, s.now().Sub(started))
	return result, nil
}

func (s *service) Status(ctx context.Context, userID uuid.UUID) (*StatusResult, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return statusFromUser(user, s.now().UTC()), nil
}

func statusFromUser(user *models.User, now time.Time) *StatusResult {
	return &StatusResult{
		Plan:     user.SubscriptionPlan,
		Active:   user.HasActiveSubscription(now),
		StartsAt: user.SubscriptionStartsAt,
		EndsAt:   user.SubscriptionEndsAt,
	}
}
