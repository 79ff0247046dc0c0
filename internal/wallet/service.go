package wallet

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
	"github.com/notemarket/backend/pkg/pagination"
)

// Service exposes the user-facing wallet surface: funding, the balance
// summary, and the transaction history.
type Service interface {
	TopUp(ctx context.Context, input TopUpInput) (*TopUpResult, error)
	Summary(ctx context.Context, userID uuid.UUID) (*Summary, error)
	Transactions(ctx context.Context, input TransactionsInput) (*pagination.Page[models.WalletTransaction], error)
}

// TopUpInput funds a wallet. The amount is already in minor units; payment
// capture happens upstream of this service.
type TopUpInput struct {
	UserID      uuid.UUID
	AmountCents int64
}

// TopUpResult reports the new balance alongside the recorded ledger entry.
type TopUpResult struct {
	BalanceCents int64
	Transaction  *models.WalletTransaction
}

// Summary is the wallet dashboard payload.
type Summary struct {
	BalanceCents       int64                  `json:"balance_cents"`
	TotalEarningsCents int64                  `json:"total_earnings_cents"`
	TotalSpentCents    int64                  `json:"total_spent_cents"`
	SubscriptionPlan   enums.SubscriptionPlan `json:"subscription_plan"`
	SubscriptionActive bool                   `json:"subscription_active"`
	SubscriptionEndsAt *time.Time             `json:"subscription_ends_at,omitempty"`
}

// TransactionsInput pages through the caller's ledger history.
type TransactionsInput struct {
	UserID   uuid.UUID
	Type     enums.TransactionType
	Category enums.TransactionCategory
	Page     pagination.Params
}

type service struct {
	db            *dbpkg.Client
	accounts      accounts.Service
	ledger        ledger.Service
	events        *outbox.Service
	metrics       *metrics.WalletMetrics
	topUpMaxCents int64
	now           func() time.Time
}

// Deps collects the wallet service collaborators.
type Deps struct {
	DB            *dbpkg.Client
	Accounts      accounts.Service
	Ledger        ledger.Service
	Events        *outbox.Service
	Metrics       *metrics.WalletMetrics
	TopUpMaxCents int64
}

// NewService wires the wallet service.
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
	if deps.TopUpMaxCents <= 0 {
		return nil, fmt.Errorf("top-up ceiling must be positive")
	}
	return &service{
		db:            deps.DB,
		accounts:      deps.Accounts,
		ledger:        deps.Ledger,
		events:        deps.Events,
		metrics:       deps.Metrics,
		topUpMaxCents: deps.TopUpMaxCents,
		now:           time.Now,
	}, nil
}

// TopUp credits the wallet and records the matching ledger entry in one
// transaction, so the reconciliation invariant holds through crashes.
func (s *service) TopUp(ctx context.Context, input TopUpInput) (*TopUpResult, error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	if input.AmountCents <= 0 {
		return nil, errors.New(errors.CodeValidation, "top-up amount must be positive")
	}
	if input.AmountCents > s.topUpMaxCents {
		return nil, errors.New(errors.CodeValidation, "top-up amount exceeds the allowed maximum").
			WithDetails(map[string]any{
				"amount_cents": input.AmountCents,
				"max_cents":    s.topUpMaxCents,
			})
	}

	started := s.now()
	var result *TopUpResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		accountsSvc := s.accounts.WithTx(tx)
		ledgerSvc := s.ledger.WithTx(tx)

		balance, err := accountsSvc.Credit(ctx, accounts.CreditInput{
			UserID:      input.UserID,
			AmountCents: input.AmountCents,
		})
		if err != nil {
			return err
		}

		entry, err := ledgerSvc.RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:            input.UserID,
			Type:              enums.TransactionTypeCredit,
			AmountCents:       input.AmountCents,
			Category:          enums.TransactionCategoryTopUp,
			Description:       "Wallet top-up",
			BalanceAfterCents: balance,
		})
		if err != nil {
			return err
		}

		if s.events != nil {
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.OutboxEventWalletToppedUp,
				AggregateType: enums.OutboxAggregateWallet,
				AggregateID:   input.UserID,
				Actor:         &outbox.ActorRef{UserID: input.UserID},
				Data: map[string]any{
					"user_id":       input.UserID,
					"amount_cents":  input.AmountCents,
					"balance_cents": balance,
				},
				Version: 1,
			}); err != nil {
				return err
			}
		}

		result = &TopUpResult{BalanceCents: balance, Transaction: entry}
		return nil
	})
	if err != nil {
		if errors.As(err) != nil {
			return nil, err
		}
		s.metrics.IncSettlementFailure("topup")
		return nil, errors.Wrap(errors.CodeInternal, err, "funding wallet")
	}

	s.metrics.ObserveSettlement("topup", input.AmountCents, s.now().Sub(started))
	return result, nil
}

func (s *service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Summary{
		BalanceCents:       user.WalletBalanceCents,
		TotalEarningsCents: user.TotalEarningsCents,
		TotalSpentCents:    user.TotalSpentCents,
		SubscriptionPlan:   user.SubscriptionPlan,
		SubscriptionActive: user.HasActiveSubscription(s.now().UTC()),
		SubscriptionEndsAt: user.SubscriptionEndsAt,
	}, nil
}

func (s *service) Transactions(ctx context.Context, input TransactionsInput) (*pagination.Page[models.WalletTransaction], error) {
	return s.ledger.ListTransactions(ctx, ledger.ListTransactionsInput{
		UserID:   input.UserID,
		Type:     input.Type,
		Category: input.Category,
		Page:     input.Page,
	})
}
