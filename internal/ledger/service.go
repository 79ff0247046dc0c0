package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
	"github.com/notemarket/backend/pkg/pagination"
)

// Service defines operations that record and read wallet transactions.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordEntry(ctx context.Context, input RecordEntryInput) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, input ListTransactionsInput) (*pagination.Page[models.WalletTransaction], error)
	Reconcile(ctx context.Context, userID uuid.UUID, walletBalanceCents int64) (*ReconcileResult, error)
}

// RecordEntryInput captures the immutable data a wallet transaction requires.
// BalanceAfterCents is the account balance immediately after the movement was
// applied; callers take it from the debit/credit return value inside the same
// transaction.
type RecordEntryInput struct {
	UserID            uuid.UUID
	Type              enums.TransactionType
	AmountCents       int64
	Category          enums.TransactionCategory
	Description       string
	RelatedNoteID     *uuid.UUID
	RelatedPurchaseID *uuid.UUID
	RelatedTutoringID *uuid.UUID
	BalanceAfterCents int64
}

// ListTransactionsInput pages through a user's history, newest first.
type ListTransactionsInput struct {
	UserID   uuid.UUID
	Type     enums.TransactionType
	Category enums.TransactionCategory
	Page     pagination.Params
}

// ReconcileResult compares the ledger's net position against the stored
// wallet balance.
type ReconcileResult struct {
	UserID           uuid.UUID `json:"user_id"`
	CreditTotalCents int64     `json:"credit_total_cents"`
	DebitTotalCents  int64     `json:"debit_total_cents"`
	NetCents         int64     `json:"net_cents"`
	BalanceCents     int64     `json:"balance_cents"`
	Balanced         bool      `json:"balanced"`
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) RecordEntry(ctx context.Context, input RecordEntryInput) (*models.WalletTransaction, error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	if !input.Type.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if !input.Category.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("invalid transaction category %q", input.Category))
	}
	if input.AmountCents <= 0 {
		return nil, errors.New(errors.CodeValidation, "transaction amount must be positive")
	}
	if input.BalanceAfterCents < 0 {
		return nil, errors.New(errors.CodeValidation, "balance snapshot must not be negative")
	}

	entry := &models.WalletTransaction{
		UserID:            input.UserID,
		Type:              input.Type,
		Amount:            input.AmountCents,
		Category:          input.Category,
		Description:       input.Description,
		RelatedNoteID:     input.RelatedNoteID,
		RelatedPurchaseID: input.RelatedPurchaseID,
		RelatedTutoringID: input.RelatedTutoringID,
		BalanceAfterCents: input.BalanceAfterCents,
		Status:            enums.TransactionStatusCompleted,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "recording wallet transaction")
	}
	return entry, nil
}

func (s *service) ListTransactions(ctx context.Context, input ListTransactionsInput) (*pagination.Page[models.WalletTransaction], error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	if input.Type != "" && !input.Type.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if input.Category != "" && !input.Category.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("invalid transaction category %q", input.Category))
	}

	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Page.Limit)
	filter := ListFilter{
		Type:     input.Type,
		Category: input.Category,
		Limit:    limit + 1,
	}
	if cursor != nil {
		filter.Before = cursor.CreatedAt
		filter.BeforeID = cursor.ID
	}

	entries, err := s.repo.ListByUser(ctx, input.UserID, filter)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing wallet transactions")
	}

	page := &pagination.Page[models.WalletTransaction]{Items: entries}
	if len(entries) > limit {
		page.Items = entries[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// Reconcile checks the append-only ledger against the live balance. Top-ups
// and credits minus debits must equal the wallet, since every balance
// mutation records exactly one entry in the same transaction.
func (s *service) Reconcile(ctx context.Context, userID uuid.UUID, walletBalanceCents int64) (*ReconcileResult, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}

	credits, err := s.repo.SumByType(ctx, userID, enums.TransactionTypeCredit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "summing credits")
	}
	debits, err := s.repo.SumByType(ctx, userID, enums.TransactionTypeDebit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "summing debits")
	}

	net := credits - debits
	return &ReconcileResult{
		UserID:           userID,
		CreditTotalCents: credits,
		DebitTotalCents:  debits,
		NetCents:         net,
		BalanceCents:     walletBalanceCents,
		Balanced:         net == walletBalanceCents,
	}, nil
}
