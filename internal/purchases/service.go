package purchases

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/notemarket/backend/internal/accounts"
	"github.com/notemarket/backend/internal/ledger"
	"github.com/notemarket/backend/internal/notes"
	"github.com/notemarket/backend/internal/pricing"
	dbpkg "github.com/notemarket/backend/pkg/db"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
	"github.com/notemarket/backend/pkg/metrics"
	"github.com/notemarket/backend/pkg/outbox"
)

// Service settles note purchases and manages the buyer's library.
type Service interface {
	PurchaseNote(ctx context.Context, buyerID, noteID uuid.UUID) (*PurchaseResult, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error)
	OpenPurchase(ctx context.Context, userID, noteID uuid.UUID) (*models.Purchase, error)
	AddAnnotation(ctx context.Context, input AnnotationInput) (*models.Purchase, error)
	AddComment(ctx context.Context, input CommentInput) (*models.Purchase, error)
}

// PurchaseResult reports the settled purchase alongside the buyer's balance
// after the debit.
type PurchaseResult struct {
	Purchase        *models.Purchase
	PricePaidCents  int64
	NewBalanceCents int64
}

// AnnotationInput pins a private annotation to a page of a purchased note.
type AnnotationInput struct {
	UserID     uuid.UUID
	NoteID     uuid.UUID
	PageNumber int
	Content    string
	PositionX  float64
	PositionY  float64
}

// CommentInput adds a private comment on a page of a purchased note.
type CommentInput struct {
	UserID     uuid.UUID
	NoteID     uuid.UUID
	PageNumber int
	Content    string
}

type service struct {
	db             *dbpkg.Client
	repo           Repository
	notesRepo      notes.Repository
	accounts       accounts.Service
	ledger         ledger.Service
	events         *outbox.Service
	metrics        *metrics.WalletMetrics
	commissionRate decimal.Decimal
	platformID     uuid.UUID
	now            func() time.Time
}

// Deps collects the collaborators the purchase settlement needs.
type Deps struct {
	DB             *dbpkg.Client
	Repo           Repository
	NotesRepo      notes.Repository
	Accounts       accounts.Service
	Ledger         ledger.Service
	Events         *outbox.Service
	Metrics        *metrics.WalletMetrics
	CommissionRate decimal.Decimal
	PlatformID     uuid.UUID
}

// NewService wires the purchase settlement service.
func NewService(deps Deps) (Service, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	if deps.NotesRepo == nil {
		return nil, fmt.Errorf("notes repository required")
	}
	if deps.Accounts == nil {
		return nil, fmt.Errorf("accounts service required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if deps.PlatformID == uuid.Nil {
		return nil, fmt.Errorf("platform account id required")
	}
	if deps.CommissionRate.IsNegative() || deps.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate %s outside [0, 1)", deps.CommissionRate)
	}
	return &service{
		db:             deps.DB,
		repo:           deps.Repo,
		notesRepo:      deps.NotesRepo,
		accounts:       deps.Accounts,
		ledger:         deps.Ledger,
		events:         deps.Events,
		metrics:        deps.Metrics,
		commissionRate: deps.CommissionRate,
		platformID:     deps.PlatformID,
		now:            time.Now,
	}, nil
}

// PurchaseNote settles a purchase in a single transaction: guard checks,
// buyer debit, creator and platform credits, purchase row, ledger entries,
// and the note's purchase counter all commit or roll back together. The
// unique (user_id, note_id) index closes the double-purchase race: the
// second committer's insert fails and maps to the conflict code.
func (s *service) PurchaseNote(ctx context.Context, buyerID, noteID uuid.UUID) (*PurchaseResult, error) {
	if buyerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "buyer id is required")
	}
	if noteID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "note id is required")
	}

	started := s.now()
	var result *PurchaseResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		settled, err := s.settle(ctx, tx, buyerID, noteID)
		if err != nil {
			return err
		}
		result = settled
		return nil
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_purchases_user_note") {
			return nil, errors.New(errors.CodeConflict, "note already purchased")
		}
		if errors.HasCode(err, errors.CodeInsufficientFunds) {
			s.metrics.IncInsufficientFunds()
		}
		if errors.As(err) != nil {
			return nil, err
		}
		s.metrics.IncSettlementFailure("purchase")
		return nil, errors.Wrap(errors.CodeInternal, err, "settling purchase")
	}

	s.metrics.ObserveSettlement("purchase", result.PricePaidCents, s.now().Sub(started))
	return result, nil
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, buyerID, noteID uuid.UUID) (*PurchaseResult, error) {
	notesRepo := s.notesRepo.WithTx(tx)
	purchaseRepo := s.repo.WithTx(tx)
	accountsSvc := s.accounts.WithTx(tx)
	ledgerSvc := s.ledger.WithTx(tx)

	note, err := notesRepo.GetByID(ctx, noteID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "note not found")
		}
		return nil, err
	}
	if !note.IsPurchasable() {
		return nil, errors.New(errors.CodeNotFound, "note not found")
	}
	if note.CreatorID == buyerID {
		return nil, errors.New(errors.CodeStateConflict, "cannot purchase your own note")
	}

	exists, err := purchaseRepo.ExistsByUserAndNote(ctx, buyerID, noteID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.New(errors.CodeConflict, "note already purchased")
	}

	purchase := &models.Purchase{
		UserID:     buyerID,
		NoteID:     noteID,
		PriceCents: note.PriceCents,
	}

	// Free notes settle without moving money: the purchase row alone grants
	// the entitlement.
	if note.IsFree() {
		buyer, err := accountsSvc.Get(ctx, buyerID)
		if err != nil {
			return nil, err
		}
		if err := purchaseRepo.Create(ctx, purchase); err != nil {
			return nil, err
		}
		if err := notesRepo.IncrementPurchases(ctx, noteID); err != nil {
			return nil, err
		}
		if err := s.emitSettled(ctx, tx, purchase, note, 0, 0); err != nil {
			return nil, err
		}
		return &PurchaseResult{
			Purchase:        purchase,
			PricePaidCents:  0,
			NewBalanceCents: buyer.WalletBalanceCents,
		}, nil
	}

	split, err := pricing.ComputeSplit(note.PriceCents, s.commissionRate)
	if err != nil {
		return nil, err
	}

	buyerBalance, err := accountsSvc.Debit(ctx, accounts.DebitInput{
		UserID:      buyerID,
		AmountCents: note.PriceCents,
		TrackSpend:  true,
	})
	if err != nil {
		return nil, err
	}

	creatorBalance, err := accountsSvc.Credit(ctx, accounts.CreditInput{
		UserID:        note.CreatorID,
		AmountCents:   split.CreatorEarningsCents,
		TrackEarnings: true,
	})
	if err != nil {
		return nil, err
	}

	var platformBalance int64
	if split.PlatformFeeCents > 0 {
		platformBalance, err = accountsSvc.Credit(ctx, accounts.CreditInput{
			UserID:      s.platformID,
			AmountCents: split.PlatformFeeCents,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := purchaseRepo.Create(ctx, purchase); err != nil {
		return nil, err
	}

	if _, err := ledgerSvc.RecordEntry(ctx, ledger.RecordEntryInput{
		UserID:            buyerID,
		Type:              enums.TransactionTypeDebit,
		AmountCents:       note.PriceCents,
		Category:          enums.TransactionCategoryNotePurchase,
		Description:       fmt.Sprintf("Purchased: %s", note.Title),
		RelatedNoteID:     &note.ID,
		RelatedPurchaseID: &purchase.ID,
		BalanceAfterCents: buyerBalance,
	}); err != nil {
		return nil, err
	}

	if _, err := ledgerSvc.RecordEntry(ctx, ledger.RecordEntryInput{
		UserID:            note.CreatorID,
		Type:              enums.TransactionTypeCredit,
		AmountCents:       split.CreatorEarningsCents,
		Category:          enums.TransactionCategoryNoteSale,
		Description:       fmt.Sprintf("Sold: %s", note.Title),
		RelatedNoteID:     &note.ID,
		RelatedPurchaseID: &purchase.ID,
		BalanceAfterCents: creatorBalance,
	}); err != nil {
		return nil, err
	}

	if split.PlatformFeeCents > 0 {
		if _, err := ledgerSvc.RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:            s.platformID,
			Type:              enums.TransactionTypeCredit,
			AmountCents:       split.PlatformFeeCents,
			Category:          enums.TransactionCategoryPlatformFee,
			Description:       fmt.Sprintf("Commission: %s", note.Title),
			RelatedNoteID:     &note.ID,
			RelatedPurchaseID: &purchase.ID,
			BalanceAfterCents: platformBalance,
		}); err != nil {
			return nil, err
		}
	}

	if err := notesRepo.IncrementPurchases(ctx, noteID); err != nil {
		return nil, err
	}

	if err := s.emitSettled(ctx, tx, purchase, note, split.PlatformFeeCents, split.CreatorEarningsCents); err != nil {
		return nil, err
	}

	return &PurchaseResult{
		Purchase:        purchase,
		PricePaidCents:  note.PriceCents,
		NewBalanceCents: buyerBalance,
	}, nil
}

func (s *service) emitSettled(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, note *models.Note, feeCents, creatorCents int64) error {
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventPurchaseSettled,
		AggregateType: enums.OutboxAggregatePurchase,
		AggregateID:   purchase.ID,
		Actor:         &outbox.ActorRef{UserID: purchase.UserID},
		Data: map[string]any{
			"purchase_id":            purchase.ID,
			"note_id":                note.ID,
			"creator_id":             note.CreatorID,
			"price_cents":            purchase.PriceCents,
			"platform_fee_cents":     feeCents,
			"creator_earnings_cents": creatorCents,
		},
		Version: 1,
	})
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing purchases")
	}
	return rows, nil
}

// OpenPurchase loads the caller's purchase of a note and records the access.
func (s *service) OpenPurchase(ctx context.Context, userID, noteID uuid.UUID) (*models.Purchase, error) {
	purchase, err := s.ownedPurchase(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.TouchAccess(ctx, purchase.ID, s.now()); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "recording access")
	}
	return purchase, nil
}

func (s *service) AddAnnotation(ctx context.Context, input AnnotationInput) (*models.Purchase, error) {
	if input.PageNumber <= 0 {
		return nil, errors.New(errors.CodeValidation, "page number must be positive")
	}
	if input.Content == "" {
		return nil, errors.New(errors.CodeValidation, "annotation content is required")
	}
	purchase, err := s.ownedPurchase(ctx, input.UserID, input.NoteID)
	if err != nil {
		return nil, err
	}

	var annotations []models.PurchaseAnnotation
	if len(purchase.Annotations) > 0 {
		if err := json.Unmarshal(purchase.Annotations, &annotations); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "decoding annotations")
		}
	}
	annotations = append(annotations, models.PurchaseAnnotation{
		PageNumber: input.PageNumber,
		Content:    input.Content,
		PositionX:  input.PositionX,
		PositionY:  input.PositionY,
		CreatedAt:  s.now().UTC(),
	})
	encoded, err := json.Marshal(annotations)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "encoding annotations")
	}
	if err := s.repo.Update(ctx, purchase.ID, map[string]any{"annotations": encoded}); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "saving annotation")
	}
	purchase.Annotations = encoded
	return purchase, nil
}

func (s *service) AddComment(ctx context.Context, input CommentInput) (*models.Purchase, error) {
	if input.PageNumber <= 0 {
		return nil, errors.New(errors.CodeValidation, "page number must be positive")
	}
	if input.Content == "" {
		return nil, errors.New(errors.CodeValidation, "comment content is required")
	}
	purchase, err := s.ownedPurchase(ctx, input.UserID, input.NoteID)
	if err != nil {
		return nil, err
	}

	var comments []models.PurchaseComment
	if len(purchase.Comments) > 0 {
		if err := json.Unmarshal(purchase.Comments, &comments); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "decoding comments")
		}
	}
	comments = append(comments, models.PurchaseComment{
		PageNumber: input.PageNumber,
		Content:    input.Content,
		CreatedAt:  s.now().UTC(),
	})
	encoded, err := json.Marshal(comments)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "encoding comments")
	}
	if err := s.repo.Update(ctx, purchase.ID, map[string]any{"comments": encoded}); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "saving comment")
	}
	purchase.Comments = encoded
	return purchase, nil
}

func (s *service) ownedPurchase(ctx context.Context, userID, noteID uuid.UUID) (*models.Purchase, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	if noteID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "note id is required")
	}
	purchase, err := s.repo.GetByUserAndNote(ctx, userID, noteID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "purchase not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading purchase")
	}
	return purchase, nil
}
