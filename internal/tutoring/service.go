package tutoring

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
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

// Service runs the tutoring lifecycle: a requester posts an offer, a tutor
// accepts, and completion settles the offer amount from requester to tutor.
// No funds are reserved while the request is open, so completion can still
// fail on insufficient balance.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.TutoringSession, error)
	Accept(ctx context.Context, sessionID, tutorID uuid.UUID) (*models.TutoringSession, error)
	Complete(ctx context.Context, sessionID, actorID uuid.UUID) (*CompleteResult, error)
	Cancel(ctx context.Context, sessionID, actorID uuid.UUID) (*models.TutoringSession, error)
	ListOpen(ctx context.Context, subject string, limit int) ([]models.TutoringSession, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]models.TutoringSession, error)
}

// RequestInput opens a tutoring request with an offer amount.
type RequestInput struct {
	RequesterID uuid.UUID
	Subject     string
	Topic       string
	OfferCents  int64
	ScheduledAt *time.Time
}

// CompleteResult reports the settled session and the requester's balance
// after the debit.
type CompleteResult struct {
	Session         *models.TutoringSession
	PaidCents       int64
	NewBalanceCents int64
}

type service struct {
	db       *dbpkg.Client
	repo     Repository
	accounts accounts.Service
	ledger   ledger.Service
	events   *outbox.Service
	metrics  *metrics.WalletMetrics
	now      func() time.Time
}

// Deps collects the tutoring service collaborators.
type Deps struct {
	DB       *dbpkg.Client
	Repo     Repository
	Accounts accounts.Service
	Ledger   ledger.Service
	Events   *outbox.Service
	Metrics  *metrics.WalletMetrics
}

// NewService wires the tutoring service.
func NewService(deps Deps) (Service, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("tutoring repository required")
	}
	if deps.Accounts == nil {
		return nil, fmt.Errorf("accounts service required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		db:       deps.DB,
		repo:     deps.Repo,
		accounts: deps.Accounts,
		ledger:   deps.Ledger,
		events:   deps.Events,
		metrics:  deps.Metrics,
		now:      time.Now,
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.TutoringSession, error) {
	if input.RequesterID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "requester id is required")
	}
	if strings.TrimSpace(input.Subject) == "" {
		return nil, errors.New(errors.CodeValidation, "subject is required")
	}
	if strings.TrimSpace(input.Topic) == "" {
		return nil, errors.New(errors.CodeValidation, "topic is required")
	}
	if input.OfferCents <= 0 {
		return nil, errors.New(errors.CodeValidation, "offer amount must be positive")
	}

	session := &models.TutoringSession{
		RequesterID: input.RequesterID,
		Subject:     strings.TrimSpace(input.Subject),
		Topic:       strings.TrimSpace(input.Topic),
		OfferCents:  input.OfferCents,
		Status:      enums.TutoringStatusOpen,
		ScheduledAt: input.ScheduledAt,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "creating tutoring request")
	}
	return session, nil
}

func (s *service) Accept(ctx context.Context, sessionID, tutorID uuid.UUID) (*models.TutoringSession, error) {
	if tutorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "tutor id is required")
	}
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.RequesterID == tutorID {
		return nil, errors.New(errors.CodeStateConflict, "cannot tutor your own request")
	}
	if session.Status != enums.TutoringStatusOpen {
		return nil, errors.New(errors.CodeStateConflict, fmt.Sprintf("cannot accept a %s session", session.Status))
	}

	// The guarded transition closes the race where two tutors accept at once:
	// only the first UPDATE matches the OPEN row.
	won, err := s.repo.TransitionStatus(ctx, sessionID, enums.TutoringStatusOpen, enums.TutoringStatusAccepted, map[string]any{
		"tutor_id": tutorID,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "accepting session")
	}
	if !won {
		return nil, errors.New(errors.CodeStateConflict, "session already accepted")
	}

	session.Status = enums.TutoringStatusAccepted
	session.TutorID = &tutorID
	return session, nil
}

// Complete settles the session: the requester pays the full offer to the
// tutor, with no platform cut. Both wallet moves, both ledger entries, the
// status flip, and the outbox event commit together.
func (s *service) Complete(ctx context.Context, sessionID, actorID uuid.UUID) (*CompleteResult, error) {
	if actorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "actor id is required")
	}
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != enums.TutoringStatusAccepted {
		return nil, errors.New(errors.CodeStateConflict, fmt.Sprintf("cannot complete a %s session", session.Status))
	}
	if session.TutorID == nil {
		return nil, errors.New(errors.CodeStateConflict, "session has no tutor")
	}
	if actorID != session.RequesterID && actorID != *session.TutorID {
		return nil, errors.New(errors.CodeForbidden, "not a participant in this session")
	}

	started := s.now()
	var result *CompleteResult
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		settled, err := s.settle(ctx, tx, session)
		if err != nil {
			return err
		}
		result = settled
		return nil
	})
	if err != nil {
		if errors.HasCode(err, errors.CodeInsufficientFunds) {
			s.metrics.IncInsufficientFunds()
		}
		if errors.As(err) != nil {
			return nil, err
		}
		s.metrics.IncSettlementFailure("tutoring")
		return nil, errors.Wrap(errors.CodeInternal, err, "settling tutoring session")
	}

	s.metrics.ObserveSettlement("tutoring", result.PaidCents, s.now().Sub(started))
	return result, nil
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, session *models.TutoringSession) (*CompleteResult, error) {
	repo := s.repo.WithTx(tx)
	accountsSvc := s.accounts.WithTx(tx)
	ledgerSvc := s.ledger.WithTx(tx)

	completedAt := s.now().UTC()
	won, err := repo.TransitionStatus(ctx, session.ID, enums.TutoringStatusAccepted, enums.TutoringStatusCompleted, map[string]any{
		"completed_at": completedAt,
	})
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, errors.New(errors.CodeStateConflict, "session already settled")
	}

	requesterBalance, err := accountsSvc.Debit(ctx, accounts.DebitInput{
		UserID:      session.RequesterID,
		AmountCents: session.OfferCents,
		TrackSpend:  true,
	})
	if err != nil {
		return nil, err
	}

	tutorBalance, err := accountsSvc.Credit(ctx, accounts.CreditInput{
		UserID:        *session.TutorID,
		AmountCents:   session.OfferCents,
		TrackEarnings: true,
	})
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Tutoring: %s", session.Topic)
	if _, err := ledgerSvc.RecordEntry(ctx, ledger.RecordEntryInput{
		UserID:            session.RequesterID,
		Type:              enums.TransactionTypeDebit,
		AmountCents:       session.OfferCents,
		Category:          enums.TransactionCategoryTutoring,
		Description:       description,
		RelatedTutoringID: &session.ID,
		BalanceAfterCents: requesterBalance,
	}); err != nil {
		return nil, err
	}
	if _, err := ledgerSvc.RecordEntry(ctx, ledger.RecordEntryInput{
		UserID:            *session.TutorID,
		Type:              enums.TransactionTypeCredit,
		AmountCents:       session.OfferCents,
		Category:          enums.TransactionCategoryTutoring,
		Description:       description,
		RelatedTutoringID: &session.ID,
		BalanceAfterCents: tutorBalance,
	}); err != nil {
		return nil, err
	}

	if s.events != nil {
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventTutoringCompleted,
			AggregateType: enums.OutboxAggregateTutoringSession,
			AggregateID:   session.ID,
			Actor:         &outbox.ActorRef{UserID: session.RequesterID},
			Data: map[string]any{
				"session_id":   session.ID,
				"requester_id": session.RequesterID,
				"tutor_id":     *session.TutorID,
				"offer_cents":  session.OfferCents,
			},
			Version: 1,
		}); err != nil {
			return nil, err
		}
	}

	session.Status = enums.TutoringStatusCompleted
	session.CompletedAt = &completedAt
	return &CompleteResult{
		Session:         session,
		PaidCents:       session.OfferCents,
		NewBalanceCents: requesterBalance,
	}, nil
}

// Cancel withdraws an unsettled session. The requester may cancel an open or
// accepted session; the tutor may back out of an accepted one.
func (s *service) Cancel(ctx context.Context, sessionID, actorID uuid.UUID) (*models.TutoringSession, error) {
	if actorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "actor id is required")
	}
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != enums.TutoringStatusOpen && session.Status != enums.TutoringStatusAccepted {
		return nil, errors.New(errors.CodeStateConflict, fmt.Sprintf("cannot cancel a %s session", session.Status))
	}
	isTutor := session.TutorID != nil && actorID == *session.TutorID
	if actorID != session.RequesterID && !isTutor {
		return nil, errors.New(errors.CodeForbidden, "not a participant in this session")
	}

	won, err := s.repo.TransitionStatus(ctx, sessionID, session.Status, enums.TutoringStatusCancelled, nil)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "cancelling session")
	}
	if !won {
		return nil, errors.New(errors.CodeStateConflict, "session state changed, retry")
	}

	session.Status = enums.TutoringStatusCancelled
	return session, nil
}

func (s *service) ListOpen(ctx context.Context, subject string, limit int) ([]models.TutoringSession, error) {
	rows, err := s.repo.ListOpen(ctx, subject, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing open sessions")
	}
	return rows, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]models.TutoringSession, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing sessions")
	}
	return rows, nil
}

func (s *service) load(ctx context.Context, sessionID uuid.UUID) (*models.TutoringSession, error) {
	if sessionID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "session id is required")
	}
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "tutoring session not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading session")
	}
	return session, nil
}
