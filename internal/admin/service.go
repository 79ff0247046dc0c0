package admin

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/notemarket/backend/pkg/db"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
	"github.com/notemarket/backend/pkg/outbox"
)

// Service covers the moderation queue and the platform stats panel. Role
// enforcement happens at the route layer; the service trusts its caller.
type Service interface {
	ReviewQueue(ctx context.Context) ([]models.Note, error)
	ApproveNote(ctx context.Context, noteID, actorID uuid.UUID) (*models.Note, error)
	RejectNote(ctx context.Context, noteID, actorID uuid.UUID, reason string) (*models.Note, error)
	Stats(ctx context.Context) (*PlatformStats, error)
}

// PlatformStats is the admin dashboard aggregate.
type PlatformStats struct {
	TotalUsers        int64 `json:"total_users"`
	NoteMakers        int64 `json:"note_makers"`
	TotalNotes        int64 `json:"total_notes"`
	ActiveNotes       int64 `json:"active_notes"`
	PendingReview     int64 `json:"pending_review"`
	TotalPurchases    int64 `json:"total_purchases"`
	TotalRevenueCents int64 `json:"total_revenue_cents"`
}

type service struct {
	repo   Repository
	db     *dbpkg.Client
	events *outbox.Service
}

// NewService wires the admin service.
func NewService(repo Repository, client *dbpkg.Client, events *outbox.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("admin repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, db: client, events: events}, nil
}

// ReviewQueue lists notes parked for moderation, newest first.
func (s *service) ReviewQueue(ctx context.Context) ([]models.Note, error) {
	notes, err := s.repo.ListNotesByStatus(ctx, enums.NoteStatusPausedForReview)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing review queue")
	}
	return notes, nil
}

// ApproveNote activates a parked or previously rejected note. The approval
// becomes publicly visible, so it emits the same event as a creator publish.
func (s *service) ApproveNote(ctx context.Context, noteID, actorID uuid.UUID) (*models.Note, error) {
	if noteID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "note id is required")
	}

	var note *models.Note
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		applied, err := repo.TransitionNoteStatus(ctx, noteID,
			[]enums.NoteStatus{enums.NoteStatusPausedForReview, enums.NoteStatusRejected},
			enums.NoteStatusActive, "")
		if err != nil {
			return err
		}
		if !applied {
			return s.transitionRejection(ctx, repo, noteID, "approve")
		}
		note, err = repo.GetNote(ctx, noteID)
		if err != nil {
			return err
		}
		if s.events != nil {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.OutboxEventNotePublished,
				AggregateType: enums.OutboxAggregateNote,
				AggregateID:   note.ID,
				Actor:         &outbox.ActorRef{UserID: actorID, Role: string(enums.UserRoleAdmin)},
				Data: map[string]any{
					"note_id":     note.ID,
					"title":       note.Title,
					"price_cents": note.PriceCents,
				},
				Version: 1,
			})
		}
		return nil
	})
	if err != nil {
		if errors.As(err) != nil {
			return nil, err
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "approving note")
	}
	return note, nil
}

// RejectNote parks an active or in-review note with a reason for the
// creator.
func (s *service) RejectNote(ctx context.Context, noteID, actorID uuid.UUID, reason string) (*models.Note, error) {
	if noteID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "note id is required")
	}

	var note *models.Note
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		applied, err := repo.TransitionNoteStatus(ctx, noteID,
			[]enums.NoteStatus{enums.NoteStatusPausedForReview, enums.NoteStatusActive},
			enums.NoteStatusRejected, strings.TrimSpace(reason))
		if err != nil {
			return err
		}
		if !applied {
			return s.transitionRejection(ctx, repo, noteID, "reject")
		}
		note, err = repo.GetNote(ctx, noteID)
		return err
	})
	if err != nil {
		if errors.As(err) != nil {
			return nil, err
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "rejecting note")
	}
	return note, nil
}

// transitionRejection explains a failed conditional transition: the note is
// either missing or in a state the action does not apply to.
func (s *service) transitionRejection(ctx context.Context, repo Repository, noteID uuid.UUID, action string) error {
	current, err := repo.GetNote(ctx, noteID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "note not found")
		}
		return err
	}
	if current.IsDeleted {
		return errors.New(errors.CodeNotFound, "note not found")
	}
	return errors.New(errors.CodeStateConflict,
		fmt.Sprintf("cannot %s a %s note", action, current.Status))
}

func (s *service) Stats(ctx context.Context) (*PlatformStats, error) {
	totalUsers, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting users")
	}
	noteMakers, err := s.repo.CountUsers(ctx, enums.UserRoleNoteMaker, enums.UserRoleAdmin)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting notemakers")
	}
	totalNotes, err := s.repo.CountNotes(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting notes")
	}
	activeNotes, err := s.repo.CountNotes(ctx, enums.NoteStatusActive)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting active notes")
	}
	pendingReview, err := s.repo.CountNotes(ctx, enums.NoteStatusPausedForReview)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting review queue")
	}
	purchases, err := s.repo.CountPurchases(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting purchases")
	}
	revenue, err := s.repo.SumPurchaseRevenue(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "summing revenue")
	}

	return &PlatformStats{
		TotalUsers:        totalUsers,
		NoteMakers:        noteMakers,
		TotalNotes:        totalNotes,
		ActiveNotes:       activeNotes,
		PendingReview:     pendingReview,
		TotalPurchases:    purchases,
		TotalRevenueCents: revenue,
	}, nil
}
