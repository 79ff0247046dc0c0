package reviews

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/internal/notes"
	"github.com/notemarket/backend/internal/purchases"
	dbpkg "github.com/notemarket/backend/pkg/db"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
)

// Service lets purchasers rate notes. Ratings feed the marketplace sort, so
// every write recomputes the note's denormalized aggregate in the same
// transaction.
type Service interface {
	SubmitReview(ctx context.Context, input SubmitReviewInput) (*models.Review, error)
	UpdateReview(ctx context.Context, input UpdateReviewInput) (*models.Review, error)
	ListByNote(ctx context.Context, noteID uuid.UUID, limit int) ([]models.Review, error)
}

// SubmitReviewInput creates a review. Only buyers qualify: the purchase row is
// the proof of entitlement, which covers free notes too since those also
// settle with a purchase row.
type SubmitReviewInput struct {
	UserID  uuid.UUID
	NoteID  uuid.UUID
	Rating  int
	Comment string
}

// UpdateReviewInput edits the caller's existing review. Nil pointers leave
// the field untouched.
type UpdateReviewInput struct {
	UserID  uuid.UUID
	NoteID  uuid.UUID
	Rating  *int
	Comment *string
}

type service struct {
	db        *dbpkg.Client
	repo      Repository
	notesRepo notes.Repository
	purchases purchases.Repository
}

// Deps collects the review service collaborators.
type Deps struct {
	DB        *dbpkg.Client
	Repo      Repository
	NotesRepo notes.Repository
	Purchases purchases.Repository
}

// NewService wires the review service.
func NewService(deps Deps) (Service, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if deps.NotesRepo == nil {
		return nil, fmt.Errorf("notes repository required")
	}
	if deps.Purchases == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	return &service{
		db:        deps.DB,
		repo:      deps.Repo,
		notesRepo: deps.NotesRepo,
		purchases: deps.Purchases,
	}, nil
}

func (s *service) SubmitReview(ctx context.Context, input SubmitReviewInput) (*models.Review, error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	if input.NoteID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "note id is required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, errors.New(errors.CodeValidation, "rating must be between 1 and 5")
	}

	note, err := s.loadNote(ctx, input.NoteID)
	if err != nil {
		return nil, err
	}
	if note.CreatorID == input.UserID {
		return nil, errors.New(errors.CodeStateConflict, "cannot review your own note")
	}

	owned, err := s.purchases.ExistsByUserAndNote(ctx, input.UserID, input.NoteID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "checking purchase")
	}
	if !owned {
		return nil, errors.New(errors.CodeForbidden, "only buyers can review a note")
	}

	review := &models.Review{
		UserID:  input.UserID,
		NoteID:  input.NoteID,
		Rating:  input.Rating,
		Comment: strings.TrimSpace(input.Comment),
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, review); err != nil {
			return err
		}
		return s.refreshRating(ctx, tx, input.NoteID)
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_reviews_user_note") {
			return nil, errors.New(errors.CodeConflict, "note already reviewed")
		}
		if errors.As(err) != nil {
			return nil, err
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "saving review")
	}
	return review, nil
}

func (s *service) UpdateReview(ctx context.Context, input UpdateReviewInput) (*models.Review, error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	if input.NoteID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "note id is required")
	}

	review, err := s.repo.GetByUserAndNote(ctx, input.UserID, input.NoteID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "review not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading review")
	}

	updates := map[string]any{}
	if input.Rating != nil {
		if *input.Rating < 1 || *input.Rating > 5 {
			return nil, errors.New(errors.CodeValidation, "rating must be between 1 and 5")
		}
		updates["rating"] = *input.Rating
		review.Rating = *input.Rating
	}
	if input.Comment != nil {
		trimmed := strings.TrimSpace(*input.Comment)
		updates["comment"] = trimmed
		review.Comment = trimmed
	}
	if len(updates) == 0 {
		return review, nil
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, review.ID, updates); err != nil {
			return err
		}
		return s.refreshRating(ctx, tx, input.NoteID)
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "updating review")
	}
	return review, nil
}

func (s *service) ListByNote(ctx context.Context, noteID uuid.UUID, limit int) ([]models.Review, error) {
	if noteID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "note id is required")
	}
	rows, err := s.repo.ListByNote(ctx, noteID, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing reviews")
	}
	return rows, nil
}

func (s *service) loadNote(ctx context.Context, noteID uuid.UUID) (*models.Note, error) {
	note, err := s.notesRepo.GetByID(ctx, noteID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "note not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading note")
	}
	if note.IsDeleted || note.Status != enums.NoteStatusActive {
		return nil, errors.New(errors.CodeNotFound, "note not found")
	}
	return note, nil
}

func (s *service) refreshRating(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) error {
	average, count, err := s.repo.WithTx(tx).Aggregate(ctx, noteID)
	if err != nil {
		return err
	}
	return s.notesRepo.WithTx(tx).SetRating(ctx, noteID, average, count)
}
