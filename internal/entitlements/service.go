package entitlements

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/internal/purchases"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/errors"
)

// UserLoader resolves the subscription state needed for AI feature gating.
type UserLoader interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// Service answers access questions. It never mutates state.
type Service interface {
	CanAccessContent(ctx context.Context, userID *uuid.UUID, note *models.Note) (bool, error)
	CanAccessAIFeatures(ctx context.Context, userID *uuid.UUID, note *models.Note) (bool, error)
}

type service struct {
	purchases purchases.Repository
	users     UserLoader
	now       func() time.Time
}

// NewService wires the entitlement resolver.
func NewService(purchaseRepo purchases.Repository, users UserLoader) (Service, error) {
	if purchaseRepo == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	return &service{purchases: purchaseRepo, users: users, now: time.Now}, nil
}

// CanAccessContent grants full content to owners of free notes and to
// purchasers. Anonymous viewers only pass on free notes.
func (s *service) CanAccessContent(ctx context.Context, userID *uuid.UUID, note *models.Note) (bool, error) {
	if note == nil {
		return false, errors.New(errors.CodeValidation, "note is required")
	}
	if note.IsFree() {
		return true, nil
	}
	if userID == nil || *userID == uuid.Nil {
		return false, nil
	}
	if *userID == note.CreatorID {
		return true, nil
	}
	owned, err := s.purchases.ExistsByUserAndNote(ctx, *userID, note.ID)
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "checking purchase")
	}
	return owned, nil
}

// CanAccessAIFeatures requires authentication, then content access or an
// active PLUS window. The window check compares against now; the stored
// active flag is never consulted.
func (s *service) CanAccessAIFeatures(ctx context.Context, userID *uuid.UUID, note *models.Note) (bool, error) {
	if note == nil {
		return false, errors.New(errors.CodeValidation, "note is required")
	}
	if userID == nil || *userID == uuid.Nil {
		return false, nil
	}

	allowed, err := s.CanAccessContent(ctx, userID, note)
	if err != nil {
		return false, err
	}
	if allowed {
		return true, nil
	}

	user, err := s.users.Get(ctx, *userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) || errors.HasCode(err, errors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.HasActiveSubscription(s.now().UTC()), nil
}
