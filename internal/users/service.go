package users

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
)

// Service exposes profile operations on top of the repository.
type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, input UpdateProfileInput) (*UserDTO, error)
	BecomeNoteMaker(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
}

// UpdateProfileInput mutates the caller's profile. Nil pointers leave the
// field untouched.
type UpdateProfileInput struct {
	UserID    uuid.UUID
	Name      *string
	Bio       *string
	Education *string
	Interests []string
	Subjects  []string
}

type service struct {
	repo *Repository
}

// NewService wires the users service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, input UpdateProfileInput) (*UserDTO, error) {
	if _, err := s.load(ctx, input.UserID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, errors.New(errors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Bio != nil {
		updates["bio"] = strings.TrimSpace(*input.Bio)
	}
	if input.Education != nil {
		updates["education"] = strings.TrimSpace(*input.Education)
	}
	if input.Interests != nil {
		updates["interests"] = pq.StringArray(input.Interests)
	}
	if input.Subjects != nil {
		updates["subjects"] = pq.StringArray(input.Subjects)
	}

	if len(updates) > 0 {
		if err := s.repo.UpdateProfile(ctx, input.UserID, updates); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "updating profile")
		}
	}

	user, err := s.load(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

// BecomeNoteMaker upgrades a USER to NOTEMAKER so they can publish notes.
// Admins keep their role.
func (s *service) BecomeNoteMaker(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == enums.UserRoleAdmin || user.Role == enums.UserRoleNoteMaker {
		return FromModel(user), nil
	}
	if err := s.repo.SetRole(ctx, userID, string(enums.UserRoleNoteMaker)); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "upgrading role")
	}
	user.Role = enums.UserRoleNoteMaker
	return FromModel(user), nil
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "user not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading user")
	}
	return user, nil
}
