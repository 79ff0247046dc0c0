package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
)

// UserDTO is the transport shape that omits credentials and wallet totals the
// caller should read from the wallet summary instead.
type UserDTO struct {
	ID               uuid.UUID              `json:"id"`
	Email            string                 `json:"email"`
	Name             string                 `json:"name"`
	Role             enums.UserRole         `json:"role"`
	Bio              *string                `json:"bio,omitempty"`
	Education        *string                `json:"education,omitempty"`
	Interests        []string               `json:"interests"`
	Subjects         []string               `json:"subjects"`
	IsVerified       bool                   `json:"is_verified"`
	SubscriptionPlan enums.SubscriptionPlan `json:"subscription_plan"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Name         string
	Role         enums.UserRole
	Bio          *string
	Education    *string
	Interests    []string
	Subjects     []string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             u.Role,
		Bio:              u.Bio,
		Education:        u.Education,
		Interests:        append([]string(nil), u.Interests...),
		Subjects:         append([]string(nil), u.Subjects...),
		IsVerified:       u.IsVerified,
		SubscriptionPlan: u.SubscriptionPlan,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleUser
	}
	return &models.User{
		Email:            c.Email,
		PasswordHash:     c.PasswordHash,
		Name:             c.Name,
		Role:             role,
		Bio:              c.Bio,
		Education:        c.Education,
		Interests:        pq.StringArray(append([]string(nil), c.Interests...)),
		Subjects:         pq.StringArray(append([]string(nil), c.Subjects...)),
		SubscriptionPlan: enums.SubscriptionPlanFree,
	}
}
