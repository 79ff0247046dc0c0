package controllers

import (
	"net/http"

	"github.com/notemarket/backend/api/responses"
	"github.com/notemarket/backend/api/validators"
	userssvc "github.com/notemarket/backend/internal/users"
	"github.com/notemarket/backend/pkg/logger"
)

// UserProfile returns the caller's own profile.
func UserProfile(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.GetProfile(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type updateProfileRequest struct {
	Name      *string  `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Bio       *string  `json:"bio,omitempty" validate:"omitempty,max=2000"`
	Education *string  `json:"education,omitempty" validate:"omitempty,max=500"`
	Interests []string `json:"interests,omitempty" validate:"omitempty,dive,min=1"`
	Subjects  []string `json:"subjects,omitempty" validate:"omitempty,dive,min=1"`
}

// UserUpdateProfile applies a partial profile update.
func UserUpdateProfile(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProfileRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.UpdateProfile(r.Context(), userssvc.UpdateProfileInput{
			UserID:    uid,
			Name:      payload.Name,
			Bio:       payload.Bio,
			Education: payload.Education,
			Interests: payload.Interests,
			Subjects:  payload.Subjects,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// UserBecomeNoteMaker upgrades the caller to a publishing role.
func UserBecomeNoteMaker(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.BecomeNoteMaker(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
