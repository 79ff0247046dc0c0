package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/notemarket/backend/api/responses"
	"github.com/notemarket/backend/api/validators"
	tutoringsvc "github.com/notemarket/backend/internal/tutoring"
	"github.com/notemarket/backend/pkg/logger"
)

type tutoringRequestBody struct {
	Subject     string     `json:"subject" validate:"required,min=1,max=100"`
	Topic       string     `json:"topic" validate:"required,min=1,max=500"`
	OfferCents  int64      `json:"offer_cents" validate:"required,min=1"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// TutoringRequest opens a tutoring request with a wallet-backed offer.
func TutoringRequest(svc tutoringsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload tutoringRequestBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Request(r.Context(), tutoringsvc.RequestInput{
			RequesterID: uid,
			Subject:     payload.Subject,
			Topic:       payload.Topic,
			OfferCents:  payload.OfferCents,
			ScheduledAt: payload.ScheduledAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// TutoringAccept claims an open request as its tutor.
func TutoringAccept(svc tutoringsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := pathUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Accept(r.Context(), sessionID, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// TutoringComplete settles an accepted session requester to tutor.
func TutoringComplete(svc tutoringsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := pathUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Complete(r.Context(), sessionID, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TutoringCancel withdraws a request or backs out of an accepted session.
func TutoringCancel(svc tutoringsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := pathUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Cancel(r.Context(), sessionID, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// TutoringListOpen browses open requests, optionally by subject.
func TutoringListOpen(svc tutoringsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessions, err := svc.ListOpen(r.Context(), strings.TrimSpace(r.URL.Query().Get("subject")), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessions)
	}
}

// TutoringListMine lists sessions the caller requested or tutors.
func TutoringListMine(svc tutoringsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessions, err := svc.ListMine(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessions)
	}
}
