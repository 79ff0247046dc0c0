package controllers

import (
	"net/http"

	"github.com/notemarket/backend/api/responses"
	"github.com/notemarket/backend/api/validators"
	adminsvc "github.com/notemarket/backend/internal/admin"
	"github.com/notemarket/backend/pkg/logger"
)

type rejectNoteRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=2000"`
}

// AdminReviewQueue lists notes parked for moderation.
func AdminReviewQueue(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notes, err := svc.ReviewQueue(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"notes": notes})
	}
}

// AdminNoteApprove activates a parked note.
func AdminNoteApprove(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		noteID, err := pathUUID(r, "noteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		note, err := svc.ApproveNote(r.Context(), noteID, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, note)
	}
}

// AdminNoteReject parks a note with a reason for the creator.
func AdminNoteReject(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		noteID, err := pathUUID(r, "noteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// The reason is optional, so an empty body is accepted.
		var payload rejectNoteRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		note, err := svc.RejectNote(r.Context(), noteID, uid, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, note)
	}
}

// AdminStats returns the dashboard aggregates.
func AdminStats(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
