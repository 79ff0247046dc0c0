package controllers

import (
	"net/http"
	"strings"

	"github.com/notemarket/backend/api/middleware"
	"github.com/notemarket/backend/api/responses"
	"github.com/notemarket/backend/api/validators"
	notessvc "github.com/notemarket/backend/internal/notes"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	pkgerrors "github.com/notemarket/backend/pkg/errors"
	"github.com/notemarket/backend/pkg/logger"
)

type notePageRequest struct {
	PageNumber int      `json:"page_number" validate:"required,min=1"`
	Content    string   `json:"content" validate:"required"`
	Images     []string `json:"images,omitempty"`
}

type createNoteRequest struct {
	Title        string            `json:"title" validate:"required,min=1,max=200"`
	Subject      string            `json:"subject" validate:"required,min=1,max=100"`
	Description  string            `json:"description" validate:"required,min=1,max=5000"`
	Pages        []notePageRequest `json:"pages" validate:"required,min=1,dive"`
	PriceCents   int64             `json:"price_cents" validate:"min=0"`
	PreviewPages int               `json:"preview_pages" validate:"omitempty,min=1"`
	Tags         []string          `json:"tags,omitempty" validate:"omitempty,dive,min=1"`
}

type updateNoteRequest struct {
	Title        *string           `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Subject      *string           `json:"subject,omitempty" validate:"omitempty,min=1,max=100"`
	Description  *string           `json:"description,omitempty" validate:"omitempty,min=1,max=5000"`
	Pages        []notePageRequest `json:"pages,omitempty" validate:"omitempty,min=1,dive"`
	PriceCents   *int64            `json:"price_cents,omitempty" validate:"omitempty,min=0"`
	PreviewPages *int              `json:"preview_pages,omitempty" validate:"omitempty,min=1"`
	Tags         []string          `json:"tags,omitempty" validate:"omitempty,dive,min=1"`
}

func toModelPages(pages []notePageRequest) []models.NotePage {
	if pages == nil {
		return nil
	}
	out := make([]models.NotePage, 0, len(pages))
	for _, p := range pages {
		out = append(out, models.NotePage{
			PageNumber: p.PageNumber,
			Content:    p.Content,
			Images:     p.Images,
		})
	}
	return out
}

// NoteCreate starts a new draft for the authenticated notemaker.
func NoteCreate(svc notessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createNoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		note, err := svc.CreateNote(r.Context(), notessvc.CreateNoteInput{
			CreatorID:    uid,
			ActorRole:    enums.UserRole(middleware.RoleFromContext(r.Context())),
			Title:        payload.Title,
			Subject:      payload.Subject,
			Description:  payload.Description,
			Pages:        toModelPages(payload.Pages),
			PriceCents:   payload.PriceCents,
			PreviewPages: payload.PreviewPages,
			Tags:         payload.Tags,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, note)
	}
}

// NoteUpdate applies a partial edit to a note the caller owns.
func NoteUpdate(svc notessvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload updateNoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		note, err := svc.UpdateNote(r.Context(), notessvc.UpdateNoteInput{
			NoteID:       noteID,
			ActorID:      uid,
			Title:        payload.Title,
			Subject:      payload.Subject,
			Description:  payload.Description,
			Pages:        toModelPages(payload.Pages),
			PriceCents:   payload.PriceCents,
			PreviewPages: payload.PreviewPages,
			Tags:         payload.Tags,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, note)
	}
}

// NotePublish flips a draft live.
func NotePublish(svc notessvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		note, err := svc.PublishNote(r.Context(), noteID, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, note)
	}
}

// NoteDelete soft-deletes a note the caller owns.
func NoteDelete(svc notessvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.DeleteNote(r.Context(), noteID, uid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type noteDetailResponse struct {
	Note       *models.Note      `json:"note"`
	Pages      []models.NotePage `json:"pages"`
	HasAccess  bool              `json:"has_access"`
	TotalPages int               `json:"total_pages"`
}

// NoteDetail serves a note with the pages the viewer is entitled to. Works
// anonymously: then only the preview window is returned.
func NoteDetail(svc notessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, err := optionalActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		noteID, err := pathUUID(r, "noteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetNoteDetail(r.Context(), noteID, viewerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, noteDetailResponse{
			Note:       detail.Note,
			Pages:      detail.Pages,
			HasAccess:  detail.HasAccess,
			TotalPages: detail.TotalPages,
		})
	}
}

// NoteListMine lists the caller's notes, drafts included.
func NoteListMine(svc notessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		notes, err := svc.ListMine(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, notes)
	}
}

// Marketplace serves the public catalog with filters and cursor pagination.
func Marketplace(svc notessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		freeOnly, err := validators.ParseQueryBool(r, "free_only")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		minPrice, err := validators.ParseQueryCents(r, "min_price_cents")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		maxPrice, err := validators.ParseQueryCents(r, "max_price_cents")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sort := notessvc.SortNewest
		if raw := strings.TrimSpace(r.URL.Query().Get("sort")); raw != "" {
			sort = notessvc.Sort(raw)
			if !sort.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown sort option").WithDetails(map[string]any{"sort": raw}))
				return
			}
		}

		result, err := svc.Marketplace(r.Context(), notessvc.MarketplaceInput{
			Subject:       strings.TrimSpace(r.URL.Query().Get("subject")),
			Query:         strings.TrimSpace(r.URL.Query().Get("q")),
			FreeOnly:      freeOnly,
			MinPriceCents: minPrice,
			MaxPriceCents: maxPrice,
			Sort:          sort,
			Page:          page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"items":       result.Items,
			"next_cursor": result.NextCursor,
		})
	}
}
