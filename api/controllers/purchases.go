package controllers

import (
	"net/http"

	"github.com/notemarket/backend/api/responses"
	"github.com/notemarket/backend/api/validators"
	purchasesvc "github.com/notemarket/backend/internal/purchases"
	"github.com/notemarket/backend/pkg/logger"
)

// PurchaseNote settles a note purchase from the caller's wallet.
func PurchaseNote(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		result, err := svc.PurchaseNote(r.Context(), uid, noteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"purchase":          result.Purchase,
			"price_paid_cents":  result.PricePaidCents,
			"new_balance_cents": result.NewBalanceCents,
		})
	}
}

// PurchaseList returns the caller's library.
func PurchaseList(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchases, err := svc.ListMine(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchases)
	}
}

// PurchaseOpen records a read of a purchased note and returns the purchase.
func PurchaseOpen(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		purchase, err := svc.OpenPurchase(r.Context(), uid, noteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

type annotationRequest struct {
	PageNumber int     `json:"page_number" validate:"required,min=1"`
	Content    string  `json:"content" validate:"required,max=5000"`
	PositionX  float64 `json:"position_x" validate:"gte=0,lte=1"`
	PositionY  float64 `json:"position_y" validate:"gte=0,lte=1"`
}

// PurchaseAnnotate adds a private page annotation to a purchase.
func PurchaseAnnotate(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload annotationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.AddAnnotation(r.Context(), purchasesvc.AnnotationInput{
			UserID:     uid,
			NoteID:     noteID,
			PageNumber: payload.PageNumber,
			Content:    payload.Content,
			PositionX:  payload.PositionX,
			PositionY:  payload.PositionY,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, purchase)
	}
}

type purchaseCommentRequest struct {
	PageNumber int    `json:"page_number" validate:"required,min=1"`
	Content    string `json:"content" validate:"required,max=5000"`
}

// PurchaseComment appends a page comment to a purchase.
func PurchaseComment(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload purchaseCommentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.AddComment(r.Context(), purchasesvc.CommentInput{
			UserID:     uid,
			NoteID:     noteID,
			PageNumber: payload.PageNumber,
			Content:    payload.Content,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, purchase)
	}
}
