package controllers

import (
	"net/http"
	"strings"

	"github.com/notemarket/backend/api/responses"
	"github.com/notemarket/backend/api/validators"
	walletsvc "github.com/notemarket/backend/internal/wallet"
	"github.com/notemarket/backend/pkg/enums"
	pkgerrors "github.com/notemarket/backend/pkg/errors"
	"github.com/notemarket/backend/pkg/logger"
)

type topUpRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"required,min=1"`
}

// WalletTopUp credits the caller's wallet.
func WalletTopUp(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload topUpRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.TopUp(r.Context(), walletsvc.TopUpInput{
			UserID:      uid,
			AmountCents: payload.AmountCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// WalletSummary serves balance, lifetime totals and subscription state.
func WalletSummary(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// WalletTransactions pages through the caller's ledger history.
func WalletTransactions(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := walletsvc.TransactionsInput{UserID: uid, Page: page}
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			txType := enums.TransactionType(strings.ToUpper(raw))
			if !txType.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown transaction type").WithDetails(map[string]any{"type": raw}))
				return
			}
			input.Type = txType
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			category := enums.TransactionCategory(strings.ToUpper(raw))
			if !category.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown transaction category").WithDetails(map[string]any{"category": raw}))
				return
			}
			input.Category = category
		}

		result, err := svc.Transactions(r.Context(), input)
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
