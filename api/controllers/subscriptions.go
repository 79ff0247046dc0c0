package controllers

import (
	"net/http"

	"github.com/notemarket/backend/api/responses"
	subssvc "github.com/notemarket/backend/internal/subscriptions"
	"github.com/notemarket/backend/pkg/logger"
)

// SubscriptionPurchase buys the PLUS plan from the caller's wallet.
func SubscriptionPurchase(svc subssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PurchaseSubscription(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// SubscriptionStatus reports the caller's plan and active window.
func SubscriptionStatus(svc subssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.Status(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
