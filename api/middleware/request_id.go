package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/notemarket/backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Inbound IDs longer than this are treated as garbage and replaced.
const maxRequestIDLen = 64

// RequestID honors an inbound X-Request-Id, minting one otherwise, and
// threads it through the response header and log context.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if reqID == "" || len(reqID) > maxRequestIDLen {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
