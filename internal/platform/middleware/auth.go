package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"permitpulse/pkg/requestcontext"
)

// OperatorValidator validates an operator JWT and returns its subject.
type OperatorValidator interface {
	ValidateToken(tokenString string) (string, error)
}

// SharedSecretSubject is recorded as the operator when the cron secret is used.
const SharedSecretSubject = "cron"

// RequireOperator admits requests whose Bearer token is either the shared cron
// secret or a valid operator JWT. Either credential may be unset; with neither
// configured every request is refused.
func RequireOperator(sharedSecret string, validator OperatorValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized operator request - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			if sharedSecret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(sharedSecret)) == 1 {
				ctx = requestcontext.WithOperator(ctx, SharedSecretSubject)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if validator != nil {
				subject, err := validator.ValidateToken(token)
				if err == nil {
					ctx = requestcontext.WithOperator(ctx, subject)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				logger.WarnContext(ctx, "unauthorized operator request - invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
			}
			writeUnauthorized(w, "Unauthorized cron request")
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
