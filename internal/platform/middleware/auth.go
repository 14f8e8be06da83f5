package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"crowdgate/internal/jwtauth"
	"crowdgate/pkg/requestcontext"
)

// TokenValidator validates an access token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwtauth.Claims, error)
}

// writeJSONError writes a JSON error response with the given status code and
// error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireOwner admits only callers presenting a bearer token with the owner
// role. The authenticated actor id is placed in the request context for audit
// trails.
func RequireOwner(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			after, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(after)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			if claims.Role != jwtauth.RoleOwner {
				logger.WarnContext(ctx, "forbidden access - owner role required",
					"actor_id", claims.ActorID,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Owner role required")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActorID(ctx, claims.ActorID)))
		})
	}
}
