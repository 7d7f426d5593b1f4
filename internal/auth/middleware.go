package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rkwebforge/tracklet/internal/apperrors"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// AuthMiddleware resolves the session cookie into a user ID on the
// request context. Requests with a missing or invalid session continue
// unauthenticated; a bad cookie is cleared so the client stops sending it.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionTokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ParseSessionToken(token, secret)
			if err != nil {
				log.Debug().Err(err).Msg("Invalid session token")
				ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects unauthenticated requests with a 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == uuid.Nil {
			apperrors.WriteUnauthorized(w, r, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserID returns the authenticated user's ID, or uuid.Nil when the
// request carries no valid session.
func GetUserID(ctx context.Context) uuid.UUID {
	userID, ok := ctx.Value(userIDContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}
