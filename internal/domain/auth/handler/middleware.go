package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/RonTitans/BillFlow/pkg/server"
)

type contextKey string

const userIDKey contextKey = "userID"

// Middleware authenticates requests by bearer token and stores the user
// id on the request context.
func (h *AuthHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			server.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}

		user, err := h.svc.Verify(r.Context(), token)
		if err != nil {
			server.Error(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user id set by Middleware.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// ContextWithUserID returns ctx carrying the given user id, as Middleware
// would have set it.
func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}
