package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/booking"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/httpx"
	"github.com/google/uuid"
)

type actorKey struct{}

// ActorFromContext returns the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (booking.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(booking.Actor)
	return actor, ok
}

// RequireActor rejects requests without a valid bearer token and puts the
// resolved actor in the request context.
func RequireActor(secret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			const prefix = "Bearer "
			if !strings.HasPrefix(raw, prefix) {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := ParseAndVerifyHS256(strings.TrimSpace(raw[len(prefix):]), secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			id, err := uuid.Parse(claims.Sub)
			if err != nil {
				http.Error(w, "invalid token subject", http.StatusUnauthorized)
				return
			}

			role := claims.Role
			switch role {
			case booking.RoleMentor, booking.RoleMentee, booking.RoleAdmin:
			default:
				http.Error(w, "unknown role", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), actorKey{}, booking.Actor{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
