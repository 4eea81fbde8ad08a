package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/creatordesk/creatordesk/internal/logging"
	"github.com/creatordesk/creatordesk/internal/store"
)

type ctxKey int

const ctxKeyMember ctxKey = iota

// CurrentMember returns the authenticated team member, if any. The second
// return is false when auth is disabled or the route is unauthenticated.
func CurrentMember(ctx context.Context) (store.TeamMember, bool) {
	m, ok := ctx.Value(ctxKeyMember).(store.TeamMember)
	return m, ok
}

// requireAuth resolves the API key to a team member and stores it in the
// request context. With SECURITY_REQUIRE_AUTH=false requests pass through
// anonymously and get admin-level visibility; that mode is for local
// development only.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Security.RequireAuth {
			next.ServeHTTP(w, r)
			return
		}

		key := apiKeyFrom(r)
		if key == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: "missing API key",
				Code:  "AUTH001",
			})
			return
		}

		member, err := s.store.CurrentUser(r.Context(), key)
		if errors.Is(err, store.ErrUnknownAPIKey) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: "invalid API key",
				Code:  "AUTH002",
			})
			return
		}
		if err != nil {
			respondError(w, r, err)
			return
		}

		logging.FromContext(r.Context()).Debug("authenticated", "member_id", member.ID, "role", member.Role)
		ctx := context.WithValue(r.Context(), ctxKeyMember, member)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// apiKeyFrom extracts the key from the Authorization bearer header or the
// X-API-Key fallback.
func apiKeyFrom(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
