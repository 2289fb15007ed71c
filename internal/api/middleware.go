package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/oakbank/transferd/internal/identity"
)

type contextKey int

const sessionKey contextKey = iota

// Authenticate parses the bearer session token and attaches the
// principal to the request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			respondWithJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}

		session, err := h.tokens.Parse(token)
		if err != nil {
			respondWithJSON(w, http.StatusUnauthorized, map[string]string{"error": identity.ErrInvalidToken.Error()})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, session)))
	})
}

func sessionFrom(ctx context.Context) *identity.Session {
	s, _ := ctx.Value(sessionKey).(*identity.Session)
	return s
}
