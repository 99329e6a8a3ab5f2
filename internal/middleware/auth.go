package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ndenisov/cleanday/internal/auth"
	"github.com/ndenisov/cleanday/internal/store"
)

// RequireAuth validates the bearer token, loads the user, and populates the
// auth context.
func RequireAuth(tokens *auth.TokenManager, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			user, err := users.GetByUsername(claims.Subject)
			if err != nil || user == nil {
				writeError(w, http.StatusUnauthorized, "user not found")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				UserID:   user.ID,
				Username: user.Username,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireMember resolves the authenticated user's apartment membership and
// attaches it to the context. Users living nowhere get 400, matching the
// original API.
func RequireMember(housing *store.HousingStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member, err := housing.GetMemberByUser(auth.UserID(r.Context()))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to resolve membership")
				return
			}
			if member == nil {
				writeError(w, http.StatusBadRequest, "user is not assigned to any apartment")
				return
			}

			ctx := auth.WithMember(r.Context(), *member)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireManager gates manager-only operations. Must run after RequireMember.
func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsManager(r.Context()) {
			writeError(w, http.StatusForbidden, "manager role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
