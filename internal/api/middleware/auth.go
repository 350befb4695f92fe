package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sathvikchoudar61/EduStealth/internal/crypto"
)

type contextKey string

const UserContextKey contextKey = "user"

// RequireAuth verifies the bearer token minted by the identity service and
// puts the verified user id on the request context. Identity mechanics
// (registration, password flows) live entirely outside this service; by the
// time a request gets here the token either verifies or it doesn't.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || token == r.Header.Get("Authorization") {
				jsonError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := crypto.ParseUserToken(jwtSecret, token)
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the authenticated user id from the request
// context, or "" when the request was not authenticated.
func GetUserFromContext(ctx context.Context) string {
	userID, ok := ctx.Value(UserContextKey).(string)
	if !ok {
		return ""
	}
	return userID
}
