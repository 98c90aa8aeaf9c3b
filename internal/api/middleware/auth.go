package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cloo-solutions/meetmind/internal/api"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

// ClientIDHeader carries the authenticated client back to outer middleware,
// which only sees the original request context.
const ClientIDHeader = "X-Client-ID"

// AuthValidator resolves a bearer token to a client identifier.
type AuthValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// StaticToken accepts a single shared token.
type StaticToken struct {
	Token    string
	ClientID string
}

func (s StaticToken) ValidateToken(_ context.Context, token string) (string, error) {
	if s.Token == "" || subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return "", errInvalidToken
	}
	if s.ClientID == "" {
		return "default", nil
	}
	return s.ClientID, nil
}

type authError string

func (e authError) Error() string { return string(e) }

const errInvalidToken = authError("invalid token")

// TokenAuth rejects requests without a valid bearer token. A nil validator
// disables authentication.
func TokenAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			clientID, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api token")
				return
			}

			r.Header.Set(ClientIDHeader, clientID)
			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIDFrom prefers the context value and falls back to the header.
func clientIDFrom(r *http.Request) string {
	if id := GetClientID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(ClientIDHeader)
}

func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}
