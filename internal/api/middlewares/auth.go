package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/5w1tchy/book-thrift/internal/api/apperr"
	jwtutil "github.com/5w1tchy/book-thrift/internal/security/jwt"
)

type TokenParser interface {
	ParseAccess(token string) (*jwtutil.AccessClaims, error)
}

// TokenVersions reports a user's current token_version. Tokens carrying an
// older version have been revoked.
type TokenVersions interface {
	TokenVersion(ctx context.Context, userID int64) (int, error)
}

// RequireAuth verifies the Bearer JWT, checks its token_version against the
// store, then injects the user id into the context.
func RequireAuth(tokens TokenParser, versions TokenVersions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := authenticate(r, tokens, versions)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="book-thrift"`)
				apperr.WriteStatus(w, r, http.StatusUnauthorized, "Unauthorized", err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth attaches the user id if a valid Bearer is present; otherwise
// the request continues as a guest.
func OptionalAuth(tokens TokenParser, versions TokenVersions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			if userID, err := authenticate(r, tokens, versions); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(r *http.Request, tokens TokenParser, versions TokenVersions) (int64, error) {
	raw := r.Header.Get("Authorization")
	if raw == "" {
		return 0, errors.New("missing Authorization header")
	}
	tokenStr, err := bearer(raw)
	if err != nil {
		return 0, errors.New("invalid Authorization header")
	}
	claims, err := tokens.ParseAccess(tokenStr)
	if err != nil {
		return 0, errors.New("invalid token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return 0, errors.New("invalid token")
	}
	tv, err := versions.TokenVersion(r.Context(), userID)
	if err != nil {
		return 0, errors.New("user not found")
	}
	if claims.TokenVersion != tv {
		return 0, errors.New("token revoked")
	}
	return userID, nil
}

func bearer(h string) (string, error) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", errors.New("no bearer")
	}
	return strings.TrimSpace(h[len(prefix):]), nil
}
