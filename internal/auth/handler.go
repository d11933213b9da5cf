// Package auth serves account registration, login and token rotation.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/5w1tchy/book-thrift/internal/api/apperr"
	"github.com/5w1tchy/book-thrift/internal/api/httpx"
	"github.com/5w1tchy/book-thrift/internal/api/middlewares"
	"github.com/5w1tchy/book-thrift/internal/logging"
	"github.com/5w1tchy/book-thrift/internal/models"
	jwtutil "github.com/5w1tchy/book-thrift/internal/security/jwt"
	"github.com/5w1tchy/book-thrift/internal/security/password"
	"github.com/5w1tchy/book-thrift/internal/store/users"
	"github.com/5w1tchy/book-thrift/internal/validate"
)

type Handler struct {
	Users        UserStore
	Hasher       *password.Hasher
	Signer       *jwtutil.Signer
	RefreshStore RefreshTokens // nil disables refresh tokens
}

func New(store UserStore, hasher *password.Hasher, signer *jwtutil.Signer, refresh RefreshTokens) *Handler {
	return &Handler{Users: store, Hasher: hasher, Signer: signer, RefreshStore: refresh}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req validate.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ErrorCode(w, http.StatusBadRequest, "bad_request", "Invalid JSON")
		return
	}
	req.Email = validate.NormalizeEmail(req.Email)
	req.FullName = validate.Normalize(req.FullName)
	if errs := validate.Struct(req); errs != nil {
		apperr.Write(w, r, apperr.Problem{Status: http.StatusUnprocessableEntity, Title: "Validation failed", FieldErrors: errs})
		return
	}
	pwd, warn, err := password.Validate(req.Password, req.Email, req.FullName)
	if err != nil {
		httpx.ErrorCode(w, http.StatusBadRequest, "weak_password", err.Error())
		return
	}

	hash, err := h.Hasher.Hash(pwd)
	if err != nil {
		httpx.ErrorCode(w, http.StatusInternalServerError, "hash_error", "Failed to hash password")
		return
	}

	u, err := h.Users.Create(r.Context(), req.Email, req.FullName, hash)
	if errors.Is(err, users.ErrEmailTaken) {
		httpx.ErrorCode(w, http.StatusConflict, "email_taken", "Email already registered")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("create user")
		httpx.ErrorCode(w, http.StatusInternalServerError, "internal", "Cannot create user")
		return
	}

	pair, err := h.issue(r.Context(), u)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("issue tokens")
		httpx.ErrorCode(w, http.StatusInternalServerError, "token_error", "Failed to issue tokens")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, RegisterResponse{User: toUserResponse(u), TokenPair: pair, PasswordWarning: warn})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req validate.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ErrorCode(w, http.StatusBadRequest, "bad_request", "Invalid JSON")
		return
	}
	req.Email = validate.NormalizeEmail(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	if errs := validate.Struct(req); errs != nil {
		apperr.Write(w, r, apperr.Problem{Status: http.StatusUnprocessableEntity, Title: "Validation failed", FieldErrors: errs})
		return
	}

	u, err := h.Users.ByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			logging.Ctx(r.Context()).Error().Err(err).Msg("find user")
		}
		httpx.ErrorCode(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}
	ok, needsRehash, err := h.Hasher.Verify(req.Password, u.HashedPassword)
	if err != nil || !ok {
		httpx.ErrorCode(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}
	if needsRehash {
		h.rehash(r.Context(), u.ID, req.Password)
	}

	pair, err := h.issue(r.Context(), u)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("issue tokens")
		httpx.ErrorCode(w, http.StatusInternalServerError, "token_error", "Failed to issue tokens")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued if the user's token_version has not moved.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.RefreshStore == nil {
		httpx.ErrorCode(w, http.StatusNotImplemented, "refresh_disabled", "Refresh tokens are not enabled")
		return
	}
	var req RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		httpx.ErrorCode(w, http.StatusBadRequest, "bad_request", "Invalid JSON")
		return
	}

	ctx := r.Context()
	userID, tv, err := h.RefreshStore.Consume(ctx, req.RefreshToken)
	if err != nil {
		httpx.ErrorCode(w, http.StatusUnauthorized, "invalid_refresh", "Invalid refresh token")
		return
	}
	u, err := h.Users.ByID(ctx, userID)
	if err != nil || u.TokenVersion != tv {
		httpx.ErrorCode(w, http.StatusUnauthorized, "token_revoked", "Token has been revoked")
		return
	}

	pair, err := h.issue(ctx, u)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("issue tokens")
		httpx.ErrorCode(w, http.StatusInternalServerError, "token_error", "Failed to issue tokens")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// Logout invalidates a single refresh token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	_ = httpx.DecodeJSON(r, &req)
	if req.RefreshToken != "" && h.RefreshStore != nil {
		if err := h.RefreshStore.Revoke(r.Context(), req.RefreshToken); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("revoke refresh token")
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LogoutAll bumps token_version, revoking every token of the caller.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middlewares.UserIDFrom(r.Context())
	if !ok {
		httpx.ErrorCode(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	if _, err := h.Users.BumpTokenVersion(r.Context(), userID); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("bump token version")
		httpx.ErrorCode(w, http.StatusInternalServerError, "update_failed", "Failed to revoke tokens")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middlewares.UserIDFrom(r.Context())
	if !ok {
		httpx.ErrorCode(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	u, err := h.Users.ByID(r.Context(), userID)
	if err != nil {
		httpx.ErrorCode(w, http.StatusNotFound, "not_found", "User not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// rehash upgrades a stored hash to the current parameters. Failure only
// means the upgrade is retried on the next login.
func (h *Handler) rehash(ctx context.Context, userID int64, plain string) {
	phc, err := h.Hasher.Hash(plain)
	if err == nil {
		err = h.Users.UpdatePasswordHash(ctx, userID, phc)
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("password rehash")
	}
}

func (h *Handler) issue(ctx context.Context, u models.User) (TokenPair, error) {
	access, _, err := h.Signer.SignAccess(u.ID, u.TokenVersion)
	if err != nil {
		return TokenPair{}, err
	}
	pair := TokenPair{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int(h.Signer.AccessTTL().Seconds()),
	}
	if h.RefreshStore != nil {
		if pair.RefreshToken, err = h.RefreshStore.Issue(ctx, u.ID, u.TokenVersion); err != nil {
			return TokenPair{}, err
		}
	}
	return pair, nil
}
