package auth

import (
	"context"
	"time"

	"github.com/5w1tchy/book-thrift/internal/models"
	"github.com/5w1tchy/book-thrift/internal/security/password"
)

// UserStore is implemented by store/users.Store.
type UserStore interface {
	Create(ctx context.Context, email, fullName, hash string) (models.User, error)
	ByEmail(ctx context.Context, email string) (models.User, error)
	ByID(ctx context.Context, id int64) (models.User, error)
	TokenVersion(ctx context.Context, id int64) (int, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	BumpTokenVersion(ctx context.Context, id int64) (int, error)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterResponse struct {
	User UserResponse `json:"user"`
	TokenPair
	PasswordWarning *password.Warning `json:"password_warning,omitempty"`
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, FullName: u.FullName, CreatedAt: u.CreatedAt}
}
