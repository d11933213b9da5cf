package models

import (
	"strings"
	"time"
)

type User struct {
	ID             int64
	Email          string
	FullName       string
	HashedPassword string
	TokenVersion   int
	CreatedAt      time.Time
}

// Seller is the slice of a user joined onto a book row.
type Seller struct {
	ID       int64
	Email    string
	FullName string
}

// DisplayName is the full name, or the part of the email before '@'.
func (s Seller) DisplayName() string {
	if s.FullName != "" {
		return s.FullName
	}
	if i := strings.IndexByte(s.Email, '@'); i >= 0 {
		return s.Email[:i]
	}
	return s.Email
}
