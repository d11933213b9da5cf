// Package validate holds request rules and text normalisation for handlers.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/5w1tchy/book-thrift/internal/api/apperr"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return val
}

type CreateListingRequest struct {
	Title         string   `form:"title" validate:"required,max=200"`
	Author        string   `form:"author" validate:"required,max=120"`
	Description   string   `form:"description" validate:"max=5000"`
	Price         float64  `form:"price" validate:"gte=0"`
	ContactNumber string   `form:"contact_number" validate:"omitempty,max=32"`
	Mode          string   `form:"mode" validate:"required,oneof=buy sell donate"`
	Latitude      *float64 `form:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude     *float64 `form:"longitude" validate:"required,gte=-180,lte=180"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	FullName string `json:"full_name" validate:"max=120"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Struct runs the validate tags on s and returns one FieldError per failing
// field. A nil result means s is valid.
func Struct(s any) []apperr.FieldError {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apperr.FieldError{{Field: "body", Code: "invalid", Message: err.Error()}}
	}
	out := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperr.FieldError{Field: fe.Field(), Code: fe.Tag(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return "is invalid"
	}
}

// Normalize trims s and converts it to Unicode NFC.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// NormalizeEmail lowercases a trimmed email.
func NormalizeEmail(s string) string {
	return strings.ToLower(Normalize(s))
}

// Optional returns nil for a blank string.
func Optional(s string) *string {
	s = Normalize(s)
	if s == "" {
		return nil
	}
	return &s
}
