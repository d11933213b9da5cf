package apperr

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var constraintField = map[string]string{
	"users_email_key":      "email",
	"books_seller_id_fkey": "seller_id",
	"books_mode_check":     "mode",
	"books_price_check":    "price",
	"books_coords_check":   "latitude",
}

// fieldFromDetail guesses the column from a PG error detail such as
// "Key (email)=(a@b.c) already exists."
func fieldFromDetail(detail string) string {
	for _, k := range []string{"email", "seller_id", "mode", "price", "latitude", "longitude", "title", "author", "id"} {
		if strings.Contains(detail, "("+k+")") {
			return k
		}
	}
	return ""
}

func fieldFromConstraint(c string) string {
	if f, ok := constraintField[c]; ok {
		return f
	}
	return ""
}

type pgRule struct {
	status int
	title  string
	code   string // FieldError code; empty for non-field errors
	msg    string
	field  string // used when nothing better is known
}

var sqlstateRules = map[string]pgRule{
	"23505": {http.StatusConflict, "Conflict", "unique", "value already exists", "resource"},
	"23503": {http.StatusConflict, "Conflict", "fk", "referenced record does not exist", "resource"},
	"23502": {http.StatusBadRequest, "Bad Request", "not_null", "required field is missing", "field"},
	"23514": {http.StatusUnprocessableEntity, "Unprocessable Entity", "check", "constraint failed", "field"},
	"22P02": {http.StatusBadRequest, "Bad Request", "invalid", "invalid format", "id"},
	"22001": {http.StatusBadRequest, "Bad Request", "too_long", "value is too long", "field"},
	"40001": {http.StatusConflict, "Conflict", "", "transaction conflict, please retry", ""},
	"40P01": {http.StatusConflict, "Conflict", "", "deadlock detected, please retry", ""},
}

// FromPG maps a pgconn.PgError to a Problem. Returns (Problem, true) if mapped.
// Unknown SQLSTATEs become a bare 500 without the server message.
func FromPG(err error) (Problem, bool) {
	var pg *pgconn.PgError
	if !errors.As(err, &pg) {
		return Problem{}, false
	}

	rule, ok := sqlstateRules[pg.Code]
	if !ok {
		return Problem{Status: http.StatusInternalServerError, Title: "Database error"}, true
	}
	p := Problem{Status: rule.status, Title: rule.title}
	if rule.code == "" {
		p.Detail = rule.msg
		p.Retryable = true
		return p, true
	}

	field := fieldFromConstraint(pg.ConstraintName)
	if field == "" && pg.Detail != "" {
		field = fieldFromDetail(pg.Detail)
	}
	if field == "" && pg.ColumnName != "" {
		field = pg.ColumnName
	}
	if field == "" {
		field = rule.field
	}
	p.FieldErrors = []FieldError{{Field: field, Code: rule.code, Message: rule.msg}}
	return p, true
}

// HandleDBError maps err to a Problem and writes it. Returns true if handled.
func HandleDBError(w http.ResponseWriter, r *http.Request, err error, fallbackTitle string) bool {
	if err == nil {
		return false
	}
	if p, ok := FromPG(err); ok {
		Write(w, r, p)
		return true
	}
	Write(w, r, Problem{Status: 500, Title: fallbackTitle})
	return true
}
