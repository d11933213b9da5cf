package middlewares

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Compression gzips JSON responses for clients that accept it.
func Compression() func(http.Handler) http.Handler {
	return chimiddleware.Compress(5, "application/json", "application/problem+json")
}
