package middlewares

import (
	"net/http"

	"github.com/go-chi/cors"
)

// Cors allows browser clients from origins. Preflight requests are answered
// without reaching the router.
func Cors(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Policy", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "X-Response-Time"},
		AllowCredentials: true,
		MaxAge:           3600,
	})
}
