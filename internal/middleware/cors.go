package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// CORS returns a middleware that answers preflights and stamps CORS headers
// for the configured origins. Credentials are allowed so the session cookie
// travels with cross-origin requests from a trusted frontend.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	maxAge := config.MaxAge
	if maxAge == 0 {
		maxAge = 3600
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           maxAge,
	})
	return c.Handler
}
