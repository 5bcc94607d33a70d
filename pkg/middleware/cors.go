package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS guards the browser-facing admin API. Telephony webhooks and the
// media stream are server-to-server and never carry an Origin header,
// so only the methods the admin routes use are allowed.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return c.Handler
}
