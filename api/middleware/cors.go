package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware that allows the storefront origin plus local dev.
func CORS(siteURL string) func(http.Handler) http.Handler {
	origins := []string{
		"http://localhost:5173",
		"http://localhost:3000",
	}
	if siteURL != "" {
		origins = append(origins, siteURL)
	}

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
