package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4/middleware"
)

// AllowedOrigins is the exact list of origins permitted to call the API.
var AllowedOrigins = []string{
	"http://localhost:3000",       // Development (storefront frontend)
	"http://localhost:5173",       // Development (vite dev server)
	"https://creatorstack.io",     // Production
	"https://www.creatorstack.io", // Production WWW
}

// AllowedMethods is the list of HTTP methods exposed cross-origin.
var AllowedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// AllowedHeaders is the list of request headers permitted cross-origin.
var AllowedHeaders = []string{
	"Origin",
	"Content-Type",
	"Accept",
	"Authorization",
}

// CORSConfig returns the CORS configuration used by the application.
// Centralised here so that both main.go and tests reference the same config.
func CORSConfig() middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowOrigins:     AllowedOrigins,
		AllowMethods:     AllowedMethods,
		AllowCredentials: true,
		AllowHeaders:     AllowedHeaders,
	}
}
