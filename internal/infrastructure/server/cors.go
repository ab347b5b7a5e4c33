package server

import (
	"net/http"

	connectcors "connectrpc.com/cors"
	"github.com/rs/cors"
)

// GetCorsOptions builds the CORS options shared by NewCORSHandler. It reuses
// connectrpc.com/cors' method/header allowlists even though this server
// speaks plain JSON, not Connect: browser clients issuing fetch() requests
// preflight the same way, and the allowlist already covers Authorization,
// tracing propagation headers, and the common verbs.
func GetCorsOptions(allowedOrigins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: connectcors.AllowedHeaders(),
		ExposedHeaders: connectcors.ExposedHeaders(),
	}
}

// NewCORSHandler wraps h with CORS handling for the configured allowed origins.
func NewCORSHandler(h http.Handler, allowedOrigins []string) http.Handler {
	return cors.New(GetCorsOptions(allowedOrigins)).Handler(h)
}
