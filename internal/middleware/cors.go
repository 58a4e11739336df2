package middleware

import (
	"slices"
	"strings"

	"github.com/go-chi/cors"
)

const defaultFrontendOrigin = "http://localhost:3000"

// CORS returns cors.Options for the dashboard frontend. Only GET and POST
// are allowed since the API is read-only apart from login and logout.
// Origins are compared without a trailing slash. A "*" entry disables
// credentials, which browsers reject alongside a wildcard origin.
func CORS(allowedOrigins []string) cors.Options {
	origins := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" && !slices.Contains(origins, o) {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{defaultFrontendOrigin}
	}

	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	}
}
