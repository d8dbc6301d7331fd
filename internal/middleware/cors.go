package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows browser calls from the listed origins, with credentials so the
// session cookie is sent.
//
// ORIGIN RULES:
//   - no Origin header (curl, server-to-server, same-origin GET) → allowed
//   - Origin in allowed → allowed
//   - anything else, including every origin when allowed is empty → no CORS
//     headers, so the browser blocks the response
func CORS(allowed []string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}

	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			if origin == "" {
				return true
			}
			_, ok := set[origin]
			return ok
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
