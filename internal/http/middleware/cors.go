package middleware

import (
	"net/http"
)

// Header sets for a streaming API. Browser players send Range and read the
// range and length headers back, and cross-origin scripts only see response
// headers that are exposed explicitly.
const (
	corsAllowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders  = "Accept, Authorization, Content-Type, Range, X-Request-ID"
	corsExposeHeaders = "Accept-Ranges, Content-Length, Content-Range, X-Audarr-Version, X-Request-ID"
	corsMaxAge        = "86400"
)

// CORS returns a middleware admitting cross-origin requests from the given
// origins. An empty list, or a list containing "*", admits every origin.
// Preflight requests are answered here and never reach a handler.
func CORS(origins []string) func(http.Handler) http.Handler {
	wildcard := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				switch {
				case wildcard:
					w.Header().Set("Access-Control-Allow-Origin", "*")
					w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
				case allowed[origin]:
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
					w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
				}
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
				w.Header().Set("Access-Control-Max-Age", corsMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
