// security.go - CORS and response hardening headers.
package server

import (
	"net/http"
	"strings"
)

const corsAllowMethods = "GET,HEAD,PUT,PATCH,POST,DELETE"

// corsMiddleware allows cross-origin use by the reader frontend. Preflight
// requests are answered directly with 204. An empty origin disables CORS
// headers entirely.
func corsMiddleware(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "no-referrer")

			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
					w.Header().Add("Vary", "Access-Control-Request-Headers")
				}
				w.Header().Set("Content-Length", "0")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			w.Header().Set("Access-Control-Expose-Headers", strings.Join([]string{"X-Request-Id", "Content-Length", "Content-Range"}, ", "))
			next.ServeHTTP(w, r)
		})
	}
}
