package middleware

import (
	"net/http"
	"strconv"
	"strings"

	sharedutils "github.com/itops-console/console-backend/shared/utils"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig reads allowed origins from CORS_ALLOWED_ORIGINS, a
// comma separated list
func DefaultCORSConfig() CORSConfig {
	origins := strings.Split(sharedutils.GetEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173"), ",")
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed = append(allowed, origin)
		}
	}

	return CORSConfig{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}

// CORSMiddleware sets CORS headers for allowed origins and answers preflight requests
func CORSMiddleware(config CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			match := matchOrigin(origin, config.AllowedOrigins)
			if origin != "" && match != originDenied {
				if match == originWildcard {
					// Credentials are never shared with a wildcard origin
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
					if config.AllowCredentials {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
					}
				}
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				if config.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type originMatch int

const (
	originDenied originMatch = iota
	originExact
	originWildcard
)

// matchOrigin prefers an exact entry over a "*" entry
func matchOrigin(origin string, allowed []string) originMatch {
	match := originDenied
	for _, o := range allowed {
		switch o {
		case origin:
			return originExact
		case "*":
			match = originWildcard
		}
	}
	return match
}
