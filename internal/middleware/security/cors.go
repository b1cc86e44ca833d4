package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists the browser origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         10 * time.Minute,
	}
}

type CORS struct {
	config  CORSConfig
	origins map[string]bool
	any     bool
}

func NewCORS(config CORSConfig) *CORS {
	c := &CORS{config: config, origins: make(map[string]bool, len(config.AllowedOrigins))}
	for _, o := range config.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			c.any = true
			continue
		}
		if o != "" {
			c.origins[strings.ToLower(o)] = true
		}
	}
	return c
}

// Allowed reports whether origin may read responses.
func (c *CORS) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	return c.any || c.origins[strings.ToLower(origin)]
}

// Middleware answers preflight requests itself and decorates the rest.
// Requests from unknown origins are served without CORS headers so the
// browser blocks them.
func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		h := w.Header()
		h.Add("Vary", "Origin")

		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
		if !c.Allowed(origin) {
			if preflight {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		if len(c.config.ExposedHeaders) > 0 {
			h.Set("Access-Control-Expose-Headers", strings.Join(c.config.ExposedHeaders, ", "))
		}

		if preflight {
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			h.Set("Access-Control-Allow-Methods", strings.Join(c.config.AllowedMethods, ", "))
			h.Set("Access-Control-Allow-Headers", strings.Join(c.config.AllowedHeaders, ", "))
			if c.config.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(int(c.config.MaxAge.Seconds())))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
