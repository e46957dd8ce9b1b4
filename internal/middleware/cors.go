package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/vidshare/service/internal/response"
)

// OriginPolicy is an immutable allow-list of browser origins.
type OriginPolicy struct {
	allowed map[string]struct{}
}

// NewOriginPolicy builds a policy from exact origin strings.
func NewOriginPolicy(origins []string) *OriginPolicy {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &OriginPolicy{allowed: allowed}
}

// IsAllowedOrigin reports whether a request carrying origin may proceed.
// Requests without an Origin header (same-origin, curl, server-to-server) are allowed.
func (p *OriginPolicy) IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

// CORS rejects requests from origins outside the policy before they reach the
// router, and decorates allowed ones with credentialed CORS headers.
func CORS(policy *OriginPolicy) func(http.Handler) http.Handler {
	headers := cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return policy.IsAllowedOrigin(origin)
		},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Access-Control-Allow-Origin"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return func(next http.Handler) http.Handler {
		decorated := headers(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if !policy.IsAllowedOrigin(origin) {
				log.Warn().Str("origin", origin).Str("path", r.URL.Path).Msg("cors: origin rejected")
				response.Forbidden(w, "Not allowed by CORS")
				return
			}
			decorated.ServeHTTP(w, r)
		})
	}
}
