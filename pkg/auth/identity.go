// Package auth extracts caller identity from gateway headers and enforces
// per-identity rate limits. The fronting gateway authenticates against the
// directory service; this engine trusts its X-User-ID / X-Tenant-ID headers.
package auth

import (
	"context"
	"net/http"

	"msgsync/pkg/utils"
)

type ctxKey int

const (
	userKey ctxKey = iota
	tenantKey
)

// UserFromContext returns the authenticated user id, or "".
func UserFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userKey).(string)
	return v
}

// TenantFromContext returns the caller's tenant id, or "".
func TenantFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tenantKey).(string)
	return v
}

// Middleware rejects requests without identity headers and attaches user and
// tenant to the request context. limits may be nil to disable rate limiting.
func Middleware(limits *LimiterPool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := r.Header.Get("X-User-ID")
			tenant := r.Header.Get("X-Tenant-ID")
			if user == "" || tenant == "" {
				utils.JSONError(w, http.StatusUnauthorized, "identity headers required")
				return
			}
			if limits != nil && !limits.Allow(tenant+"/"+user) {
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = context.WithValue(ctx, tenantKey, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
