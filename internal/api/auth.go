package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/everafter-app/server/internal/concierge/model"
	logx "github.com/everafter-app/server/pkg/logger"
)

type contextKey string

const tenantContextKey contextKey = "tenant"

// TenantAuth resolves the bearer token to a tenant and stores it on the
// request context. Missing or unknown tokens get a 401.
func TenantAuth(tenants model.TenantRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token", "")
				return
			}

			tenant, err := tenants.TenantByToken(r.Context(), auth[len(prefix):])
			if errors.Is(err, model.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token", "")
				return
			}
			if err != nil {
				logx.Error().Err(err).Msg("tenant lookup failed")
				writeError(w, http.StatusInternalServerError, "internal server error", "")
				return
			}

			ctx := context.WithValue(r.Context(), tenantContextKey, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tenantFrom returns the authenticated tenant placed by TenantAuth.
func tenantFrom(ctx context.Context) (*model.Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey).(*model.Tenant)
	return t, ok
}
