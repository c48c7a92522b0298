package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const orgIDKey contextKey = "org_id"

// OrgResolver maps an ingestion API key to a tenant. Inactive tenants
// resolve with an error.
type OrgResolver interface {
	Resolve(ctx context.Context, apiKey string) (uuid.UUID, error)
}

// TenantAuth resolves the calling tenant from the X-Api-Key header and
// stores its organization id in the request context. Every route behind
// this middleware is tenant-scoped.
func TenantAuth(resolver OrgResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-Api-Key")
			if apiKey == "" {
				http.Error(w, `{"error":"X-Api-Key header required"}`, http.StatusUnauthorized)
				return
			}

			orgID, err := resolver.Resolve(r.Context(), apiKey)
			if err != nil {
				http.Error(w, `{"error":"invalid or inactive API key"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), orgIDKey, orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOrgID extracts the tenant id set by TenantAuth.
func GetOrgID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(orgIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
