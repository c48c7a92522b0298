package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/google/uuid"
)

// StaticResolver maps API keys to organizations from configuration. It
// covers single-tenant and small fixed-tenant deployments; a database
// backed resolver can replace it behind the same interface.
type StaticResolver struct {
	keys map[string]uuid.UUID
}

// NewStaticResolver builds a resolver from a key-to-org map.
func NewStaticResolver(keys map[string]uuid.UUID) *StaticResolver {
	return &StaticResolver{keys: keys}
}

// Resolve looks up the tenant for an API key using constant-time
// comparison per candidate key.
func (r *StaticResolver) Resolve(_ context.Context, apiKey string) (uuid.UUID, error) {
	for key, orgID := range r.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return orgID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("unknown API key")
}
