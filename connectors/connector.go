// Package connectors defines the normalized identity-provider interface.
// Every connector returns the same shapes regardless of the underlying
// provider; the core never branches on provider type except when delegating
// a revocation call.
package connectors

import (
	"context"
	"fmt"
	"sync"

	"github.com/wardlabs/ward/types"
)

// Connector discovers applications, user access and OAuth tokens for a
// tenant from one identity provider.
type Connector interface {
	Name() string
	DiscoverApps(ctx context.Context, tenantID string) ([]types.DiscoveredApp, error)
	DiscoverUserAccess(ctx context.Context, tenantID string) ([]types.UserAccessGrant, error)
	DiscoverOAuthTokens(ctx context.Context, tenantID string) ([]types.OAuthToken, error)
}

// Revoker removes a user's access to an application. Implementations must be
// idempotent: revoking already-revoked access succeeds.
type Revoker interface {
	RevokeUserAppAccess(ctx context.Context, userID, appID, tenantID string) error
}

// Config holds connector credentials and endpoints.
type Config struct {
	TenantDomain string
	ClientID     string
	ClientSecret string
	APIEndpoint  string
}

// Factory creates a connector instance.
type Factory func(config Config) (Connector, error)

// Registry holds the available connector factories. Owned by application
// startup and passed where needed; no package-level globals.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a connector factory under a name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get creates a connector instance by name.
func (r *Registry) Get(name string, config Config) (Connector, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("connector %s not found", name)
	}
	return factory(config)
}

// Names returns the registered connector names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
