package connectors

import (
	"context"
	"sync"

	"github.com/wardlabs/ward/telemetry"
	"github.com/wardlabs/ward/types"
)

// StaticConnector serves fixture data. Used in tests and demo runs where no
// real identity provider is wired up.
type StaticConnector struct {
	name   string
	apps   []types.DiscoveredApp
	grants []types.UserAccessGrant
	tokens []types.OAuthToken
}

// NewStaticConnector creates a connector returning fixed data.
func NewStaticConnector(name string, apps []types.DiscoveredApp, grants []types.UserAccessGrant, tokens []types.OAuthToken) *StaticConnector {
	return &StaticConnector{name: name, apps: apps, grants: grants, tokens: tokens}
}

func (c *StaticConnector) Name() string { return c.name }

func (c *StaticConnector) DiscoverApps(ctx context.Context, tenantID string) ([]types.DiscoveredApp, error) {
	return append([]types.DiscoveredApp(nil), c.apps...), nil
}

func (c *StaticConnector) DiscoverUserAccess(ctx context.Context, tenantID string) ([]types.UserAccessGrant, error) {
	return append([]types.UserAccessGrant(nil), c.grants...), nil
}

func (c *StaticConnector) DiscoverOAuthTokens(ctx context.Context, tenantID string) ([]types.OAuthToken, error) {
	return append([]types.OAuthToken(nil), c.tokens...), nil
}

// LoggingRevoker records revocation calls without touching any provider.
// Safe default for dry runs; also doubles as a test double.
type LoggingRevoker struct {
	mu     sync.Mutex
	logger *telemetry.Logger
	calls  []RevocationCall
}

// RevocationCall is one recorded revocation.
type RevocationCall struct {
	UserID   string
	AppID    string
	TenantID string
}

// NewLoggingRevoker creates a revoker that only logs.
func NewLoggingRevoker() *LoggingRevoker {
	return &LoggingRevoker{logger: telemetry.NewLogger("revoker")}
}

func (r *LoggingRevoker) RevokeUserAppAccess(ctx context.Context, userID, appID, tenantID string) error {
	r.mu.Lock()
	r.calls = append(r.calls, RevocationCall{UserID: userID, AppID: appID, TenantID: tenantID})
	r.mu.Unlock()

	r.logger.WithContext(ctx).Info().
		Str("user_id", userID).
		Str("app_id", appID).
		Str("tenant_id", tenantID).
		Msg("access revocation requested")
	return nil
}

// Calls returns the recorded revocations.
func (r *LoggingRevoker) Calls() []RevocationCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RevocationCall(nil), r.calls...)
}
