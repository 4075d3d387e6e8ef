package connectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardlabs/ward/types"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register("static", func(config Config) (Connector, error) {
		return NewStaticConnector("static", nil, nil, nil), nil
	})

	conn, err := registry.Get("static", Config{})
	require.NoError(t, err)
	assert.Equal(t, "static", conn.Name())

	_, err = registry.Get("okta", Config{})
	assert.Error(t, err)

	assert.Equal(t, []string{"static"}, registry.Names())
}

func TestStaticConnector(t *testing.T) {
	apps := []types.DiscoveredApp{{Name: "Slack", Source: "static"}}
	conn := NewStaticConnector("static", apps, nil, nil)

	got, err := conn.DiscoverApps(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Slack", got[0].Name)

	// Returned slice is a copy
	got[0].Name = "mutated"
	again, err := conn.DiscoverApps(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Slack", again[0].Name)
}

func TestLoggingRevoker(t *testing.T) {
	revoker := NewLoggingRevoker()

	err := revoker.RevokeUserAppAccess(context.Background(), "u1", "app-1", "t1")
	require.NoError(t, err)

	calls := revoker.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, RevocationCall{UserID: "u1", AppID: "app-1", TenantID: "t1"}, calls[0])
}
