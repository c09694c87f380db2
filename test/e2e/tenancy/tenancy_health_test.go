package tenancy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridianhq/tenancy/pkg/tenancysdk"
)

// TestHealthEndpoints verifies the liveness and readiness probes respond
// once the container reports healthy.
func TestHealthEndpoints(t *testing.T) {
	baseURL, cleanup := setupTenancyContainer(t)
	defer cleanup()

	client := tenancysdk.NewClient(baseURL)

	require.NoError(t, client.Livez(t.Context()), "livez should report healthy")
	require.NoError(t, client.Readyz(t.Context()), "readyz should report healthy")
}
