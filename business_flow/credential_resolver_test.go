package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/sms-gateway-bridge/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialResolver_Resolve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	configured := env.configuredAccount(t, "acme", "device-1")
	bare := env.unconfiguredAccount(t, "bare")

	t.Run("configured account", func(t *testing.T) {
		creds, err := env.resolver.Resolve(ctx, configured.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://gw.example.com/3rdparty/v1", creds.BaseURL)
		assert.Equal(t, "device-1", creds.Username)
		assert.Equal(t, testGatewayPassword, creds.Password)

		again, err := env.resolver.Resolve(ctx, configured.ID)
		require.NoError(t, err)
		assert.Equal(t, creds, again)
	})

	t.Run("unconfigured account", func(t *testing.T) {
		_, err := env.resolver.Resolve(ctx, bare.ID)
		assert.True(t, IsGatewayNotConfigured(err))

		ok, err := env.resolver.IsConfigured(ctx, bare.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := env.resolver.Resolve(ctx, 9999)
		assert.True(t, IsAccountNotFound(err))
	})

	t.Run("partially configured account", func(t *testing.T) {
		require.NoError(t, env.accountRepo.UpdateGatewayCredentials(ctx, bare.ID, utils.ToPtr("https://gw"), utils.ToPtr("u"), nil))
		_, err := env.resolver.Resolve(ctx, bare.ID)
		assert.True(t, IsGatewayNotConfigured(err))
	})

	t.Run("undecryptable password", func(t *testing.T) {
		broken := env.unconfiguredAccount(t, "broken")
		require.NoError(t, env.accountRepo.UpdateGatewayCredentials(ctx, broken.ID, utils.ToPtr("https://gw"), utils.ToPtr("u"), utils.ToPtr("not-an-envelope")))

		_, err := env.resolver.Resolve(ctx, broken.ID)
		assert.True(t, IsCredentialDecryptionFailed(err))
		assert.NotContains(t, err.Error(), "not-an-envelope")
	})
}
