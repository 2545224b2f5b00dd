package anonapi_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/carshare-anon/anonapi"
)

func TestConfig_SaveAndLoad(t *testing.T) {
	refreshes := 3
	strip := false
	cfg := &anonapi.Config{
		IdentityURL: "https://identity.example.com/token",
		ClientID:    "anon-client",
		APIKey:      "api-key",
		BaseURL:     "https://api.example.com/apiv5",
		UserAgent:   "carshare-test/1.0",
		Position:    &anonapi.Position{Lat: 49.26, Lon: -123.07},
		Quirks: anonapi.QuirksConfig{
			RefreshesBeforeFirstCall: &refreshes,
			StripEmptyArrayPrefix:    &strip,
		},
	}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, anonapi.SaveConfig(cfg, path))

	loaded, err := anonapi.GetConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	assert.Equal(t, anonapi.RefreshPlan{BeforeFirstCall: 3, BeforeVehicles: 0}, loaded.Quirks.RefreshPlan())
	assert.IsType(t, anonapi.NopNormalizer{}, loaded.Quirks.Normalizer())
	assert.Equal(t, anonapi.Position{Lat: 49.26, Lon: -123.07}, loaded.ReferencePosition())
}

func TestConfig_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client_id: anon-client\n"), 0o600))

	cfg, err := anonapi.GetConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, anonapi.DefaultRefreshPlan, cfg.Quirks.RefreshPlan())
	assert.IsType(t, anonapi.EmptyArrayPrefix{}, cfg.Quirks.Normalizer())
	assert.Equal(t, anonapi.DefaultPosition, cfg.ReferencePosition())

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity_url is not set")
	assert.Contains(t, err.Error(), "client_secret is not set")
	assert.NotContains(t, err.Error(), "client_id is not set")
}

func TestConfig_Credentials(t *testing.T) {
	cfg := &anonapi.Config{
		IdentityURL:  "https://identity.example.com/token",
		ClientID:     "anon-client",
		ClientSecret: "anon-secret",
		APIKey:       "api-key",
		BaseURL:      "https://api.example.com",
		UserAgent:    "carshare-test/1.0",
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, anonapi.Credentials{
		IdentityURL:  "https://identity.example.com/token",
		ClientID:     "anon-client",
		ClientSecret: "anon-secret",
		APIKey:       "api-key",
		BaseURL:      "https://api.example.com",
		UserAgent:    "carshare-test/1.0",
	}, cfg.Credentials())

	c, err := anonapi.NewFromConfig(cfg)
	require.NoError(t, err)
	assert.NotNil(t, c.Tokens())
}

func TestConfig_ResolveSecret(t *testing.T) {
	kr := keyring.NewArrayKeyring(nil)
	require.NoError(t, anonapi.StoreSecret(kr, "from-keyring"))

	cfg := &anonapi.Config{}
	require.NoError(t, cfg.ResolveSecret(kr))
	assert.Equal(t, "from-keyring", cfg.ClientSecret)

	cfg = &anonapi.Config{ClientSecret: "from-file"}
	require.NoError(t, cfg.ResolveSecret(kr))
	assert.Equal(t, "from-file", cfg.ClientSecret)

	cfg = &anonapi.Config{}
	assert.Error(t, cfg.ResolveSecret(keyring.NewArrayKeyring(nil)))
}
