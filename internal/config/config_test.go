package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("OAUTH_EXCHANGE_MODE", "")

	cfg := config.Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, config.ExchangeEdge, cfg.OAuthExchangeMode)
	assert.Equal(t, 10*time.Minute, cfg.OAuthStateTTL)
	assert.Equal(t, "openid profile aws.cognito.signin.user.admin", cfg.ContaAzulScope)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TOKEN_REFRESH_WINDOW", "30m")
	t.Setenv("TOKEN_REFRESH_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SUPABASE_URL", "https://xyz.supabase.co/")

	cfg := config.Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.TokenRefreshWindow)
	assert.False(t, cfg.TokenRefreshEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "https://xyz.supabase.co", cfg.SupabaseURL)
}

func TestValidate_ReportsMissing(t *testing.T) {
	cfg := &config.Config{OAuthExchangeMode: config.ExchangeDirect}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_URL is required")
	assert.Contains(t, err.Error(), "CONTAAZUL_CLIENT_SECRET is required")
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BFA_TEST_A=from-file\nBFA_TEST_B=\"quoted\"\n"), 0o600))
	t.Setenv("BFA_TEST_A", "from-env")
	t.Setenv("BFA_TEST_B", "")
	os.Unsetenv("BFA_TEST_B")

	require.NoError(t, config.LoadDotEnv(path))

	assert.Equal(t, "from-env", os.Getenv("BFA_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("BFA_TEST_B"))
}
