package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB", "file::memory:")
	t.Setenv("SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("ZARINPAL_SANDBOX", "")
	t.Setenv("ZARINPAL_BASE_URL", "")
	t.Setenv("ZARINPAL_STARTPAY_URL", "")
	t.Setenv("GATEWAY_TIMEOUT", "")
	t.Setenv("CORS_ALLOW_ORIGINS", "")

	cfg := Load()

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, zarinpalBaseURL, cfg.GatewayBaseURL)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 24*time.Hour, cfg.PendingTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadSandbox(t *testing.T) {
	t.Setenv("ZARINPAL_SANDBOX", "true")
	t.Setenv("ZARINPAL_BASE_URL", "")
	t.Setenv("ZARINPAL_STARTPAY_URL", "")

	cfg := Load()

	assert.True(t, cfg.Sandbox)
	assert.Equal(t, zarinpalSandboxBaseURL, cfg.GatewayBaseURL)
	assert.Equal(t, zarinpalSandboxBaseURL, cfg.StartPayURL)
}

func TestValidate(t *testing.T) {
	cfg := Config{DBDriver: "oracle", GatewayTimeout: time.Second}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DB_DRIVER")
	assert.Contains(t, err.Error(), "DB is not set")
	assert.Contains(t, err.Error(), "SECRET is not set")
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"https://a.ir", "https://b.ir"}, splitCSV(" https://a.ir, ,https://b.ir "))
	assert.Equal(t, []string{"*"}, splitCSV(" , "))
}
