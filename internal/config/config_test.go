package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

const strongSecret = "this-is-a-very-secure-secret-key-for-production-1234"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "paystack", cfg.PaymentGateway)
	assert.Equal(t, 24*time.Hour, cfg.FlowTTL())
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestLoad_Development_AcceptsDefaultSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":     "development",
		"PAYMENT_GATEWAY": "mock",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.PaymentGateway)
}

func TestLoad_Production_RejectsDefaultSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":         "production",
		"PAYSTACK_SECRET_KEY": "sk_live_abc",
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be explicitly set")
}

func TestLoad_Production_RejectsShortSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":         "production",
		"JWT_SECRET":          "too-short",
		"PAYSTACK_SECRET_KEY": "sk_live_abc",
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestLoad_Production_RejectsMockGateway(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":         "production",
		"JWT_SECRET":          strongSecret,
		"PAYMENT_GATEWAY":     "mock",
		"PAYSTACK_SECRET_KEY": "sk_live_abc",
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock payment gateway")
}

func TestLoad_Production_RequiresPaystackSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT": "production",
		"JWT_SECRET":  strongSecret,
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYSTACK_SECRET_KEY")
}

func TestLoad_Production_AcceptsFullConfig(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":         "production",
		"JWT_SECRET":          strongSecret,
		"PAYSTACK_SECRET_KEY": "sk_live_abc",
		"PAYSTACK_PUBLIC_KEY": "pk_live_abc",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "sk_live_abc", cfg.PaystackSecretKey)
}

func TestLoad_RejectsUnknownGateway(t *testing.T) {
	setEnvs(t, map[string]string{
		"PAYMENT_GATEWAY": "stripe",
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown payment gateway")
}

func TestLoad_RejectsInvalidPort(t *testing.T) {
	setEnvs(t, map[string]string{
		"HTTP_PORT": "70000",
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}
