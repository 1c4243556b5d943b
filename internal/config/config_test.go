package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYMENT_KEY_ID", "key_id")
	t.Setenv("PAYMENT_KEY_SECRET", "key_secret")
	t.Setenv("SHIPPING_EMAIL", "ops@example.com")
	t.Setenv("SHIPPING_PASSWORD", "pass")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()

	assert.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://api.razorpay.com", cfg.PaymentBaseURL)
	assert.Equal(t, "Primary", cfg.ShippingPickupLocation)
	assert.Equal(t, 24*time.Hour, cfg.TempOrderTTL)
	assert.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_InvalidTTL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TEMP_ORDER_TTL", "-1h")

	_, err := Load()

	assert.Error(t, err)
}

func TestDSN_FromDatabaseURL(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://u:p@db:5432/app"}
	assert.Equal(t, "postgres://u:p@db:5432/app", cfg.DSN())
}

func TestDSN_FromParts(t *testing.T) {
	cfg := Config{
		PostgresHost:     "db",
		PostgresPort:     5433,
		PostgresUser:     "app",
		PostgresPassword: "pw",
		PostgresDB:       "shop",
		PostgresSSLMode:  "require",
	}
	assert.Equal(t, "host=db port=5433 user=app password=pw dbname=shop sslmode=require", cfg.DSN())
}
