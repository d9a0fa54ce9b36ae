package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "REDIS_URL", "REDIS_URI", "REDIS_ADDR", "ACCESS_TOKEN_TTL", "MAX_CVS_PER_USER", "UNVERIFIED_ACCOUNT_TTL", "FRONTEND_URL"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 20, cfg.MaxCVsPerUser)
	assert.Equal(t, 72*time.Hour, cfg.UnverifiedAccountTTL)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
	assert.Empty(t, cfg.RedisURL)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_URI", "")
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("UNVERIFIED_ACCOUNT_TTL", "3600")
	t.Setenv("MAX_CVS_PER_USER", "abc")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")
	t.Setenv("AUTO_MIGRATE", "false")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "localhost:6380", cfg.RedisURL)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, time.Hour, cfg.UnverifiedAccountTTL)
	assert.Equal(t, 20, cfg.MaxCVsPerUser, "unparsable ints fall back to default")
	assert.Equal(t, "https://app.example.com", cfg.FrontendURL)
	assert.False(t, cfg.AutoMigrate)
}

func TestGoogleOAuthEnabled(t *testing.T) {
	cfg := &Config{GoogleClientID: "id", GoogleClientSecret: "secret"}
	assert.False(t, cfg.GoogleOAuthEnabled())
	cfg.GoogleRedirectURL = "http://localhost/cb"
	assert.True(t, cfg.GoogleOAuthEnabled())
}
