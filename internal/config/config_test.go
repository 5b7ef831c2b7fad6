package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("API_BASE_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api", cfg.App.BasePath)
	assert.Equal(t, DevJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, 3*time.Hour, cfg.Auth.RefreshTokenTTL())
	assert.Equal(t, "refresh", cfg.Auth.RefreshCookieName)
	assert.Equal(t, 86400, cfg.Auth.RefreshCookieMaxAgeSecond)
	assert.Equal(t, 3*time.Minute, cfg.Verification.CodeTTL())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cr3t")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "15")
	t.Setenv("AUTH_REFRESH_TOKEN_TTL_MINUTES", "1440")
	t.Setenv("API_BASE_PATH", "v1/")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/v1", cfg.App.BasePath)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, 24*time.Hour, cfg.Auth.RefreshTokenTTL())
	assert.Zero(t, cfg.App.RequestTimeout())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App: AppConfig{Env: "development"},
			Auth: AuthConfig{
				JWTSecret:              "key",
				AccessTokenTTLMinutes:  120,
				RefreshTokenTTLMinutes: 180,
				RefreshCookieName:      "refresh",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "blank secret", mutate: func(c *Config) { c.Auth.JWTSecret = "  " }, wantErr: "must not be empty"},
		{
			name: "dev secret in production",
			mutate: func(c *Config) {
				c.App.Env = "production"
				c.Auth.JWTSecret = DevJWTSecret
			},
			wantErr: "must be set in production",
		},
		{name: "zero access ttl", mutate: func(c *Config) { c.Auth.AccessTokenTTLMinutes = 0 }, wantErr: "ACCESS_TOKEN_TTL"},
		{name: "refresh not longer than access", mutate: func(c *Config) { c.Auth.RefreshTokenTTLMinutes = 120 }, wantErr: "must exceed"},
		{name: "no cookie name", mutate: func(c *Config) { c.Auth.RefreshCookieName = "" }, wantErr: "COOKIE_NAME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
