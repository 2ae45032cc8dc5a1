package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 168, cfg.Invitation.TTLHours)
	assert.Equal(t, 7*24*time.Hour, cfg.Invitation.TTL())
	assert.Equal(t, "0 * * * *", cfg.Invitation.SweepCron)
	assert.Equal(t, "memory", cfg.Storage.Provider)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INVITATION_TTL_HOURS", "48")
	t.Setenv("INVITATION_SWEEP_CRON", "")
	t.Setenv("STORAGE_PROVIDER", "s3")
	t.Setenv("STORAGE_BUCKET", "equip-uploads")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.Invitation.TTL())
	assert.Empty(t, cfg.Invitation.SweepCron)
	assert.Equal(t, "equip-uploads", cfg.Storage.Bucket)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Invitation: InvitationConfig{TTLHours: 1},
			Storage:    StorageConfig{Provider: "memory"},
			RateLimit:  RateLimitConfig{Backend: "memory"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero ttl", func(c *Config) { c.Invitation.TTLHours = 0 }, true},
		{"bad cron", func(c *Config) { c.Invitation.SweepCron = "every hour" }, true},
		{"good cron", func(c *Config) { c.Invitation.SweepCron = "*/15 * * * *" }, false},
		{"s3 without bucket", func(c *Config) { c.Storage.Provider = "s3" }, true},
		{"gcs with bucket", func(c *Config) { c.Storage.Provider = "gcs"; c.Storage.Bucket = "b" }, false},
		{"unknown provider", func(c *Config) { c.Storage.Provider = "ftp" }, true},
		{"unknown limiter", func(c *Config) { c.RateLimit.Backend = "memcached" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
