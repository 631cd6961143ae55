package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "SMTP_PORT", "PASSWORD_RESET_TTL_MIN", "EMAIL_TIMEOUT_SEC", "SITEURL", "ALLOWED_ORIGINS", "SMTP_FROM", "SMTP_USER"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, time.Hour, cfg.PasswordResetTTL)
	assert.Equal(t, 10*time.Second, cfg.EmailTimeout)
	assert.Equal(t, "http://localhost:5173", cfg.SiteURL)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("SMTP_SECURE", "true")
	t.Setenv("SMTP_USER", "mailer@ats.example.com")
	t.Setenv("SMTP_FROM", "")
	t.Setenv("SITEURL", "https://ats.example.com/")
	t.Setenv("ALLOWED_ORIGINS", "https://ats.example.com/, http://localhost:5173 ,")
	t.Setenv("PASSWORD_RESET_COOLDOWN_SEC", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 465, cfg.SMTPPort)
	assert.True(t, cfg.SMTPSecure)
	assert.Equal(t, "mailer@ats.example.com", cfg.SMTPFrom)
	assert.Equal(t, "https://ats.example.com", cfg.SiteURL)
	assert.Equal(t, []string{"https://ats.example.com", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Zero(t, cfg.PasswordResetCooldown)
}

func TestLoadConfig_BadNumber(t *testing.T) {
	t.Setenv("EMAIL_TIMEOUT_SEC", "ten")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "EMAIL_TIMEOUT_SEC")
}

func TestValidate(t *testing.T) {
	cfg := &Config{PasswordResetTTL: time.Hour}
	_, err := cfg.Validate()
	assert.Error(t, err)

	cfg = &Config{DbHost: "db", DbUser: "ats", DbName: "ats", PasswordResetTTL: time.Hour, PasswordResetDailyLimit: 5}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Contains(t, warnings, "SMTP is not fully configured")

	assert.Equal(t, "postgres://ats:***@db:/ats?sslmode=", cfg.GetDSNSafe())
}
