package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "$argon2id$v=19$m=32768,t=2,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "file", cfg.WordListBackend)
	assert.Equal(t, 30*time.Second, cfg.DuplicateWindow)
	assert.Equal(t, 3*time.Second, cfg.LangDetectTimeout)
	assert.InDelta(t, 0.5, cfg.LangDetectMinConfidence, 1e-9)
	assert.Equal(t, "log", cfg.MailSender)
	assert.False(t, cfg.ReverifyOnReactivate)
	assert.Empty(t, cfg.AdminTokens)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
}

func TestLoadRejectsConfidenceOutOfRange(t *testing.T) {
	t.Setenv("LANGDETECT_MIN_CONFIDENCE", "1.5")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadSMTPRequiresHostAndFrom(t *testing.T) {
	t.Setenv("MAIL_SENDER", "smtp")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("SMTP_HOST", "mail.example.test")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAIL_FROM")

	t.Setenv("MAIL_FROM", "noreply@county.example")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mail.example.test", cfg.SMTPHost)
}

func TestLoadRedisRequiresAddr(t *testing.T) {
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadAdminTokens(t *testing.T) {
	t.Setenv("ADMIN_TOKENS", "7="+testHash+"; 9="+testHash)
	t.Setenv("SUPER_ADMIN_IDS", "7")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.AdminTokens, 2)
	assert.Equal(t, testHash, cfg.AdminTokens[7])
	assert.True(t, cfg.IsSuperAdmin(7))
	assert.False(t, cfg.IsSuperAdmin(9))
}

func TestLoadRejectsMalformedAdminToken(t *testing.T) {
	for _, v := range []string{"7", "x=" + testHash, "7=plaintext"} {
		t.Setenv("ADMIN_TOKENS", v)
		_, err := Load()
		require.Error(t, err, "value %q", v)
	}
}

func TestLoadYAMLFileOverriddenByEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.yaml")
	body := "public_base_url: https://projects.county.example/\nduplicate_window_sec: 45\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://projects.county.example", cfg.PublicBaseURL)
	assert.Equal(t, 45*time.Second, cfg.DuplicateWindow)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadRejectsOversizedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.yaml")
	require.NoError(t, os.WriteFile(path, make([]byte, maxConfigFileSize+1), 0o600))
	t.Setenv("CONFIG_FILE", path)
	_, err := Load()
	require.Error(t, err)
}
