package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_PATH", "BOT_TOKEN", "PORT", "HTTP_ADDR", "PUBLIC_URL", "RENDER_EXTERNAL_URL", "LINK_SECRET", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, LinkModeRegistry, cfg.Links.Mode)
	assert.Equal(t, 24*time.Hour, cfg.Links.TTLDuration())
	assert.Equal(t, time.Minute, cfg.Links.ReapIntervalDuration())
	assert.Equal(t, DefaultChunkSize, cfg.Links.ChunkSize)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.Leech.MaxUploadBytes)
	assert.Equal(t, 5*time.Second, cfg.Leech.ProgressIntervalDuration())
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
[server]
addr = ":9000"
public_url = "https://files.example.com/"

[telegram]
bot_token = "123:abc"
allowed_users = [1, 2]

[links]
ttl = "2h"
chunk_size = 1024
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "https://files.example.com", cfg.Server.PublicURL)
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, []int64{1, 2}, cfg.Telegram.AllowedUsers)
	assert.Equal(t, 2*time.Hour, cfg.Links.TTLDuration())
	assert.Equal(t, 1024, cfg.Links.ChunkSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "telegram:\n  bot_token: \"1:x\"\nlinks:\n  mode: signed\n  secret: s3cret\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, LinkModeSigned, cfg.Links.Mode)
	assert.Equal(t, "s3cret", cfg.Links.Secret)
	assert.Equal(t, DefaultLinkTTL, cfg.Links.TTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("PORT", "10000")
	t.Setenv("RENDER_EXTERNAL_URL", "https://app.onrender.com/")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, ":10000", cfg.Server.Addr)
	assert.Equal(t, "https://app.onrender.com", cfg.Server.PublicURL)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Default()
	valid.Telegram.BotToken = "1:x"
	require.NoError(t, valid.Validate())

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		cfg := Default()
		assert.Error(t, cfg.Validate())
	})

	t.Run("signed without secret", func(t *testing.T) {
		t.Parallel()
		cfg := valid
		cfg.Links.Mode = LinkModeSigned
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Parallel()
		cfg := valid
		cfg.Links.TTL = "tomorrow"
		assert.Error(t, cfg.Validate())
	})

	t.Run("sub-second reaper", func(t *testing.T) {
		t.Parallel()
		cfg := valid
		cfg.Links.ReapInterval = "100ms"
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown mode", func(t *testing.T) {
		t.Parallel()
		cfg := valid
		cfg.Links.Mode = "cookie"
		assert.Error(t, cfg.Validate())
	})
}
