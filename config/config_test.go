package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/require"

	"github.com/franksops/lzstage/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, 8, cfg.Concurrency)
	require.Equal(t, engine.DefaultRetryConfig.Attempts, cfg.Retry.Attempts)
	require.Equal(t, engine.DefaultRetryConfig.Delay, cfg.Retry.Delay)
	require.Equal(t, engine.DefaultRemoteDirPattern, cfg.RemoteDirPattern)
	require.Equal(t, engine.DefaultPlaceholder, cfg.Placeholder)
	require.NotEmpty(t, cfg.StateDir)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
sodar_url: https://sodar.example.org
sodar_api_token: abc
storage: s3://bucket/prefix
concurrency: 0
retry:
  attempts: 3
  delay: 250ms
max_bytes_per_second: 1048576
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "https://sodar.example.org", cfg.SodarURL)
	require.Equal(t, "abc", cfg.SodarAPIToken)
	require.Equal(t, "s3://bucket/prefix", cfg.Storage)
	require.Equal(t, 0, cfg.Concurrency)
	require.Equal(t, uint(3), cfg.Retry.Attempts)
	require.Equal(t, 250*time.Millisecond, cfg.Retry.Delay)
	require.Equal(t, int64(1048576), cfg.MaxBytesPerSecond)
	require.Equal(t, "__SODAR__", cfg.Placeholder)
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.RequireRemote())
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadFromFile(writeConfig(t, "retry: [unclosed"))
	require.ErrorContains(t, err, "parse config file")

	_, err = LoadFromFile(writeConfig(t, "retry:\n  delay: soon\n"))
	require.ErrorContains(t, err, "retry.delay")
}

func TestLoad_ExplicitPath(t *testing.T) {
	cfg, err := Load(writeConfig(t, "concurrency: 2\n"))
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Concurrency)
}

func TestLoad_XDGSearch(t *testing.T) {
	t.Cleanup(xdg.Reload)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lzstage"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RelativePath), []byte("concurrency: 3\n"), 0o644))

	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_CONFIG_DIRS", dir)
	xdg.Reload()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Concurrency)

	empty := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", empty)
	t.Setenv("XDG_CONFIG_DIRS", empty)
	xdg.Reload()

	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, Default().Concurrency, cfg.Concurrency)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SODAR_URL", "https://env.example.org")
	t.Setenv("SODAR_API_TOKEN", "from-env")
	t.Setenv("LZSTAGE_CONCURRENCY", "4")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	require.Equal(t, "https://env.example.org", cfg.SodarURL)
	require.Equal(t, "from-env", cfg.SodarAPIToken)
	require.Equal(t, 4, cfg.Concurrency)

	t.Setenv("LZSTAGE_CONCURRENCY", "many")
	require.Error(t, cfg.ApplyEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative concurrency", func(c *Config) { c.Concurrency = -1 }},
		{"no attempts", func(c *Config) { c.Retry.Attempts = 0 }},
		{"negative delay", func(c *Config) { c.Retry.Delay = -time.Second }},
		{"negative rate", func(c *Config) { c.MaxBytesPerSecond = -1 }},
		{"empty placeholder", func(c *Config) { c.Placeholder = "" }},
		{"placeholder with slash", func(c *Config) { c.Placeholder = "a/b" }},
		{"bad url", func(c *Config) { c.SodarURL = "ftp://sodar" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestRequireRemote(t *testing.T) {
	cfg := Default()
	require.ErrorContains(t, cfg.RequireRemote(), "sodar_url")
	cfg.SodarURL = "https://sodar.example.org"
	require.ErrorContains(t, cfg.RequireRemote(), "sodar_api_token")
}
