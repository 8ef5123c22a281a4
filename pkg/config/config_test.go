package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultSiteURL, cfg.API.SiteURL)
	assert.Empty(t, cfg.API.Token)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 10, cfg.Assembly.MaxPages)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.True(t, cfg.Retry.Enabled)
	assert.Equal(t, 4, cfg.Download.ConcurrentDownloads)
	assert.True(t, cfg.Download.WriteMetadata)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IMGCHEST_TOKEN", "env-token")
	t.Setenv("IMGCHEST_BASE_URL", "http://127.0.0.1:9000/v1")
	t.Setenv("IMGCHEST_SITE_URL", "http://127.0.0.1:9001")
	t.Setenv("IMGCHEST_TIMEOUT", "45")
	t.Setenv("IMGCHEST_MAX_PAGES", "3")
	t.Setenv("IMGCHEST_REQUESTS_PER_MINUTE", "120")
	t.Setenv("IMGCHEST_OUTPUT_DIR", "/env/output")
	t.Setenv("IMGCHEST_CONCURRENT_DOWNLOADS", "8")
	t.Setenv("IMGCHEST_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env-token", cfg.API.Token)
	assert.Equal(t, "http://127.0.0.1:9000/v1", cfg.API.BaseURL)
	assert.Equal(t, "http://127.0.0.1:9001", cfg.API.SiteURL)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.Assembly.MaxPages)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "/env/output", cfg.Download.OutputDirectory)
	assert.Equal(t, 8, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidNumbers(t *testing.T) {
	t.Setenv("IMGCHEST_MAX_PAGES", "many")
	t.Setenv("IMGCHEST_TIMEOUT", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMGCHEST_MAX_PAGES")
	assert.Contains(t, err.Error(), "IMGCHEST_TIMEOUT")
	assert.Equal(t, DefaultMaxPages, cfg.Assembly.MaxPages)
}

func TestLoadFromFile(t *testing.T) {
	t.Run("valid yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
api:
  base_url: https://api.example.test/v1
  timeout: 10s
assembly:
  max_pages: 4
download:
  concurrent_downloads: 2
  output_directory: /data/chests
logging:
  level: warn
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(path))

		assert.Equal(t, "https://api.example.test/v1", cfg.API.BaseURL)
		assert.Equal(t, DefaultSiteURL, cfg.API.SiteURL)
		assert.Equal(t, 10*time.Second, cfg.API.Timeout)
		assert.Equal(t, 4, cfg.Assembly.MaxPages)
		assert.Equal(t, 2, cfg.Download.ConcurrentDownloads)
		assert.Equal(t, "/data/chests", cfg.Download.OutputDirectory)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0644))

		err := DefaultConfig().LoadFromFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("missing explicit file", func(t *testing.T) {
		err := DefaultConfig().LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative base url", func(c *Config) { c.API.BaseURL = "/v1" }, "base URL"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "timeout must be positive"},
		{"zero max pages", func(c *Config) { c.Assembly.MaxPages = 0 }, "max pages"},
		{"negative rpm", func(c *Config) { c.RateLimit.RequestsPerMinute = -1 }, "requests per minute"},
		{"rate limit disabled", func(c *Config) { c.RateLimit.RequestsPerMinute = 0; c.RateLimit.BurstSize = 0 }, ""},
		{"bad retry delays", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, "retry delays"},
		{"retry disabled ignores delays", func(c *Config) { c.Retry.Enabled = false; c.Retry.MaxAttempts = 0 }, ""},
		{"too many downloads", func(c *Config) { c.Download.ConcurrentDownloads = 50 }, "should not exceed"},
		{"empty output", func(c *Config) { c.Download.OutputDirectory = "" }, "output directory"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
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

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Assembly.MaxPages = 0
	cfg.Download.OutputDirectory = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max pages")
	assert.Contains(t, err.Error(), "output directory")
}

func TestSanitizedMasksToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Token = "abcd1234567890wxyz"

	safe := cfg.Sanitized()
	assert.Equal(t, "abcd**********wxyz", safe.API.Token)
	assert.Equal(t, "abcd1234567890wxyz", cfg.API.Token)
	assert.Equal(t, "****", MaskSecret("abcd"))
}

func TestSaveOmitsToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.API.Token = "secret-token"
	cfg.Assembly.MaxPages = 7

	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-token")

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, 7, loaded.Assembly.MaxPages)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.Equal(t, "secret-token", cfg.API.Token)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"token":      "flag-token",
		"max-pages":  2,
		"output":     "/flags",
		"concurrent": 6,
		"overwrite":  true,
		"timeout":    5 * time.Second,
		"log-level":  "error",
		"unknown":    "ignored",
	})

	assert.Equal(t, "flag-token", cfg.API.Token)
	assert.Equal(t, 2, cfg.Assembly.MaxPages)
	assert.Equal(t, "/flags", cfg.Download.OutputDirectory)
	assert.Equal(t, 6, cfg.Download.ConcurrentDownloads)
	assert.True(t, cfg.Download.OverwriteExisting)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assembly:\n  max_pages: 4\ndownload:\n  output_directory: /from-file\n"), 0644))

	t.Setenv("IMGCHEST_MAX_PAGES", "5")

	cfg, err := Load(path, map[string]interface{}{"output": "/from-flags"})
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Assembly.MaxPages)
	assert.Equal(t, "/from-flags", cfg.Download.OutputDirectory)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("IMGCHEST_CONCURRENT_DOWNLOADS", "0")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  concurrent_downloads: 0\n"), 0644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}
