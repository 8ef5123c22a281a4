package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL   = "https://api.imgchest.com/v1"
	DefaultSiteURL   = "https://imgchest.com"
	DefaultUserAgent = "imgchest-go/1.0 (+https://github.com/imgchest)"
	DefaultMaxPages  = 10
)

// Config holds all configuration options for the imgchest client and CLI
type Config struct {
	API       APIConfig       `yaml:"api" json:"api"`
	Assembly  AssemblyConfig  `yaml:"assembly" json:"assembly"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// APIConfig describes the service endpoints and credentials
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	SiteURL   string        `yaml:"site_url" json:"site_url"`
	Token     string        `yaml:"token,omitempty" json:"token,omitempty"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// AssemblyConfig bounds the multi-page post loop
type AssemblyConfig struct {
	MaxPages int `yaml:"max_pages" json:"max_pages"`
}

// RateLimitConfig holds the client-side request budget
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig configures caller-side retries in the CLI
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	OutputDirectory     string        `yaml:"output_directory" json:"output_directory"`
	OverwriteExisting   bool          `yaml:"overwrite_existing" json:"overwrite_existing"`
	WriteMetadata       bool          `yaml:"write_metadata" json:"write_metadata"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	Console bool   `yaml:"console" json:"console"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   DefaultBaseURL,
			SiteURL:   DefaultSiteURL,
			UserAgent: DefaultUserAgent,
			Timeout:   30 * time.Second,
		},
		Assembly: AssemblyConfig{
			MaxPages: DefaultMaxPages,
		},
		RateLimit: RateLimitConfig{
			// documented service budget
			RequestsPerMinute: 60,
			BurstSize:         5,
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 4,
			DownloadTimeout:     2 * time.Minute,
			OutputDirectory:     ".",
			OverwriteExisting:   false,
			WriteMetadata:       true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// LoadFromEnv overrides fields from IMGCHEST_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if token := os.Getenv("IMGCHEST_TOKEN"); token != "" {
		c.API.Token = token
	}
	if baseURL := os.Getenv("IMGCHEST_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if siteURL := os.Getenv("IMGCHEST_SITE_URL"); siteURL != "" {
		c.API.SiteURL = siteURL
	}
	if timeout := os.Getenv("IMGCHEST_TIMEOUT"); timeout != "" {
		d, err := parseDuration(timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGCHEST_TIMEOUT: %w", err))
		} else {
			c.API.Timeout = d
		}
	}
	if v, ok, err := envInt("IMGCHEST_MAX_PAGES"); err != nil {
		errs = append(errs, err)
	} else if ok {
		c.Assembly.MaxPages = v
	}
	if v, ok, err := envInt("IMGCHEST_REQUESTS_PER_MINUTE"); err != nil {
		errs = append(errs, err)
	} else if ok {
		c.RateLimit.RequestsPerMinute = v
	}
	if outputDir := os.Getenv("IMGCHEST_OUTPUT_DIR"); outputDir != "" {
		c.Download.OutputDirectory = outputDir
	}
	if v, ok, err := envInt("IMGCHEST_CONCURRENT_DOWNLOADS"); err != nil {
		errs = append(errs, err)
	} else if ok {
		c.Download.ConcurrentDownloads = v
	}
	if logLevel := os.Getenv("IMGCHEST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return errors.Join(errs...)
}

func envInt(name string) (int, bool, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", name, err)
	}
	return v, true, nil
}

// parseDuration accepts Go durations ("45s") and bare seconds ("45")
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

// LoadFromFile loads configuration from a YAML file.
// An empty path searches the standard locations; finding nothing there is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DefaultPath is where `config init` writes
func DefaultPath() string {
	return filepath.Join(homeDir(), ".config", "imgchest", "config.yaml")
}

func findConfigFile() string {
	home := homeDir()
	locations := []string{
		".imgchest.yaml",
		".imgchest.yml",
		filepath.Join(home, ".config", "imgchest", "config.yaml"),
		filepath.Join(home, ".config", "imgchest", "config.yml"),
		filepath.Join(home, ".imgchest.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

// Validate checks if the configuration is valid. A token is optional: scrape mode works without one.
func (c *Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{"base URL": c.API.BaseURL, "site URL": c.API.SiteURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	if c.Assembly.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute > 0 && c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts <= 0 {
			errs = append(errs, errors.New("retry max attempts must be positive"))
		}
		if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
			errs = append(errs, errors.New("retry delays must be positive and max delay not below base delay"))
		}
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 16 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 16"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.OutputDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Sanitized returns a copy safe to print, with the token masked
func (c *Config) Sanitized() *Config {
	out := *c
	if out.API.Token != "" {
		out.API.Token = MaskSecret(out.API.Token)
	}
	return &out
}

// MaskSecret keeps the first and last four characters of a secret
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// Save writes the configuration as YAML. The token is never persisted here; it belongs in the credential store.
func (c *Config) Save(path string) error {
	out := *c
	out.API.Token = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies values set on the command line
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["token"].(string); ok && token != "" {
		c.API.Token = token
	}
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.API.Timeout = timeout
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages > 0 {
		c.Assembly.MaxPages = maxPages
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Download.OutputDirectory = outputDir
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if overwrite, ok := flags["overwrite"].(bool); ok && overwrite {
		c.Download.OverwriteExisting = true
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources.
// Precedence: command line flags > environment variables > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// godotenv.Load never overrides variables that are already set
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(homeDir(), ".imgchest.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
