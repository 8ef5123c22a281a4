package transport

import (
	"strings"
	"sync"
)

// ClientConfig is the mutable per-client configuration.
// Writers take the lock briefly; every request works on a Snapshot so a concurrent
// SetToken is seen either entirely or not at all by an in-flight call.
type ClientConfig struct {
	mu        sync.RWMutex
	baseURL   string
	siteURL   string
	token     string
	userAgent string
}

// Snapshot is an immutable copy of ClientConfig taken at the start of a request
type Snapshot struct {
	BaseURL   string
	SiteURL   string
	Token     string
	UserAgent string
}

// HasToken reports whether a bearer token is configured
func (s Snapshot) HasToken() bool { return s.Token != "" }

// NewClientConfig creates a configuration. Trailing slashes are trimmed from both URLs.
func NewClientConfig(baseURL, siteURL, token, userAgent string) *ClientConfig {
	return &ClientConfig{
		baseURL:   strings.TrimRight(baseURL, "/"),
		siteURL:   strings.TrimRight(siteURL, "/"),
		token:     token,
		userAgent: userAgent,
	}
}

// SetToken replaces the bearer token; an empty string clears it
func (c *ClientConfig) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// SetBaseURL replaces the API base URL
func (c *ClientConfig) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// SetSiteURL replaces the public site URL used for scraping
func (c *ClientConfig) SetSiteURL(siteURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.siteURL = strings.TrimRight(siteURL, "/")
}

// SetUserAgent replaces the User-Agent header value
func (c *ClientConfig) SetUserAgent(userAgent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userAgent = userAgent
}

// Snapshot returns a consistent copy of the configuration
func (c *ClientConfig) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		BaseURL:   c.baseURL,
		SiteURL:   c.siteURL,
		Token:     c.token,
		UserAgent: c.userAgent,
	}
}
