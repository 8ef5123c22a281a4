package imgchest

import (
	"net/http"
	"time"

	"imgchest/pkg/assembler"
	"imgchest/pkg/config"
	"imgchest/pkg/logger"
	"imgchest/pkg/ratelimit"
	"imgchest/pkg/transport"
)

// Client is the entry point for both retrieval modes and all write operations.
// It is safe for concurrent use.
type Client struct {
	transport *transport.Transport
	assembler *assembler.Assembler
	logger    logger.Logger
}

type settings struct {
	httpClient *http.Client
	timeout    time.Duration
	baseURL    string
	siteURL    string
	token      string
	userAgent  string
	logger     logger.Logger
	limiter    ratelimit.Limiter
	maxPages   int
}

// Option configures a Client
type Option func(*settings)

// WithHTTPClient replaces the HTTP client. Its timeout wins over WithTimeout.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithTimeout bounds every HTTP exchange
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBaseURL points the client at another API root
func WithBaseURL(u string) Option {
	return func(s *settings) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithSiteURL points scraping at another site root
func WithSiteURL(u string) Option {
	return func(s *settings) {
		if u != "" {
			s.siteURL = u
		}
	}
}

// WithToken sets the bearer token used by API operations
func WithToken(token string) Option {
	return func(s *settings) { s.token = token }
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(s *settings) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithLogger injects a logger. The client is silent without one.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithLimiter makes every request wait for a permit
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *settings) { s.limiter = l }
}

// WithMaxPages caps follow-up fetches per post
func WithMaxPages(n int) Option {
	return func(s *settings) { s.maxPages = n }
}

// NewClient creates a Client. With no options it talks to imgchest.com anonymously.
func NewClient(opts ...Option) *Client {
	s := &settings{
		timeout:   transport.DefaultTimeout,
		baseURL:   config.DefaultBaseURL,
		siteURL:   config.DefaultSiteURL,
		userAgent: config.DefaultUserAgent,
		logger:    logger.Nop(),
		maxPages:  assembler.DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}

	httpClient := s.httpClient
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(s.timeout)
	}

	cfg := transport.NewClientConfig(s.baseURL, s.siteURL, s.token, s.userAgent)
	topts := []transport.Option{
		transport.WithHTTPClient(httpClient),
		transport.WithLogger(s.logger),
	}
	if s.limiter != nil {
		topts = append(topts, transport.WithLimiter(s.limiter))
	}

	return &Client{
		transport: transport.New(cfg, topts...),
		assembler: assembler.New(assembler.WithMaxPages(s.maxPages), assembler.WithLogger(s.logger)),
		logger:    s.logger,
	}
}

// NewClientWithConfig creates a Client from loaded configuration
func NewClientWithConfig(cfg *config.Config, log logger.Logger) *Client {
	opts := []Option{
		WithBaseURL(cfg.API.BaseURL),
		WithSiteURL(cfg.API.SiteURL),
		WithToken(cfg.API.Token),
		WithUserAgent(cfg.API.UserAgent),
		WithTimeout(cfg.API.Timeout),
		WithMaxPages(cfg.Assembly.MaxPages),
		WithLogger(log),
	}
	if cfg.RateLimit.RequestsPerMinute > 0 {
		opts = append(opts, WithLimiter(ratelimit.NewPerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)))
	}
	return NewClient(opts...)
}

// SetToken replaces the bearer token for later calls. It performs no I/O.
func (c *Client) SetToken(token string) {
	c.transport.Config().SetToken(token)
}

// SetBaseURL replaces the API root for later calls
func (c *Client) SetBaseURL(baseURL string) {
	c.transport.Config().SetBaseURL(baseURL)
}

// HasToken reports whether API operations can be attempted
func (c *Client) HasToken() bool {
	return c.transport.Config().Snapshot().HasToken()
}
