package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/logger"
	"imgchest/pkg/ratelimit"
)

const (
	// DefaultTimeout bounds every HTTP exchange
	DefaultTimeout = 30 * time.Second

	maxBodyBytes     = 64 << 20
	maxErrorBodySize = 64 << 10
)

// Request describes one HTTP exchange with the service
type Request struct {
	Method string
	// URL is absolute, or a path relative to the API base URL
	URL          string
	Query        url.Values
	AuthRequired bool
	Header       http.Header
	Body         Body
}

// Response is a fully read 2xx response
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	URL    string
}

// ContentType returns the media type without parameters
func (r *Response) ContentType() string {
	return mediaType(r.Header)
}

// IsJSON reports whether the response declares a JSON media type
func (r *Response) IsJSON() bool {
	return isJSON(r.Header)
}

// Pauser is implemented by limiters that can honour a server-requested back-off
type Pauser interface {
	Pause(d time.Duration)
}

// Transport performs authenticated or anonymous HTTP calls and classifies failures.
// It never retries.
type Transport struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    ratelimit.Limiter
	logger     logger.Logger
	bodyLimit  int64
}

// Option configures a Transport
type Option func(*Transport)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		if c != nil {
			t.httpClient = c
		}
	}
}

// WithLimiter makes every call wait for a permit first
func WithLimiter(l ratelimit.Limiter) Option {
	return func(t *Transport) { t.limiter = l }
}

// WithLogger injects a logger. Without one the transport is silent.
func WithLogger(l logger.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a Transport over cfg
func New(cfg *ClientConfig, opts ...Option) *Transport {
	t := &Transport{
		config:     cfg,
		httpClient: NewHTTPClient(DefaultTimeout),
		logger:     logger.Nop(),
		bodyLimit:  maxBodyBytes,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewHTTPClient builds an http.Client with a cookie jar, which keeps the session
// cookie that pairs with a scraped CSRF token
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
	}
}

// Config returns the shared client configuration
func (t *Transport) Config() *ClientConfig { return t.config }

// HTTPClient returns the underlying client
func (t *Transport) HTTPClient() *http.Client { return t.httpClient }

// Execute performs req and returns the fully read body of a 2xx response
func (t *Transport) Execute(ctx context.Context, req *Request) (*Response, error) {
	resp, err := t.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.bodyLimit+1))
	if err != nil {
		return nil, classify(ctx, resp.Request.URL.String(), err)
	}
	if int64(len(body)) > t.bodyLimit {
		return nil, apperrors.Unparseable("body", fmt.Errorf("response from %s exceeds %d bytes", resp.Request.URL.String(), t.bodyLimit))
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
		URL:    resp.Request.URL.String(),
	}, nil
}

// Stream performs req and copies a 2xx body into w without buffering it
func (t *Transport) Stream(ctx context.Context, req *Request, w io.Writer) (int64, error) {
	resp, err := t.do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, classify(ctx, resp.Request.URL.String(), err)
	}
	return n, nil
}

// do sends the request and returns the open response only when it is 2xx
func (t *Transport) do(ctx context.Context, req *Request) (*http.Response, error) {
	snap := t.config.Snapshot()

	if req.AuthRequired && !snap.HasToken() {
		return nil, apperrors.ErrMissingToken
	}

	target, err := resolveURL(snap.BaseURL, req.URL, req.Query)
	if err != nil {
		return nil, err
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, classify(ctx, target, err)
		}
	}

	var (
		bodyReader  io.Reader
		contentType string
	)
	if req.Body != nil {
		bodyReader, contentType, err = req.Body.Encode()
		if err != nil {
			return nil, err
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		if c, ok := bodyReader.(io.Closer); ok {
			c.Close()
		}
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if snap.UserAgent != "" {
		httpReq.Header.Set("User-Agent", snap.UserAgent)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if isAPIRelative(req.URL) {
		httpReq.Header.Set("Accept", "application/json")
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.AuthRequired {
		httpReq.Header.Set("Authorization", "Bearer "+snap.Token)
	}

	log := t.logger.WithContext(ctx)
	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		log.WithError(err).DebugWithFields("HTTP request failed", map[string]interface{}{
			"method": method,
			"url":    target,
		})
		return nil, classify(ctx, target, err)
	}
	logger.LogRequest(log, method, target, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	statusErr := statusError(resp, body)

	var apiErr *apperrors.APIError
	if stderrors.As(statusErr, &apiErr) && apiErr.RateLimit {
		logger.LogRateLimit(log, target, apiErr.RetryAfter)
		if p, ok := t.limiter.(Pauser); ok && apiErr.RetryAfter > 0 {
			p.Pause(apiErr.RetryAfter)
		}
	}
	return nil, statusErr
}

func isAPIRelative(raw string) bool {
	return !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://")
}

func resolveURL(baseURL, raw string, query url.Values) (string, error) {
	full := raw
	if isAPIRelative(raw) {
		full = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(raw, "/")
	}

	u, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", full, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// classify maps a client-side failure onto TransportError, keeping the cause wrapped
func classify(ctx context.Context, target string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return &apperrors.TransportError{Op: apperrors.OpTimeout, URL: target, Err: ctxErr}
		}
		return &apperrors.TransportError{Op: apperrors.OpNetwork, URL: target, Err: ctxErr}
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return &apperrors.TransportError{Op: apperrors.OpTimeout, URL: target, Err: err}
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return &apperrors.TransportError{Op: apperrors.OpTimeout, URL: target, Err: err}
	}
	return &apperrors.TransportError{Op: apperrors.OpNetwork, URL: target, Err: err}
}

// statusError builds an APIError from a service error envelope, or an HTTPError otherwise
func statusError(resp *http.Response, body []byte) error {
	target := resp.Request.URL.String()
	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())

	if isJSON(resp.Header) {
		if msg, code, ok := parseErrorEnvelope(body); ok {
			if code == 0 {
				code = resp.StatusCode
			}
			return &apperrors.APIError{
				Status:     resp.StatusCode,
				Code:       code,
				Message:    msg,
				RateLimit:  resp.StatusCode == http.StatusTooManyRequests || code == http.StatusTooManyRequests || strings.Contains(msg, "Too Many Attempts"),
				RetryAfter: retryAfter,
			}
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &apperrors.APIError{
			Status:     resp.StatusCode,
			Code:       resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			RateLimit:  true,
			RetryAfter: retryAfter,
		}
	}

	return &apperrors.HTTPError{Status: resp.StatusCode, URL: target}
}

// parseErrorEnvelope understands {"message": ..., "code": ...} and {"error": "..."|{"message": ...}}
func parseErrorEnvelope(body []byte) (string, int, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", 0, false
	}

	var (
		msg  string
		code int
	)
	if m, ok := raw["message"]; ok {
		_ = json.Unmarshal(m, &msg)
	}
	if e, ok := raw["error"]; ok && msg == "" {
		if err := json.Unmarshal(e, &msg); err != nil {
			var nested struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
			}
			if json.Unmarshal(e, &nested) == nil {
				msg, code = nested.Message, nested.Code
			}
		}
	}

	for _, key := range []string{"code", "status"} {
		if code != 0 {
			break
		}
		v, ok := raw[key]
		if !ok {
			continue
		}
		if json.Unmarshal(v, &code) == nil {
			break
		}
		var s string
		if json.Unmarshal(v, &s) == nil {
			if n, err := strconv.Atoi(s); err == nil {
				code = n
				break
			}
		}
	}

	if msg == "" && code == 0 {
		return "", 0, false
	}
	return msg, code, true
}

func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

func mediaType(h http.Header) string {
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func isJSON(h http.Header) bool {
	mt := mediaType(h)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
