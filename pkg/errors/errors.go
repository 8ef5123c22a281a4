package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error for logging and caller-side retry decisions
type Kind string

const (
	KindNetwork    Kind = "network"
	KindTimeout    Kind = "timeout"
	KindHTTP       Kind = "http"
	KindAPI        Kind = "api"
	KindRateLimit  Kind = "rate_limit"
	KindAuth       Kind = "auth"
	KindScrape     Kind = "scrape"
	KindMap        Kind = "map"
	KindMerge      Kind = "merge"
	KindAssembly   Kind = "assembly"
	KindValidation Kind = "validation"
	KindUnknown    Kind = "unknown"
)

// Sentinels for errors.Is matching against the typed errors below
var (
	ErrNetwork      = &TransportError{Op: OpNetwork}
	ErrTimeout      = &TransportError{Op: OpTimeout}
	ErrMissingToken = &AuthError{Reason: AuthMissingToken}
	ErrEmpty        = &ValidationError{Reason: ValidationEmpty}
	ErrInconsistent = &MergeError{Reason: MergeInconsistent}
	ErrTooManyPages = &AssemblyError{Reason: AssemblyTooManyPages}
	ErrModeMismatch = &AssemblyError{Reason: AssemblyModeMismatch}
)

// TransportOp distinguishes the two transport failure modes
type TransportOp string

const (
	OpNetwork TransportOp = "network"
	OpTimeout TransportOp = "timeout"
)

// TransportError is a failure below HTTP: DNS, connection reset, timeout, cancellation
type TransportError struct {
	Op  TransportOp
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport %s error", e.Op)
	}
	return fmt.Sprintf("transport %s error for %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	return ok && t.Op == e.Op && t.URL == "" && t.Err == nil
}

// HTTPError is a non-2xx response whose body is not a service error envelope
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error (status %d) for %s", e.Status, e.URL)
}

// APIError is a non-2xx response carrying the service's JSON error envelope,
// or a completion envelope reporting failure
type APIError struct {
	Status     int
	Code       int
	Message    string
	RateLimit  bool
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RateLimit {
		return fmt.Sprintf("api rate limit (code %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("api error (code %d): %s", e.Code, e.Message)
}

// AuthReason enumerates authentication failures
type AuthReason string

const AuthMissingToken AuthReason = "missing token"

// AuthError is returned before any network call when a required token is absent
type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth error: %s", e.Reason) }

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Reason == e.Reason
}

// ScrapeReason enumerates page extraction failures
type ScrapeReason string

const (
	ScrapeMissingField ScrapeReason = "missing field"
	ScrapeUnparseable  ScrapeReason = "unparseable"
)

// ScrapeError means the page markup no longer matches what the extractor expects
type ScrapeError struct {
	Reason ScrapeReason
	Field  string
	Err    error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scrape %s %q: %v", e.Reason, e.Field, e.Err)
	}
	return fmt.Sprintf("scrape %s %q", e.Reason, e.Field)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

func (e *ScrapeError) Is(target error) bool {
	t, ok := target.(*ScrapeError)
	return ok && t.Reason == e.Reason && (t.Field == "" || t.Field == e.Field)
}

// MissingField builds the scrape error for an absent marker
func MissingField(name string) *ScrapeError {
	return &ScrapeError{Reason: ScrapeMissingField, Field: name}
}

// Unparseable builds the scrape error for a marker whose content cannot be read
func Unparseable(name string, err error) *ScrapeError {
	return &ScrapeError{Reason: ScrapeUnparseable, Field: name, Err: err}
}

// MapError means a JSON response does not match the documented schema
type MapError struct {
	Field string
	Err   error
}

func (e *MapError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema error at %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("schema error: missing %q", e.Field)
}

func (e *MapError) Unwrap() error { return e.Err }

func (e *MapError) Is(target error) bool {
	t, ok := target.(*MapError)
	return ok && t.Err == nil && (t.Field == "" || t.Field == e.Field)
}

// Schema builds the map error for a missing required field
func Schema(field string) *MapError {
	return &MapError{Field: field}
}

// MergeReason enumerates merge failures
type MergeReason string

const MergeInconsistent MergeReason = "inconsistent"

// MergeError means page positions had a gap, an overlap, or disagreed with the declared count
type MergeError struct {
	Reason   MergeReason
	Expected int
	Got      int
	Detail   string
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge %s: %s (expected %d, got %d)", e.Reason, e.Detail, e.Expected, e.Got)
}

func (e *MergeError) Is(target error) bool {
	t, ok := target.(*MergeError)
	return ok && t.Reason == e.Reason
}

// AssemblyReason enumerates assembler failures
type AssemblyReason string

const (
	AssemblyTooManyPages AssemblyReason = "too many pages"
	AssemblyModeMismatch AssemblyReason = "mode mismatch"
)

// AssemblyError is a failure of the multi-page loop itself
type AssemblyError struct {
	Reason   AssemblyReason
	Limit    int
	Expected string
	Got      string
}

func (e *AssemblyError) Error() string {
	switch e.Reason {
	case AssemblyTooManyPages:
		return fmt.Sprintf("assembly error: %s (limit %d)", e.Reason, e.Limit)
	case AssemblyModeMismatch:
		return fmt.Sprintf("assembly error: %s (source %s, token %s)", e.Reason, e.Expected, e.Got)
	default:
		return fmt.Sprintf("assembly error: %s", e.Reason)
	}
}

func (e *AssemblyError) Is(target error) bool {
	t, ok := target.(*AssemblyError)
	return ok && t.Reason == e.Reason
}

// ValidationReason enumerates local request validation failures
type ValidationReason string

const (
	ValidationEmpty         ValidationReason = "empty"
	ValidationTitleTooShort ValidationReason = "title too short"
	ValidationConsumed      ValidationReason = "builder already submitted"
)

// ValidationError is raised before any network call
type ValidationError struct {
	Reason ValidationReason
	Field  string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation error: %s", e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

// KindOf classifies any error produced by this module
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var (
		transportErr  *TransportError
		httpErr       *HTTPError
		apiErr        *APIError
		authErr       *AuthError
		scrapeErr     *ScrapeError
		mapErr        *MapError
		mergeErr      *MergeError
		assemblyErr   *AssemblyError
		validationErr *ValidationError
	)

	switch {
	case errors.As(err, &transportErr):
		if transportErr.Op == OpTimeout {
			return KindTimeout
		}
		return KindNetwork
	case errors.As(err, &apiErr):
		if apiErr.RateLimit {
			return KindRateLimit
		}
		return KindAPI
	case errors.As(err, &httpErr):
		return KindHTTP
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &scrapeErr):
		return KindScrape
	case errors.As(err, &mapErr):
		return KindMap
	case errors.As(err, &mergeErr):
		return KindMerge
	case errors.As(err, &assemblyErr):
		return KindAssembly
	case errors.As(err, &validationErr):
		return KindValidation
	default:
		return KindUnknown
	}
}

// IsRateLimit reports whether the service asked the caller to back off
func IsRateLimit(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.RateLimit
}

// RetryAfter returns the server-suggested delay of a rate limit error, if any
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter, true
	}
	return 0, false
}

// IsRetryable reports whether a caller may reasonably retry the failed operation.
// Cancellation by the caller is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindRateLimit:
		return true
	case KindHTTP:
		var httpErr *HTTPError
		errors.As(err, &httpErr)
		return IsRetryableStatusCode(httpErr.Status)
	case KindAPI:
		var apiErr *APIError
		errors.As(err, &apiErr)
		return IsRetryableStatusCode(apiErr.Status)
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a transient failure
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	default:
		return statusCode >= 500
	}
}
