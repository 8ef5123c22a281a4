package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs the outcome of one HTTP exchange at a level matching its status
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogDownload logs a single file download
func LogDownload(l Logger, postID, fileID string, bytes int64, skipped bool, err error) {
	entry := l.WithFields(map[string]interface{}{
		"post_id": postID,
		"file_id": fileID,
		"bytes":   bytes,
	})

	switch {
	case err != nil:
		entry.WithError(err).Error("Download failed")
	case skipped:
		entry.Debug("Download skipped, file exists")
	default:
		entry.Info("Download completed")
	}
}

// LogRateLimit logs a back-off requested by the service
func LogRateLimit(l Logger, endpoint string, retryAfter time.Duration) {
	l.WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogAssembly logs a state transition of the multi-page post loop
func LogAssembly(l Logger, postID, state string, pages, images int) {
	l.DebugWithFields("Post assembly", map[string]interface{}{
		"post_id": postID,
		"state":   state,
		"pages":   pages,
		"images":  images,
	})
}

// Nop returns a logger that discards everything.
// Library packages default to it so they never write unless a logger is injected.
func Nop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	z := zerolog.Nop()
	return &z
}
