// Package retry re-runs failed client calls with backoff.
//
// The imgchest client itself never retries; commands wrap individual calls
// with Do when a failure is transient according to errors.IsRetryable.
//
//	err := retry.Do(ctx, retry.FromConfig(cfg.Retry, log), func(ctx context.Context) error {
//		_, err := client.DownloadFile(ctx, link, w)
//		return err
//	})
//
// Rate limit errors carrying a Retry-After delay wait at least that long.
package retry
