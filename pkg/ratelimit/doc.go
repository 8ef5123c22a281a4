// Package ratelimit keeps the client inside the service's documented request budget.
//
// The service allows 60 requests per minute per token. TokenBucket wraps
// golang.org/x/time/rate and adds Pause for server-requested back-offs:
//
//	limiter := ratelimit.NewPerMinute(60, 5)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//
// The limiter only spaces requests out. It never retries anything.
package ratelimit
