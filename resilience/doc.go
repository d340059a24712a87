// Package resilience provides per-invocation guards for stream transforms.
//
//   - Retry: re-runs a failed transform with exponential backoff and jitter
//   - RateLimiter: token bucket pacing of transform invocations
//   - Bulkhead: caps the number of transforms running at once
//
// The pipeline package applies them through stage options:
//
//	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 50, Burst: 5})
//	out, err := pipeline.FanOut(src, 4, fetch,
//	    pipeline.WithRetry(resilience.DefaultRetryConfig()),
//	    pipeline.WithRateLimit(limiter),
//	)
package resilience
