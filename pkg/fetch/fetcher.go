package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"filmstats/pkg/config"
	"filmstats/pkg/metrics"
	"filmstats/pkg/utils"
)

// Fetcher retrieves single pages over HTTP with a bounded retry budget.
// Only a 200 response counts as success; every other status and every
// transport error is retried after a fixed backoff until the budget is
// spent, at which point the page is reported unavailable.
type Fetcher struct {
	client      *http.Client
	cfg         *config.AppConfig // Retry settings and User-Agent
	robots      *RobotsGate
	rateLimiter *RateLimiter
	metrics     *metrics.Metrics
	log         *logrus.Entry
}

// NewFetcher creates a new Fetcher instance. robots and m may be nil.
func NewFetcher(client *http.Client, cfg *config.AppConfig, robots *RobotsGate, rateLimiter *RateLimiter, m *metrics.Metrics, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client:      client,
		cfg:         cfg,
		robots:      robots,
		rateLimiter: rateLimiter,
		metrics:     m,
		log:         log,
	}
}

// FetchPage performs a GET for pageURL and returns the full response body.
// It makes at most cfg.MaxAttempts attempts, sleeping the fixed
// cfg.RetryBackoff between consecutive attempts and never after the last
// one. All failures are absorbed into a single error wrapping
// utils.ErrPageUnavailable; only context cancellation passes through as-is.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	fetchLog := f.log.WithField("url", pageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", utils.ErrRequestCreation, pageURL, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	// --- Robots Gate ---
	// Checked once, before any attempt is spent on the page.
	if !f.robots.Allowed(ctx, req.URL.RequestURI()) {
		fetchLog.Warn("Skipping fetch: disallowed by robots.txt")
		f.metrics.IncPageFetched("robots_disallowed")
		return nil, fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, req.URL.RequestURI())
	}

	maxAttempts := f.cfg.MaxAttempts
	backoff := f.cfg.RetryBackoff
	start := time.Now()

	var lastErr error // Error from the most recent failed attempt

	// Attempt loop: the first attempt plus maxAttempts-1 retries.
	for attempt := 1; attempt <= maxAttempts; attempt++ {

		// --- Context Check ---
		// Bail out before spending an attempt if the context is done.
		select {
		case <-ctx.Done():
			fetchLog.Warnf("Context cancelled before attempt %d: %v", attempt, ctx.Err())
			if lastErr != nil {
				return nil, fmt.Errorf("%w (after attempt error: %v)", ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("%w (before first attempt)", ctx.Err())
		default:
		}

		// --- Fixed Backoff ---
		// Applied only before retry attempts, never before the first.
		if attempt > 1 {
			fetchLog.WithFields(logrus.Fields{
				"attempt":      attempt,
				"max_attempts": maxAttempts,
				"backoff":      backoff,
			}).Warnf("Retrying after error: %v", lastErr)

			select {
			case <-time.After(backoff):
				// Backoff elapsed normally
			case <-ctx.Done():
				fetchLog.Warnf("Context cancelled during backoff: %v", ctx.Err())
				return nil, fmt.Errorf("%w (during backoff after: %v)", ctx.Err(), lastErr)
			}
		}

		// --- Perform Request ---
		f.rateLimiter.ApplyDelay()
		f.metrics.IncFetchAttempt()
		resp, doErr := f.client.Do(req)
		f.rateLimiter.UpdateLastRequestTime()

		// --- Handle Network-Level Errors ---
		// DNS, TCP, TLS failures arrive here before any HTTP response.
		if doErr != nil {
			if errors.Is(doErr, context.Canceled) || errors.Is(doErr, context.DeadlineExceeded) {
				fetchLog.Warnf("Context cancelled during request execution: %v", doErr)
				if resp != nil {
					io.Copy(io.Discard, resp.Body)
					resp.Body.Close()
				}
				// Context errors are not retried.
				return nil, doErr
			}
			lastErr = doErr
			f.metrics.IncAttemptFailure(utils.CategorizeError(doErr))
			fetchLog.WithField("attempt", attempt).Warnf("Network error: %v", doErr)
			if resp != nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
			continue
		}

		// --- Handle HTTP Status ---
		if resp.StatusCode == http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				// A truncated body is as retryable as a failed connection.
				lastErr = fmt.Errorf("%w: %v", utils.ErrResponseBodyRead, readErr)
				f.metrics.IncAttemptFailure(utils.CategorizeError(lastErr))
				fetchLog.WithField("attempt", attempt).Warnf("Failed to read response body: %v", readErr)
				continue
			}
			f.metrics.IncPageFetched("success")
			f.metrics.ObserveFetchDuration(time.Since(start))
			fetchLog.WithFields(logrus.Fields{"attempt": attempt, "bytes": len(body)}).Debug("Successfully fetched")
			return body, nil
		}

		// Every non-200 status is retryable, 4xx included: the site
		// intermittently serves 404s for pages that exist.
		lastErr = fmt.Errorf("%w: status %d %s", utils.ErrHTTPStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
		f.metrics.IncAttemptFailure(utils.CategorizeError(lastErr))
		fetchLog.WithFields(logrus.Fields{
			"attempt":     attempt,
			"status_code": resp.StatusCode,
		}).Warn("Non-success status, retrying...")

		// Drain and close so the transport can reuse the connection.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	// --- All Attempts Failed ---
	fetchLog.WithField("max_attempts", maxAttempts).Errorf("Page unavailable, giving up. Last error: %v", lastErr)
	f.metrics.IncPageFetched("unavailable")
	if lastErr == nil {
		// Unreachable while MaxAttempts >= 1, kept as a guard.
		return nil, utils.ErrPageUnavailable
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrPageUnavailable, lastErr)
}
