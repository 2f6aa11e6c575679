package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"campus-crawler/pkg/config"
	"campus-crawler/pkg/models"
	"campus-crawler/pkg/utils"
)

const acceptHTML = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"

// Fetcher performs polite GET requests: a global request cap, per-host delay,
// optional robots.txt checks and retry with backoff.
type Fetcher struct {
	client  *http.Client
	cfg     *config.AppConfig
	limiter *RateLimiter
	sem     *semaphore.Weighted
	robots  *RobotsHandler // nil unless respect_robots is set
	log     *logrus.Entry
}

// NewFetcher creates a Fetcher. The request semaphore is sized by cfg.MaxRequests.
func NewFetcher(client *http.Client, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	f := &Fetcher{
		client:  client,
		cfg:     cfg,
		limiter: NewRateLimiter(cfg.DelayPerHost, log),
		sem:     semaphore.NewWeighted(int64(max(cfg.MaxRequests, 1))),
		log:     log,
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsHandler(f, cfg.UserAgent, log)
	}
	return f
}

// rawResponse is a fully read response body plus the bits callers need.
type rawResponse struct {
	statusCode  int
	finalURL    string
	contentType string
	body        []byte
}

// Fetch GETs pageURL and returns its body, or the reason it could not be obtained.
// Only HTML responses count as success.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) models.FetchResult {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return models.FetchFailed(pageURL, 0, fmt.Errorf("%w: invalid URL '%s'", utils.ErrParsing, pageURL))
	}

	if f.robots != nil && !f.robots.Allowed(ctx, u) {
		return models.FetchFailed(pageURL, 0, fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, u.RequestURI()))
	}

	if f.cfg.PerFetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.PerFetchTimeout)
		defer cancel()
	}

	raw, err := f.fetchBody(ctx, u, acceptHTML)
	if err != nil {
		return models.FetchFailed(pageURL, raw.statusCode, err)
	}
	if raw.contentType != "" && !strings.Contains(strings.ToLower(raw.contentType), "html") {
		return models.FetchFailed(pageURL, raw.statusCode, fmt.Errorf("%w: '%s'", utils.ErrUnsupportedType, raw.contentType))
	}
	return models.FetchOk(pageURL, raw.finalURL, raw.statusCode, raw.body)
}

// fetchBody runs one logical request (with retries) under the global semaphore
// and the per-host delay, and reads the whole body.
func (f *Fetcher) fetchBody(ctx context.Context, u *url.URL, accept string) (rawResponse, error) {
	raw := rawResponse{finalURL: u.String()}

	acquireCtx := ctx
	if f.cfg.SemaphoreAcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, f.cfg.SemaphoreAcquireTimeout)
		defer cancel()
	}
	if err := f.sem.Acquire(acquireCtx, 1); err != nil {
		return raw, fmt.Errorf("acquiring request slot: %w", err)
	}
	defer f.sem.Release(1)

	host := u.Hostname()
	if err := f.limiter.ApplyDelay(ctx, host, f.cfg.DelayPerHost); err != nil {
		return raw, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return raw, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.FetchWithRetry(ctx, req)
	f.limiter.UpdateLastRequestTime(host)
	if resp != nil {
		raw.statusCode = resp.StatusCode
	}
	if err != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return raw, err
	}
	defer resp.Body.Close()

	if resp.Request != nil && resp.Request.URL != nil {
		raw.finalURL = resp.Request.URL.String()
	}
	raw.contentType = resp.Header.Get("Content-Type")

	var reader io.Reader = resp.Body
	limit := f.cfg.MaxPageSizeBytes
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return raw, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return raw, fmt.Errorf("%w: body exceeds %d bytes", utils.ErrResponseBodyRead, limit)
	}
	raw.body = body
	return raw, nil
}

// FetchWithRetry executes req, retrying network errors, 5xx and 429 with exponential backoff and jitter.
// On 2xx the response is returned with a nil error. Other 4xx and unexpected statuses are not retried:
// the response is returned together with a wrapped error and the caller must close its body.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	var currentResp *http.Response

	reqLog := f.log.WithField("url", req.URL.String())

	maxRetries := f.cfg.MaxRetries
	initialRetryDelay := f.cfg.InitialRetryDelay
	maxRetryDelay := f.cfg.MaxRetryDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) after error: %w", err, lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", err)
		}

		if attempt > 0 {
			delay := backoffDelay(initialRetryDelay, maxRetryDelay, attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request")

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				if lastErr != nil {
					return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
				}
				return nil, fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
			}
		}

		currentResp, lastErr = f.client.Do(req.WithContext(ctx))

		if lastErr != nil {
			if currentResp != nil {
				io.Copy(io.Discard, currentResp.Body)
				currentResp.Body.Close()
				currentResp = nil
			}
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				reqLog.Warnf("Context cancelled/timed out during request: %v", lastErr)
				return nil, lastErr
			}
			reqLog.WithField("attempt", attempt).Warnf("Network error: %v", lastErr)
			continue
		}

		statusCode := currentResp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Fetched")
			return currentResp, nil

		case statusCode >= 500:
			resLog.Warn("Server error, retrying")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, currentResp.Status)
			io.Copy(io.Discard, currentResp.Body)
			currentResp.Body.Close()
			currentResp = nil
			continue

		case statusCode == http.StatusTooManyRequests:
			resLog.Warn("Received 429 Too Many Requests, retrying")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)
			io.Copy(io.Discard, currentResp.Body)
			currentResp.Body.Close()
			currentResp = nil
			continue

		case statusCode >= 400 && statusCode < 500:
			resLog.Debug("Client error (4xx), not retrying")
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)

		default:
			resLog.Warnf("Unexpected status %d, not retrying", statusCode)
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, currentResp.Status)
		}
	}

	reqLog.Errorf("All %d attempts failed. Last error: %v", maxRetries+1, lastErr)
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
	}
	return nil, utils.ErrRetryFailed
}

// backoffDelay is initial * 2^(attempt-1), capped at maxDelay, with +/- 10% jitter.
func backoffDelay(initial, maxDelay time.Duration, attempt int) time.Duration {
	delay := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || (maxDelay > 0 && delay > maxDelay) {
		delay = maxDelay
	}
	if delay <= 0 {
		return 0
	}
	var jitter time.Duration
	if jitterRange := int64(delay) / 5; jitterRange > 0 {
		jitter = time.Duration(rand.Int63n(jitterRange)) - (delay / 10)
	}
	return max(delay+jitter, 0)
}
