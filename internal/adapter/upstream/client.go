package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
	"github.com/couchcryptid/reservoir-data-etl/internal/observability"
)

// maxBodyBytes caps a single response body; a decade of daily CSV is far below it.
const maxBodyBytes = 64 << 20

// HTTPDoer is the subset of *http.Client the adapters use.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Temporary reports whether the status may succeed on retry: server errors,
// timeouts and rate limiting.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

func (e *StatusError) Unwrap() error {
	return domain.ErrSourceUnavailable
}

// Options configures a Client.
type Options struct {
	Source    domain.SourceType
	Timeout   time.Duration
	UserAgent string
	Delay     time.Duration
	Policy    Policy
	Clock     clockwork.Clock
}

// Client performs throttled, retried GET requests against one upstream API.
// Each source adapter owns one Client.
type Client struct {
	source     domain.SourceType
	httpClient HTTPDoer
	userAgent  string
	throttle   *Throttle
	policy     Policy
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Client backed by a new *http.Client with opts.Timeout.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return NewClientWithDoer(&http.Client{Timeout: opts.Timeout}, opts, metrics, logger)
}

// NewClientWithDoer creates a Client around an existing HTTPDoer.
func NewClientWithDoer(doer HTTPDoer, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	policy := opts.Policy
	if policy.Clock == nil {
		policy.Clock = clock
	}
	c := &Client{
		source:     opts.Source,
		httpClient: doer,
		userAgent:  opts.UserAgent,
		throttle:   NewThrottle(opts.Delay, clock),
		clock:      clock,
		metrics:    metrics,
		logger:     logger.With("source", string(opts.Source)),
	}
	userRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		c.metrics.UpstreamRetries.WithLabelValues(string(c.source)).Inc()
		c.logger.Warn("upstream request failed, retrying", "attempt", attempt, "error", err)
		if userRetry != nil {
			userRetry(attempt, err)
		}
	}
	c.policy = policy
	return c
}

// Source returns the upstream this client talks to.
func (c *Client) Source() domain.SourceType {
	return c.source
}

// Get fetches rawURL and returns the response body. Transport failures and
// non-2xx statuses that persist after retries wrap domain.ErrSourceUnavailable.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := WithRetry(ctx, c.policy, func(ctx context.Context) error {
		if err := c.throttle.Wait(ctx); err != nil {
			return err
		}
		b, err := c.get(ctx, rawURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(string(c.source), "unavailable").Inc()
		return nil, err
	}
	c.metrics.UpstreamRequests.WithLabelValues(string(c.source), "success").Inc()
	return body, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues(string(c.source)).Observe(c.clock.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: GET %s: %w", domain.ErrSourceUnavailable, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrSourceUnavailable, rawURL, err)
	}
	c.logger.Debug("upstream response", "url", rawURL, "bytes", len(body))
	return body, nil
}
