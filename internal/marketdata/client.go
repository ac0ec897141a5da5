package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"equity-window-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient fetches daily bar history over HTTP.
type HTTPClient struct {
	endpoint    string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new daily-history client.
func NewHTTPClient(endpoint, apiKey string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is a non-retried application-level error from the API.
type apiError struct {
	Code    int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// DailyHistory fetches daily bars for one symbol within [start, end],
// returned sorted by date ASC. Transport failures and rate limits are
// retried with exponential backoff; API-level errors are not.
func (c *HTTPClient) DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1day")
	q.Set("start_date", start.UTC().Format("2006-01-02"))
	q.Set("end_date", end.UTC().Format("2006-01-02"))
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	requestURL := c.endpoint + "/time_series?" + q.Encode()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var payload timeSeriesResponse
		if err := json.Unmarshal(respBody, &payload); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if payload.Status == "error" {
			// API errors are not retried
			return nil, &apiError{Code: payload.Code, Message: payload.Message}
		}

		bars := make([]*domain.Bar, 0, len(payload.Values))
		for _, v := range payload.Values {
			bar, err := v.toBar(symbol)
			if err != nil {
				return nil, fmt.Errorf("symbol %s: %w", symbol, err)
			}
			bars = append(bars, bar)
		}
		sort.Slice(bars, func(i, j int) bool {
			return bars[i].Date.Before(bars[j].Date)
		})
		return bars, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// DailyHistoryAll fetches daily bars for several symbols sequentially.
// Symbols that return an API error are skipped and reported back; any
// transport failure aborts.
func (c *HTTPClient) DailyHistoryAll(ctx context.Context, symbols []string, start, end time.Time) ([]*domain.Bar, []string, error) {
	var bars []*domain.Bar
	var skipped []string
	for _, symbol := range symbols {
		got, err := c.DailyHistory(ctx, symbol, start, end)
		if err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) {
				skipped = append(skipped, fmt.Sprintf("%s: %v", symbol, err))
				continue
			}
			return nil, nil, err
		}
		bars = append(bars, got...)
	}
	return bars, skipped, nil
}
