package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/avast/retry-go/v4"
)

const maxErrorBody = 512

// StatusError is a non-200 upstream answer.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Retryable reports whether another attempt could succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsRateLimited reports whether err carries an upstream 429.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}

// Client performs JSON calls with a per-call timeout and a small fixed-delay retry.
type Client struct {
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
}

func NewClient(timeout time.Duration, attempts uint, delay time.Duration) *Client {
	if attempts == 0 {
		attempts = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		attempts:   attempts,
		delay:      delay,
	}
}

// HTTPClient is the underlying client, shared with SDKs that accept one.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	return c.doJSON(ctx, http.MethodGet, url, headers, nil, out)
}

func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, url, headers, payload, out)
}

// GetBytes downloads a body as-is.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := c.retry(ctx, func() error {
		body, err := c.roundTrip(ctx, http.MethodGet, url, nil, nil)
		if err != nil {
			return err
		}
		data = body
		return nil
	})
	return data, err
}

func (c *Client) doJSON(ctx context.Context, method, url string, headers map[string]string, payload []byte, out any) error {
	return c.retry(ctx, func() error {
		body, err := c.roundTrip(ctx, method, url, headers, payload)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return retry.Unrecoverable(fmt.Errorf("failed to decode response from %s: %w", url, err))
		}
		return nil
	})
}

func (c *Client) roundTrip(ctx context.Context, method, url string, headers map[string]string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error repeats the full URL, query keys included
		var uerr *neturl.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("failed to call %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{URL: req.URL.Host + req.URL.Path, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

func (c *Client) retry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if !retry.IsRecoverable(err) {
				return false
			}
			var se *StatusError
			if errors.As(err, &se) {
				return se.Retryable()
			}
			return ctx.Err() == nil
		}),
	)
}
