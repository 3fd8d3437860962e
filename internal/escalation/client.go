package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/scheduler"
)

// ClientConfig locates and authenticates against a relay.
type ClientConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Retry   *scheduler.RetryStrategy
}

// Client is the HTTP relay client.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
	retry  *scheduler.RetryStrategy
}

// NewClient validates cfg and returns a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperrors.ErrNoRelay
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid relay url %q", cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := cfg.Retry
	if retry == nil {
		retry = &scheduler.RetryStrategy{
			MaxRetries:    3,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
		}
	}
	return &Client{
		base:   base,
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: timeout},
		retry:  retry,
	}, nil
}

// Schedule creates or replaces a task on the relay.
func (c *Client) Schedule(ctx context.Context, t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	var resp ScheduleResponse
	if err := c.do(ctx, http.MethodPost, "/v1/schedule", t, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", apperrors.ErrRelayRejected, resp.Error)
	}
	logging.Debug("relay task scheduled",
		logging.String("task_id", resp.TaskID),
		logging.Time("scheduled_time", t.ScheduledTime))
	return nil
}

// Cancel drops a task. Unknown tasks are not an error.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	var resp CancelResponse
	if err := c.do(ctx, http.MethodPost, "/v1/cancel", CancelRequest{TaskID: taskID}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", apperrors.ErrRelayRejected, resp.Error)
	}
	return nil
}

// Status returns one task.
func (c *Client) Status(ctx context.Context, taskID string) (TaskStatus, error) {
	var resp TaskStatus
	err := c.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(taskID), nil, &resp)
	return resp, err
}

// List returns every task the relay knows.
func (c *Client) List(ctx context.Context) ([]TaskStatus, error) {
	var resp TaskList
	if err := c.do(ctx, http.MethodGet, "/v1/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Health checks the relay is up.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("%w: status %q", apperrors.ErrRelayUnavailable, resp.Status)
	}
	return nil
}

// statusError is a non-2xx answer.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.code, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	op := func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrRelayUnavailable, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%w: read body: %v", apperrors.ErrRelayUnavailable, err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, path))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%w: %w", apperrors.ErrRelayRejected,
				&statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	err := backoff.Retry(op, c.retry.BackOff(ctx))
	if errors.Is(err, apperrors.ErrRelayRejected) {
		return err
	}
	var se *statusError
	if errors.As(err, &se) {
		return fmt.Errorf("%w: %v", apperrors.ErrRelayUnavailable, se)
	}
	return err
}
