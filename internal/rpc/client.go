package rpc

import (
	"context"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/lcrostarosa/vigil/internal/engine"
	"github.com/lcrostarosa/vigil/internal/records"
	"github.com/lcrostarosa/vigil/internal/settings"
)

// Client talks to a running daemon's control plane
type Client struct {
	baseURL string
	http    connect.HTTPClient
	opts    []connect.ClientOption
}

// NewClient creates a client for the daemon listening at addr. addr may be
// a bare host:port or a full URL.
func NewClient(addr, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		opts: []connect.ClientOption{
			connect.WithCodec(jsonCodec{}),
			connect.WithInterceptors(apiKeyInterceptor(apiKey)),
		},
	}
}

func call[Req, Res any](ctx context.Context, c *Client, procedure string, req *Req) (*Res, error) {
	cl := connect.NewClient[Req, Res](c.http, c.baseURL+procedure, c.opts...)
	resp, err := cl.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fromConnectError(err)
	}
	return resp.Msg, nil
}

// Health checks the daemon is up
func (c *Client) Health(ctx context.Context) error {
	_, err := call[Empty, CheckResponse](ctx, c, HealthCheckProcedure, &Empty{})
	return err
}

// Status returns the daemon's snapshot
func (c *Client) Status(ctx context.Context) (engine.Status, error) {
	resp, err := call[Empty, StatusResponse](ctx, c, StatusProcedure, &Empty{})
	if err != nil {
		return engine.Status{}, err
	}
	return resp.Status, nil
}

// CheckIn records activity. The result is false outside the window.
func (c *Client) CheckIn(ctx context.Context) (bool, error) {
	resp, err := call[Empty, CheckInResponse](ctx, c, CheckInProcedure, &Empty{})
	if err != nil {
		return false, err
	}
	return resp.Recorded, nil
}

// ConfirmSafe acknowledges the escalation prompt as safe
func (c *Client) ConfirmSafe(ctx context.Context) error {
	_, err := call[Empty, Empty](ctx, c, ConfirmSafeProcedure, &Empty{})
	return err
}

// Dismiss closes the escalation prompt without confirming
func (c *Client) Dismiss(ctx context.Context) error {
	_, err := call[Empty, Empty](ctx, c, DismissProcedure, &Empty{})
	return err
}

// Resume runs foreground reconciliation on the daemon
func (c *Client) Resume(ctx context.Context) (PendingResponse, error) {
	resp, err := call[Empty, PendingResponse](ctx, c, ResumeProcedure, &Empty{})
	if err != nil {
		return PendingResponse{}, err
	}
	return *resp, nil
}

// CheckPending reports whether an escalation prompt should be shown
func (c *Client) CheckPending(ctx context.Context) (PendingResponse, error) {
	resp, err := call[Empty, PendingResponse](ctx, c, PendingProcedure, &Empty{})
	if err != nil {
		return PendingResponse{}, err
	}
	return *resp, nil
}

// Settings returns the stored settings
func (c *Client) Settings(ctx context.Context) (SettingsResponse, error) {
	resp, err := call[Empty, SettingsResponse](ctx, c, GetSettingsProcedure, &Empty{})
	if err != nil {
		return SettingsResponse{}, err
	}
	return *resp, nil
}

// UpdateSettings replaces the settings
func (c *Client) UpdateSettings(ctx context.Context, s settings.Settings) (SettingsResponse, error) {
	resp, err := call[UpdateSettingsRequest, SettingsResponse](ctx, c, UpdateSettingsProcedure, &UpdateSettingsRequest{Settings: s})
	if err != nil {
		return SettingsResponse{}, err
	}
	return *resp, nil
}

// Reset resets the current cycle, or everything when req.All is set
func (c *Client) Reset(ctx context.Context, req ResetRequest) error {
	_, err := call[ResetRequest, Empty](ctx, c, ResetProcedure, &req)
	return err
}

// History returns up to limit day records, newest first
func (c *Client) History(ctx context.Context, limit int) ([]records.DayRecord, error) {
	resp, err := call[HistoryRequest, HistoryResponse](ctx, c, HistoryProcedure, &HistoryRequest{Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}
