package relay

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
	"github.com/lcrostarosa/vigil/internal/escalation"
	"github.com/lcrostarosa/vigil/internal/middleware"
)

const testKey = "relay-secret"

func newTestServer(t *testing.T) (*httptest.Server, *TaskStore, *recordingSender) {
	t.Helper()
	s := newStore(t)
	sender := &recordingSender{}
	d := newDispatcher(t, s, sender, 0)

	srv := NewServer(ServerConfig{
		APIKey:    testKey,
		RateLimit: &middleware.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000, CleanupInterval: time.Hour, MaxAge: time.Hour},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("vigil_relay_tasks_total 0\n"))
		}),
	}, d)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, s, sender
}

func newClient(t *testing.T, url, key string) *escalation.Client {
	t.Helper()
	c, err := escalation.NewClient(escalation.ClientConfig{URL: url, APIKey: key})
	require.NoError(t, err)
	return c
}

func TestServer_Health(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	require.NoError(t, newClient(t, ts.URL, "").Health(ctx))
}

func TestServer_RequiresKey(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/tasks")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	err = newClient(t, ts.URL, "wrong").Schedule(ctx, task("t1", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, apperrors.ErrRelayRejected)
}

func TestServer_ScheduleStatusCancel(t *testing.T) {
	ts, s, sender := newTestServer(t)
	c := newClient(t, ts.URL, testKey)
	at := time.Now().Add(time.Hour).Truncate(time.Millisecond)

	require.NoError(t, c.Schedule(ctx, task("vigil-abc-2026-03-17", at)))

	st, err := c.Status(ctx, "vigil-abc-2026-03-17")
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, "pending", st.Status)
	assert.Equal(t, "al***@example.com", st.Destination)
	require.NotNil(t, st.ScheduledTime)
	assert.True(t, st.ScheduledTime.Equal(at))

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, c.Cancel(ctx, "vigil-abc-2026-03-17"))
	require.NoError(t, c.Cancel(ctx, "vigil-abc-2026-03-17"), "cancel is idempotent")
	require.NoError(t, c.Cancel(ctx, "never-existed"))

	rec, _, err := s.Get(ctx, "vigil-abc-2026-03-17")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, rec.Status)
	assert.Zero(t, sender.count())
}

func TestServer_UnknownTask(t *testing.T) {
	ts, _, _ := newTestServer(t)

	st, err := newClient(t, ts.URL, testKey).Status(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, st.Exists)
}

func TestServer_PastTimeSendsImmediately(t *testing.T) {
	ts, _, sender := newTestServer(t)

	require.NoError(t, newClient(t, ts.URL, testKey).Schedule(ctx, task("late", time.Now().Add(-time.Minute))))
	require.Eventually(t, func() bool { return sender.count() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestServer_ScheduleValidation(t *testing.T) {
	ts, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing id", `{"destination":"a@b.c","message":"m","scheduledTime":"2026-03-17T22:15:00Z"}`},
		{"missing destination", `{"taskId":"t","message":"m","scheduledTime":"2026-03-17T22:15:00Z"}`},
		{"missing time", `{"taskId":"t","destination":"a@b.c","message":"m"}`},
		{"bad channel", `{"taskId":"t","destination":"a@b.c","message":"m","channel":"pigeon","scheduledTime":"2026-03-17T22:15:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/schedule", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			req.Header.Set("X-API-Key", testKey)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body middleware.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestServer_ListFilter(t *testing.T) {
	ts, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/tasks?status=bogus", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	ts, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
