package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefeed/trendwatch/internal/config"
	"github.com/pulsefeed/trendwatch/internal/detect"
	"github.com/pulsefeed/trendwatch/internal/metrics"
)

type fakeRunner struct {
	stats *detect.Stats
	err   error
	opts  detect.Options
	calls int
}

func (f *fakeRunner) Run(_ context.Context, opts detect.Options) (*detect.Stats, error) {
	f.calls++
	f.opts = opts
	return f.stats, f.err
}

type fakeDB struct {
	pingErr error
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }
func (f *fakeDB) Stats() map[string]interface{} {
	return map[string]interface{}{"open_connections": 1}
}

func newTestServer(runner Runner, db DBHealth, perMin, burst int) *Server {
	cfg := config.Default()
	cfg.HTTP.CronSecret = "cron-secret"
	cfg.HTTP.AdminToken = "admin-token"
	cfg.HTTP.RateLimitPerMin = perMin
	cfg.HTTP.RateBurst = burst
	cfg.HTTP.AllowedOrigins = []string{"https://dash.example"}
	return NewServer(cfg.HTTP, cfg.Detector, runner, db, metrics.NewRegistry(), StaticToken(cfg.HTTP.AdminToken), zerolog.Nop())
}

func doDetect(t *testing.T, s *Server, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/detect", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestDetect_AuthMatrix(t *testing.T) {
	runner := &fakeRunner{stats: &detect.Stats{RunID: "r1"}}
	s := newTestServer(runner, &fakeDB{}, 100, 3)

	w := doDetect(t, s, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "no credentials")

	w = doDetect(t, s, func(r *http.Request) { r.Header.Set("X-Cron-Secret", "wrong") })
	assert.Equal(t, http.StatusUnauthorized, w.Code, "bad cron secret")

	w = doDetect(t, s, func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") })
	assert.Equal(t, http.StatusUnauthorized, w.Code, "bad bearer token")

	w = doDetect(t, s, func(r *http.Request) { r.Header.Set("X-Cron-Secret", "cron-secret") })
	assert.Equal(t, http.StatusOK, w.Code, "cron secret accepted")

	w = doDetect(t, s, func(r *http.Request) { r.Header.Set("Authorization", "Bearer admin-token") })
	assert.Equal(t, http.StatusOK, w.Code, "admin bearer accepted")

	assert.Equal(t, 2, runner.calls, "unauthorized requests never reach the runner")
}

func TestDetect_SuccessBody(t *testing.T) {
	runner := &fakeRunner{stats: &detect.Stats{
		RunID:           "r1",
		TopicsProcessed: 42,
		EventsUpserted:  7,
		TrendingCount:   3,
		BreakingCount:   1,
		DurationMs:      1234,
		PerfLimits:      []string{"budget_exhausted"},
	}}
	s := newTestServer(runner, &fakeDB{}, 100, 3)

	w := doDetect(t, s, func(r *http.Request) { r.Header.Set("X-Cron-Secret", "cron-secret") })
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 42, body["topics_processed"])
	assert.EqualValues(t, 7, body["events_upserted"])
	assert.EqualValues(t, 3, body["trending_count"])
	assert.EqualValues(t, 1, body["breaking_count"])
	assert.EqualValues(t, 1234, body["duration_ms"])
	assert.Contains(t, body["perf_limits"], "budget_exhausted")
}

func TestDetect_BodyTunesOptions(t *testing.T) {
	runner := &fakeRunner{stats: &detect.Stats{}}
	s := newTestServer(runner, &fakeDB{}, 100, 3)

	req := httptest.NewRequest(http.MethodPost, "/v1/detect",
		strings.NewReader(`{"window_hours": 6, "caps": {"articles": 10, "aggregator_items": 20, "social_posts": 30}}`))
	req.Header.Set("X-Cron-Secret", "cron-secret")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 6, runner.opts.WindowHours)
	assert.Equal(t, 10, runner.opts.Caps.Articles)
	assert.Equal(t, 30, runner.opts.Caps.SocialPosts)
}

func TestDetect_RunFailureReturns500WithPhase(t *testing.T) {
	runner := &fakeRunner{
		stats: &detect.Stats{DurationMs: 99},
		err:   &detect.PhaseError{Phase: detect.PhasePersistEvents, Err: errors.New("connection refused")},
	}
	s := newTestServer(runner, &fakeDB{}, 100, 3)

	w := doDetect(t, s, func(r *http.Request) { r.Header.Set("X-Cron-Secret", "cron-secret") })
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, detect.PhasePersistEvents, body.Phase)
	assert.EqualValues(t, 99, body.DurationMs)
	assert.Contains(t, body.Error, "connection refused")
}

func TestDetect_RateLimited(t *testing.T) {
	runner := &fakeRunner{stats: &detect.Stats{}}
	s := newTestServer(runner, &fakeDB{}, 1, 1) // 1/min, burst 1

	auth := func(r *http.Request) { r.Header.Set("X-Cron-Secret", "cron-secret") }

	w := doDetect(t, s, auth)
	require.Equal(t, http.StatusOK, w.Code)

	w = doDetect(t, s, auth)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 60, body.RetryAfter)
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeRunner{stats: &detect.Stats{}}, &fakeDB{}, 100, 3)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	down := newTestServer(&fakeRunner{stats: &detect.Stats{}}, &fakeDB{pingErr: errors.New("dead")}, 100, 3)
	w = httptest.NewRecorder()
	down.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORS_ExactOriginOnly(t *testing.T) {
	s := newTestServer(&fakeRunner{stats: &detect.Stats{}}, &fakeDB{}, 100, 3)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://dash.example")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "https://dash.example", w.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&fakeRunner{stats: &detect.Stats{}}, &fakeDB{}, 100, 3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trendwatch_run_duration_seconds")
}
