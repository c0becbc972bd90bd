package stubserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestServer(t *testing.T, cfg Config) (*Server, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	cfg.Now = clock.Now
	return NewServer(cfg, zerolog.Nop()), clock
}

const token = "tok-123"

func do(t *testing.T, s *Server, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: token})
	req.Header.Set("X-CSRFToken", token)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func trigger(t *testing.T, s *Server, body any) string {
	t.Helper()
	code, out := do(t, s, http.MethodPost, "/api/trigger-scan/", body)
	require.Equal(t, http.StatusOK, code, "body: %v", out)
	require.Equal(t, "success", out["status"])
	id, _ := out["trigger_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestCSRF_RejectsMissingTokenAndIssuesCookie(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/trigger-scan/", bytes.NewBufferString(`{"action":"match"}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "csrftoken" {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "csrftoken cookie not issued")
	assert.NotEmpty(t, cookie.Value)
}

func TestTriggerScan_Validation(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	tests := []struct {
		name string
		body any
		want string
	}{
		{"bad action", map[string]string{"action": "enroll"}, `Invalid action. Use "register" or "match".`},
		{"register without voter", map[string]string{"action": "register"}, "voter_id required for registration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := do(t, s, http.MethodPost, "/api/trigger-scan/", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "error", out["status"])
			assert.Equal(t, tt.want, out["error"])
		})
	}
}

func TestMatchFlow(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	id := trigger(t, s, map[string]string{"action": "match"})

	_, out := do(t, s, http.MethodGet, "/api/scan-result/?trigger_id="+id, nil)
	assert.Equal(t, "pending", out["status"])

	_, out = do(t, s, http.MethodGet, "/api/get-scan-trigger/", nil)
	assert.Equal(t, "trigger_active", out["status"])
	assert.Equal(t, id, out["trigger_id"])

	code, out := do(t, s, http.MethodPost, "/api/dev/scan", map[string]any{"fingerprint_id": "FP001", "score": 0.93})
	require.Equal(t, http.StatusOK, code, "body: %v", out)

	_, out = do(t, s, http.MethodGet, "/api/scan-result/?trigger_id="+id, nil)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "1", out["voter_id"])
	assert.Equal(t, "John Doe", out["voter_name"])
	assert.InDelta(t, 0.93, out["score"], 1e-9)

	code, _ = do(t, s, http.MethodPost, "/api/dev/scan", map[string]any{"trigger_id": id, "fingerprint_id": "FP001"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestMatchOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		fp     string
		score  float64
		status string
	}{
		{"already voted", "FP002", 0.99, "already_voted"},
		{"unknown fingerprint", "FP404", 0.99, "error"},
		{"below threshold", "FP001", 0.5, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, Config{})
			id := trigger(t, s, map[string]string{"action": "match"})
			do(t, s, http.MethodPost, "/api/dev/scan", map[string]any{"fingerprint_id": tt.fp, "score": tt.score})
			_, out := do(t, s, http.MethodGet, "/api/scan-result/?trigger_id="+id, nil)
			assert.Equal(t, tt.status, out["status"])
		})
	}
}

func TestTriggerExpires(t *testing.T) {
	s, clock := newTestServer(t, Config{TriggerTTL: time.Minute})
	id := trigger(t, s, map[string]string{"action": "match"})
	clock.Advance(2 * time.Minute)

	_, out := do(t, s, http.MethodGet, "/api/scan-result/?trigger_id="+id, nil)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "Scan trigger expired", out["message"])

	_, out = do(t, s, http.MethodGet, "/api/get-scan-trigger/", nil)
	assert.Equal(t, "expired", out["status"])
	_, out = do(t, s, http.MethodGet, "/api/get-scan-trigger/", nil)
	assert.Equal(t, "no_trigger", out["status"])
}

func TestUnknownTrigger(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	_, out := do(t, s, http.MethodGet, "/api/scan-result/?trigger_id=nope", nil)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "Unknown trigger", out["message"])
}

func TestVerify(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	_, out := do(t, s, http.MethodPost, "/api/fingerprint-verification/", map[string]string{"fingerprint_id": "FP001"})
	assert.Equal(t, "no_session", out["status"])

	do(t, s, http.MethodPost, "/api/dev/voting-session", map[string]bool{"open": true})
	for fp, want := range map[string]string{"FP001": "verified", "FP002": "already_voted", "FP999": "not_found"} {
		_, out := do(t, s, http.MethodPost, "/api/fingerprint-verification/", map[string]string{"fingerprint_id": fp})
		assert.Equal(t, want, out["status"], fp)
	}

	code, _ := do(t, s, http.MethodPost, "/api/dev/mark-voted", map[string]string{"voter_id": "1"})
	require.Equal(t, http.StatusOK, code)
	_, out = do(t, s, http.MethodPost, "/api/fingerprint-verification/", map[string]string{"fingerprint_id": "FP001"})
	assert.Equal(t, "already_voted", out["status"])
}

func TestRegisterFlowFillsTemplates(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	_, out := do(t, s, http.MethodGet, "/api/get-latest-fingerprint/", nil)
	assert.Equal(t, "waiting", out["status"])

	trigger(t, s, map[string]string{"action": "register", "voter_id": "3"})
	do(t, s, http.MethodPost, "/api/dev/scan", map[string]any{"fingerprint_id": "FP777"})

	_, out = do(t, s, http.MethodGet, "/api/get-latest-fingerprint/", nil)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "FP777", out["fingerprint_id"])

	req := httptest.NewRequest(http.MethodGet, "/api/get-pending-templates/", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.JSONEq(t, `[{"id":"1"}]`, w.Body.String())
}

func TestTriggerRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Config{TriggerRate: 0.001, TriggerBurst: 1})
	trigger(t, s, map[string]string{"action": "match"})
	code, out := do(t, s, http.MethodPost, "/api/trigger-scan/", map[string]string{"action": "match"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "error", out["status"])
}

func TestStartStop(t *testing.T) {
	s, _ := newTestServer(t, Config{Addr: "127.0.0.1:0"})
	require.NoError(t, s.Start())
	resp, err := http.Get("http://" + s.Addr() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, s.Stop())
}
