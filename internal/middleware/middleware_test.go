package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS_AllowedOriginWithCredentials(t *testing.T) {
	cors := NewCORSMiddleware([]string{"http://localhost:8080"})
	handler := cors.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/mesas", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/mesas", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	handler := NewCORSMiddleware([]string{"*"}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/mesas", nil)
	req.Header.Set("Origin", "http://anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	handler := rl.Handler(okHandler())

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, statuses)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.getLimiter("ip:a")

	now = now.Add(time.Hour)
	rl.getLimiter("ip:b")

	assert.Equal(t, 1, rl.Cleanup(time.Minute))
	assert.Len(t, rl.limiters, 1)
}

func TestLoggingMiddleware_TraceID(t *testing.T) {
	handler := LoggingMiddleware(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceIDHeader, "given")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "given", rec.Header().Get(TraceIDHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(TraceIDHeader))
}

type recordingMetrics struct {
	mu       sync.Mutex
	inflight float64
	paths    []string
	statuses []string
}

func (r *recordingMetrics) InFlight(delta float64) {
	r.mu.Lock()
	r.inflight += delta
	r.mu.Unlock()
}

func (r *recordingMetrics) ObserveHTTP(method, path, status string, _ time.Duration) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.statuses = append(r.statuses, status)
	r.mu.Unlock()
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	rec := &recordingMetrics{}
	router := mux.NewRouter()
	router.Use(MetricsMiddleware(rec))
	router.HandleFunc("/mesas/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/mesas/7", nil))

	require.Len(t, rec.paths, 1)
	assert.Equal(t, "/mesas/{id}", rec.paths[0])
	assert.Equal(t, strconv.Itoa(http.StatusNotFound), rec.statuses[0])
	assert.Zero(t, rec.inflight)
}

func TestWebhookSignature(t *testing.T) {
	secret := "shh"
	now := time.Unix(1_700_000_000, 0)
	verifier := NewWebhookSignature(secret, 5*time.Minute, nil)
	verifier.now = func() time.Time { return now }
	handler := verifier.Handler(okHandler())

	ts := strconv.FormatInt(now.Unix(), 10)
	sig := SignManifest([]byte(secret), "123", "req-1", ts)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago?data.id=123", nil)
	req.Header.Set(SignatureHeader, "ts="+ts+",v1="+sig)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago?data.id=999", nil)
	req.Header.Set(SignatureHeader, "ts="+ts+",v1="+sig)
	req.Header.Set(RequestIDHeader, "req-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	open := NewWebhookSignature("", 0, nil).Handler(okHandler())
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
