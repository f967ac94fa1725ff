package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Status
}

func TestHealthServerLiveness(t *testing.T) {
	hs := NewHealthServer(":0", testLogger())

	rec := httptest.NewRecorder()
	hs.handleLiveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("liveness status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decodeStatus(t, rec); got != "ok" {
		t.Errorf("liveness body status = %q, want ok", got)
	}
}

func TestHealthServerReadinessTransition(t *testing.T) {
	hs := NewHealthServer(":0", testLogger())

	rec := httptest.NewRecorder()
	hs.handleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("initial readiness = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if got := decodeStatus(t, rec); got != "not ready" {
		t.Errorf("initial body status = %q, want not ready", got)
	}

	hs.SetReady(true)
	rec = httptest.NewRecorder()
	hs.handleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readiness after SetReady(true) = %d, want %d", rec.Code, http.StatusOK)
	}

	hs.SetReady(false)
	rec = httptest.NewRecorder()
	hs.handleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness after SetReady(false) = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthServerGracefulShutdown(t *testing.T) {
	hs := NewHealthServer("127.0.0.1:0", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- hs.Start(ctx)
	}()

	// Give ListenAndServe a moment to bind before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != http.ErrServerClosed {
			t.Errorf("Start returned %v, want http.ErrServerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("health server did not shut down in time")
	}
}

func TestNewHealthServerStartsNotReady(t *testing.T) {
	hs := NewHealthServer(":9091", testLogger())
	if hs.isReady.Load() {
		t.Error("new health server must start not ready")
	}
	if hs.addr != ":9091" {
		t.Errorf("addr = %q, want :9091", hs.addr)
	}
}
