package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func resetGlobalMetrics() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.RequestCount = 0
	globalMetrics.RequestDuration = 0
	globalMetrics.ActiveRequests = 0
	globalMetrics.ErrorCount = 0
	globalMetrics.StatusCodes = make(map[string]int64)
	globalMetrics.Endpoints = make(map[string]int64)
	globalMetrics.StartTime = time.Now()
	globalMetrics.LastRequest = time.Time{}
	globalMetrics.totalDuration = 0
}

func resetGlobalHealthChecker() {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()
	globalHealthChecker.checks = make(map[string]func(ctx context.Context) error)
}

func metricsRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/tasks", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r
}

func hit(r *gin.Engine, path string) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	resetGlobalMetrics()
	r := metricsRouter()

	for i := 0; i < 5; i++ {
		hit(r, "/tasks")
	}
	hit(r, "/boom")

	m := GetMetrics()
	if m.RequestCount != 6 {
		t.Errorf("RequestCount = %d, want 6", m.RequestCount)
	}
	if m.ActiveRequests != 0 {
		t.Errorf("ActiveRequests = %d after completion", m.ActiveRequests)
	}
	if m.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", m.ErrorCount)
	}
	if m.StatusCodes["OK"] != 5 || m.StatusCodes["Internal Server Error"] != 1 {
		t.Errorf("StatusCodes = %v", m.StatusCodes)
	}
	if m.Endpoints["GET /tasks"] != 5 {
		t.Errorf("Endpoints = %v", m.Endpoints)
	}
}

func TestMetricsConcurrentAccess(t *testing.T) {
	resetGlobalMetrics()
	r := metricsRouter()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = GetMetrics()
		}
		close(done)
	}()
	for i := 0; i < 50; i++ {
		hit(r, "/tasks")
	}
	<-done

	if m := GetMetrics(); m.RequestCount != 50 {
		t.Errorf("RequestCount = %d, want 50", m.RequestCount)
	}
}

func TestGetSystemMetrics(t *testing.T) {
	m := GetSystemMetrics()
	if m.GoroutineCount <= 0 || m.CPUCount <= 0 {
		t.Errorf("runtime counts not populated: %+v", m)
	}
	if m.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q", m.GoVersion)
	}
}

func TestBToMb(t *testing.T) {
	if got := bToMb(5 * 1024 * 1024); got != 5 {
		t.Errorf("bToMb = %d, want 5", got)
	}
}

func TestHealthChecks(t *testing.T) {
	resetGlobalHealthChecker()
	RegisterHealthCheck("database", func(ctx context.Context) error { return nil })
	RegisterHealthCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	checks := RunHealthChecks()
	if checks["database"].Status != "healthy" {
		t.Errorf("database = %+v", checks["database"])
	}
	if checks["redis"].Status != "unhealthy" || checks["redis"].Message != "connection refused" {
		t.Errorf("redis = %+v", checks["redis"])
	}
}

func TestHealthHandlerStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	resetGlobalHealthChecker()
	RegisterHealthCheck("ok", func(ctx context.Context) error { return nil })

	r := gin.New()
	r.GET("/health", HealthHandler())
	r.GET("/ready", ReadinessHandler())
	r.GET("/live", LivenessHandler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthy: got %d", w.Code)
	}

	RegisterHealthCheck("down", func(ctx context.Context) error { return errors.New("service down") })

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("not ready: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("liveness: got %d", w.Code)
	}
	var live map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &live); err != nil {
		t.Fatalf("decode liveness: %v", err)
	}
	if live["status"] != "alive" {
		t.Errorf("liveness status = %v", live["status"])
	}
}
