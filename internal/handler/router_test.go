package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/ghlogin/internal/metrics"
	"github.com/hitoshi/ghlogin/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

type mockSessionLoader struct {
	calls int
}

func (m *mockSessionLoader) LoadOrCreate(w http.ResponseWriter, r *http.Request) (*session.Handle, error) {
	m.calls++
	return new(session.Handle), nil
}

func newTestRouter(loader *mockSessionLoader, checker HealthChecker, reg *prometheus.Registry) http.Handler {
	deps := &RouterDeps{
		SessionLoader: loader,
		AuthService: &mockAuthService{
			loginRedirectURLFn: func(h *session.Handle) string { return "https://github.com/login/oauth/authorize?client_id=id" },
		},
		HealthChecker: checker,
	}
	if reg != nil {
		deps.Gatherer = reg
		deps.StatusRecorder = metrics.NewCollector(reg)
	}
	return NewRouter(deps)
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"ok", nil, http.StatusOK, `{"status":"ok"}`},
		{"db down", errors.New("connection refused"), http.StatusServiceUnavailable, `{"status":"unavailable"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &mockSessionLoader{}
			router := newTestRouter(loader, &mockHealthChecker{err: tt.err}, nil)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if strings.TrimSpace(w.Body.String()) != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
			// ヘルスチェックではセッションを割り当てない
			if loader.calls != 0 {
				t.Errorf("session loader calls = %d, want 0", loader.calls)
			}
		})
	}
}

func TestRouter_Login_UsesSessionMiddleware(t *testing.T) {
	loader := &mockSessionLoader{}
	router := newTestRouter(loader, &mockHealthChecker{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if loader.calls != 1 {
		t.Errorf("session loader calls = %d, want 1", loader.calls)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be applied")
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := newTestRouter(&mockSessionLoader{}, &mockHealthChecker{}, reg)

	// 1回リクエストしてステータスを記録させる
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `ghlogin_http_status_total{status_code="302"} 1`) {
		t.Errorf("metrics should contain the recorded 302, got:\n%s", body)
	}
}

func TestRouter_Metrics_DisabledWithoutGatherer(t *testing.T) {
	router := newTestRouter(&mockSessionLoader{}, &mockHealthChecker{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRouter_Static(t *testing.T) {
	loader := &mockSessionLoader{}
	router := newTestRouter(loader, &mockHealthChecker{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if loader.calls != 0 {
		t.Errorf("session loader calls = %d, want 0", loader.calls)
	}
}
