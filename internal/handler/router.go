package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/ghlogin/internal/metrics"
	"github.com/hitoshi/ghlogin/internal/middleware"
	"github.com/hitoshi/ghlogin/internal/view"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionLoader  middleware.SessionLoader
	StatusRecorder middleware.HTTPStatusRecorder // nilの場合は記録しない
	Logger         *slog.Logger                  // nilの場合はslog.Default()

	// 認証
	AuthService AuthServiceInterface
	Renderer    HomeRenderer

	// 運用
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer // nilの場合は/metricsを公開しない
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → Session → Logging
//
// /health、/metrics、/static/* はセッションを割り当てない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- セッション不要のルート ---
	r.Get("/health", healthHandler.Check)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Handle("/static/*", http.StripPrefix("/static/", view.StaticHandler()))

	// --- セッションを割り当てるルート ---
	// ミドルウェアスタック: Session → Logging
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionLoader))
		r.Use(middleware.NewLoggingMiddleware(logger))

		r.Get("/", authHandler.Home)
		r.Get("/login", authHandler.Login)
		r.Get("/github", authHandler.Callback)
		r.Get("/logout", authHandler.Logout)
	})

	return r
}
