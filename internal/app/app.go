// Package app はプロセスの起動とサブコマンドごとの依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/ghlogin/internal/auth"
	"github.com/hitoshi/ghlogin/internal/config"
	"github.com/hitoshi/ghlogin/internal/database"
	"github.com/hitoshi/ghlogin/internal/handler"
	"github.com/hitoshi/ghlogin/internal/logger"
	"github.com/hitoshi/ghlogin/internal/metrics"
	"github.com/hitoshi/ghlogin/internal/repository"
	"github.com/hitoshi/ghlogin/internal/session"
	"github.com/hitoshi/ghlogin/internal/user"
	"github.com/hitoshi/ghlogin/internal/view"
	"github.com/hitoshi/ghlogin/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const (
	shutdownTimeout  = 30 * time.Second
	redisPingTimeout = 5 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, known := LookupCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		return runHealthcheck(healthcheckPort())
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if !known {
		slog.Warn("unknown command, falling back to serve", slog.String("arg", args[0]))
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はWebサーバーモードで起動する。
// 設定読み込み → DB接続 → 疎通確認 → マイグレーション → 待ち受けの順に進み、
// 途中のエラーはそのまま返す。ctxのキャンセルでグレースフルシャットダウンする。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	// 2. スキーマの適用
	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations applied")
	}

	// 3. セッションストア
	sessionRepo, closeStore, err := newSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	// 4. メトリクス
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 5. ルーターの構築
	router, err := newRouter(cfg, db, sessionRepo, reg, collector)
	if err != nil {
		return err
	}

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilDone(ctx, server, "web server")
}

// newRouter はサービス層を組み立ててルーターを返す。
func newRouter(
	cfg *config.Config,
	db *sql.DB,
	sessionRepo repository.SessionRepository,
	reg *prometheus.Registry,
	collector *metrics.Collector,
) (http.Handler, error) {
	manager, err := session.NewManager(sessionRepo, session.Options{
		TTL:               cfg.SessionTTL(),
		Secret:            cfg.SessionSecret,
		Secure:            cfg.CookieSecure,
		SaveUninitialized: cfg.SessionSaveUninitialized,
	}, collector)
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	oauthClient := auth.NewGitHubOAuthClient(auth.GitHubOAuthConfig{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		Timeout:      cfg.GitHubHTTPTimeout,
	}, collector)

	userService := user.NewService(repository.NewPostgresUserRepo(db))
	authService := auth.NewService(oauthClient, userService, manager, collector)

	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, err
	}

	return handler.NewRouter(&handler.RouterDeps{
		SessionLoader:  manager,
		StatusRecorder: collector,
		Logger:         slog.Default(),
		AuthService:    authService,
		Renderer:       renderer,
		HealthChecker:  db,
		Gatherer:       reg,
	}), nil
}

// newSessionStore はSESSION_REDIS_URLが設定されていればRedis、
// それ以外はPostgreSQLのsessionテーブルを使うストアを返す。
// 戻り値の関数でストアが保持する接続を閉じる。
func newSessionStore(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.SessionRepository, func() error, error) {
	if cfg.SessionRedisURL == "" {
		slog.Info("using postgres session store")
		return repository.NewPostgresSessionRepo(db), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(cfg.SessionRedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid SESSION_REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("using redis session store", slog.String("addr", opts.Addr))
	return repository.NewRedisSessionRepo(client, ""), client.Close, nil
}

// newRegistry はプロセス・ランタイムのコレクターを登録したレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// serveUntilDone はサーバーを起動し、ctxがキャンセルされたらシャットダウンする。
// 待ち受けに失敗した場合はそのエラーを返す。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// PostgreSQLのセッションストアを使う場合は期限切れセッションを定期削除する。
// Redisはキーの有効期限で失効するため削除は行わず、メトリクスのみ公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.SessionRedisURL != "" {
		slog.Info("redis session store expires sessions by key TTL; cleanup disabled")
		return serveUntilDone(ctx, metricsServer, "worker metrics server")
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	job := cleanup.NewSessionCleanupJob(repository.NewPostgresSessionRepo(db), collector, slog.Default())
	go job.Start(ctx, cfg.SessionCleanupInterval)

	err = serveUntilDone(ctx, metricsServer, "worker metrics server")
	slog.Info("worker stopped")
	return err
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// healthcheckPort はSERVER_PORT、PORT、既定値3000の順にポートを決める。
// フル初期化をしないため設定は読み込まない。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "3000"
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	return checkHealth(fmt.Sprintf("http://localhost:%s/health", port))
}

func checkHealth(endpoint string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URLとして解釈できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
