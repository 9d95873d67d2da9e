package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/timecard/internal/auth"
	"github.com/hitoshi/timecard/internal/clock"
	"github.com/hitoshi/timecard/internal/config"
	"github.com/hitoshi/timecard/internal/database"
	"github.com/hitoshi/timecard/internal/handler"
	"github.com/hitoshi/timecard/internal/logger"
	"github.com/hitoshi/timecard/internal/metrics"
	"github.com/hitoshi/timecard/internal/middleware"
	"github.com/hitoshi/timecard/internal/repository"
	"github.com/hitoshi/timecard/internal/security"
	"github.com/hitoshi/timecard/internal/stats"
	"github.com/hitoshi/timecard/internal/user"
	"github.com/hitoshi/timecard/internal/worker/cleanup"
	"github.com/hitoshi/timecard/internal/worksession"
)

const (
	dbPingTimeout   = 5 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、.envと環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .env（存在する場合のみ）と環境変数から設定を読み込む
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("unknown LOG_LEVEL, using info", slog.String("log_level", cfg.LogLevel))
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	var direction MigrateAction
	if cmd == CommandMigrate {
		var err error
		if direction, err = ParseMigrateAction(args[1:]); err != nil {
			return err
		}
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
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
		return runMigrate(cfg, direction, w)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// newRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// buildRouter は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
// 戻り値のcleanupでレート制限のバックグラウンド処理を停止する。
func buildRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry, collector *metrics.Collector) (http.Handler, func()) {
	clk := clock.System{}

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	authSessionRepo := repository.NewPostgresAuthSessionRepo(db)
	workSessionRepo := repository.NewPostgresWorkSessionRepo(db)

	// 2. セキュリティ
	urlGuard := security.NewURLGuard()
	sanitizer := security.NewDescriptionSanitizer()

	// 3. ドメインサービスの初期化
	userService := user.NewService(userRepo, urlGuard, clk)

	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		HTTPClient:   urlGuard.NewSafeClient(cfg.OAuthHTTPTimeout),
	})
	authService := auth.NewService(oauthProvider, userService, authSessionRepo, clk,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	sessionService := worksession.NewService(workSessionRepo, clk, sanitizer, collector)
	statsService := stats.NewService(workSessionRepo, userRepo, clk)

	// 4. レート制限（設定値はreq/min）
	rlCfg := middleware.DefaultRateLimiterConfig()
	rlCfg.GeneralRate, rlCfg.GeneralBurst = middleware.PerMinute(cfg.RateLimitGeneral)
	rlCfg.ClockRate, rlCfg.ClockBurst = middleware.PerMinute(cfg.RateLimitClock)
	rateLimiter := middleware.NewRateLimiter(rlCfg)

	// 5. ルーターの構築
	deps := &handler.RouterDeps{
		SessionFinder:     authSessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		Logger:      slog.Default(),

		DB:              db,
		MetricsGatherer: reg,
		HTTPRecorder:    collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		SessionService: sessionService,
		StatsService:   statsService,
		UserService:    userService,
		ZoneResolver:   handler.NewDisplayZoneAdapter(userService),

		ReportsAPIToken: cfg.ReportsAPIToken,
	}

	return handler.NewRouter(deps), rateLimiter.Stop
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg, collector := newRegistry()
	router, stopLimiter := buildRouter(cfg, db, reg, collector)
	defer stopLimiter()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return serveUntilDone(ctx, server)
}

// serveUntilDone はctxがキャンセルされるまでserverを実行し、その後シャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れログインセッションの削除ジョブをctxがキャンセルされるまで実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// ワーカーは/metricsを公開しないため、専用のレジストリに記録する
	collector := metrics.NewCollector(prometheus.NewRegistry())

	job := cleanup.NewJob(
		repository.NewPostgresAuthSessionRepo(db),
		collector,
		clock.System{},
		slog.Default(),
	)

	slog.Info("worker starting",
		slog.Duration("auth_session_cleanup_interval", cfg.AuthSessionCleanupInterval),
	)
	job.Start(ctx, cfg.AuthSessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// versionの場合は適用済みバージョンをwに出力する。
func runMigrate(cfg *config.Config, action MigrateAction, w io.Writer) error {
	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateVersion:
		version, dirty, err := database.Version(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration version failed: %w", err)
		}
		if w == nil {
			w = os.Stdout
		}
		fmt.Fprintf(w, "version=%d dirty=%t\n", version, dirty)
		return nil
	case MigrateDown:
		if err := database.Migrate(cfg.DatabaseURL, database.MigrateDown); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	default:
		if err := database.Migrate(cfg.DatabaseURL, database.MigrateUp); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(healthURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(healthURL)
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
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
