package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/timecard/internal/metrics"
	"github.com/hitoshi/timecard/internal/middleware"
)

// healthCheckTimeout は/healthでのDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 監視
	DB              Pinger
	MetricsGatherer prometheus.Gatherer
	HTTPRecorder    metrics.HTTPRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	SessionService SessionServiceInterface
	StatsService   StatsServiceInterface
	UserService    UserServiceInterface
	ZoneResolver   ZoneResolver

	// レポートAPI。空の場合はルートを登録しない。
	ReportsAPIToken string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  → (認証ルート) Session → CSRF → RateLimit(General) [→ RateLimit(ClockAction)]
//	  → (レポートAPI) APIToken
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.HTTPRecorder != nil {
		r.Use(metrics.Middleware(deps.HTTPRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	sessionHandler := NewSessionHandler(deps.SessionService, deps.ZoneResolver)
	statsHandler := NewStatsHandler(deps.StatsService, deps.ZoneResolver)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.DB, healthCheckTimeout))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- レポートAPI（Bearerトークン） ---
	if deps.ReportsAPIToken != "" {
		reportHandler := NewReportHandler(deps.StatsService)
		r.Route("/api/reports", func(r chi.Router) {
			r.Use(middleware.NewAPITokenMiddleware(deps.ReportsAPIToken))
			r.Get("/last-day", reportHandler.LastDay)
			r.Get("/today", reportHandler.Today)
			r.Get("/last-day-all", reportHandler.LastDayAll)
			r.Get("/timeframe", reportHandler.TimeFrame)
		})
	}

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		clockAction := deps.RateLimiter.ClockActionMiddleware()

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.GetMe)
			r.Patch("/me", userHandler.UpdateMe)
		})

		r.Route("/api/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.ListSessions)
			r.With(clockAction).Post("/", sessionHandler.CreateManualSession)
			r.With(clockAction).Post("/start", sessionHandler.StartSession)
			r.Get("/current", sessionHandler.GetCurrentSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", sessionHandler.UpdateSession)
				r.Delete("/", sessionHandler.DeleteSession)
				r.With(clockAction).Post("/end", sessionHandler.EndSession)
			})
		})

		r.Route("/api/stats", func(r chi.Router) {
			r.Get("/summary", statsHandler.Summary)
			r.Get("/today", statsHandler.Today)
			r.Get("/last-day", statsHandler.LastDay)
			r.Get("/users/today", statsHandler.UsersToday)
			r.Get("/users/last-day", statsHandler.UsersLastDay)
			r.Get("/users/timeframe", statsHandler.UsersTimeFrame)
		})
	})

	return r
}
