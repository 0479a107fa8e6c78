package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/cleannote/internal/metrics"
	"github.com/hitoshi/cleannote/internal/middleware"
	"github.com/hitoshi/cleannote/internal/transcribe"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// エントリとAI整形
	EntryService EntryServiceInterface
	TidyService  TidyServiceInterface

	// 統計
	StatsService StatsServiceInterface

	// 週次インサイト
	InsightService InsightServiceInterface

	// 音声文字起こし。nilの場合はエンドポイントが503を返す
	Transcriber   transcribe.Transcriber
	MaxAudioBytes int64

	// 観測
	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer

	// ヘルスチェック。nilの場合はプロセス生存のみを確認する
	HealthCheck func(ctx context.Context) error
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//
// 認証ルート（/auth/*）とヘルスチェック・メトリクスは認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	entryHandler := NewEntryHandler(deps.EntryService, deps.TidyService)
	statsHandler := NewStatsHandler(deps.StatsService)
	insightHandler := NewInsightHandler(deps.InsightService)
	transcribeHandler := NewTranscribeHandler(deps.Transcriber, deps.Collector, deps.MaxAudioBytes)

	// --- 認証不要のルート ---

	r.Get("/healthz", newHealthzHandler(deps.HealthCheck))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		aiGen := deps.RateLimiter.AIGenerationMiddleware()

		// エントリ管理
		r.Route("/api/entries", func(r chi.Router) {
			r.Post("/", entryHandler.Create)
			r.Get("/", entryHandler.List)

			// POST /api/entries/preview-tidy - 保存前整形（AI生成レート制限を追加）
			r.With(aiGen).Post("/preview-tidy", entryHandler.PreviewTidy)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", entryHandler.Get)
				r.Patch("/", entryHandler.Patch)
				r.Delete("/", entryHandler.Delete)

				// POST /api/entries/{id}/tidy - 保存済みエントリの整形
				r.With(aiGen).Post("/tidy", entryHandler.Tidy)
			})
		})

		// ダッシュボード・統計
		r.Get("/api/dashboard/stats", statsHandler.Dashboard)
		r.Get("/api/statistics", statsHandler.Statistics)

		// 週次インサイト
		r.Route("/api/insights", func(r chi.Router) {
			r.Get("/", insightHandler.Get)
			r.Get("/history", insightHandler.List)
			r.Post("/", insightHandler.Save)
			r.With(aiGen).Post("/generate", insightHandler.Generate)
		})

		// 音声文字起こし
		r.With(aiGen).Post("/api/voice/transcribe", transcribeHandler.Transcribe)
	})

	return r
}

// newHealthzHandler はヘルスチェックエンドポイントのハンドラーを返す。
func newHealthzHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
