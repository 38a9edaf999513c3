package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/newsboard/internal/metrics"
	"github.com/hitoshi/newsboard/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
	HTTPRecorder   metrics.HTTPRecorder
	Logger         *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 描画
	Renderer Renderer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ニュース・コメント
	NewsService    NewsServiceInterface
	CommentService CommentServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	SecurityHeaders → Logging → Metrics → Recovery → SessionLoader → RateLimit(General)
//
// Recoveryをログとメトリクスの内側に置き、panicも500として記録されるようにする。
//
// HTMLページにはさらにCSRFを、JSON APIにはCORSを適用する。
// コメント操作はLoginRequiredとRateLimit(Comment)を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPRecorder))
	}
	r.Use(middleware.NewRecoveryMiddleware(logger, func(w http.ResponseWriter, r *http.Request) {
		renderErrorPage(w, r, deps.Renderer, http.StatusInternalServerError, internalErrorMessage)
	}))

	// --- 運用エンドポイント（セッション不要） ---
	r.Get("/health", Health(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	newsHandler := NewNewsHandler(deps.NewsService, deps.CommentService, deps.Renderer)
	commentHandler := NewCommentHandler(deps.CommentService, deps.Renderer)
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Renderer)
	userHandler := NewUserHandler(deps.UserService, deps.Renderer, deps.AuthConfig)
	apiHandler := NewAPIHandler(deps.NewsService)

	loginRequired := middleware.NewLoginRequired(LoginURL)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionLoader(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// --- HTMLページ ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			r.Get("/", newsHandler.Home)

			r.Route("/news/{id}", func(r chi.Router) {
				r.Get("/", newsHandler.Detail)
				r.With(loginRequired, deps.RateLimiter.CommentMiddleware()).Post("/", newsHandler.PostComment)
			})

			r.Route("/comments/{id}", func(r chi.Router) {
				r.Use(loginRequired)

				r.Get("/edit", commentHandler.EditForm)
				r.With(deps.RateLimiter.CommentMiddleware()).Post("/edit", commentHandler.Edit)

				r.Get("/delete", commentHandler.DeleteConfirm)
				r.With(deps.RateLimiter.CommentMiddleware()).Post("/delete", commentHandler.Delete)
				r.With(deps.RateLimiter.CommentMiddleware()).Delete("/delete", commentHandler.Delete)
			})

			r.Get(LoginURL, authHandler.LoginForm)
			r.Post(LoginURL, authHandler.Login)
			r.Get(SignupURL, authHandler.SignupForm)
			r.Post(SignupURL, authHandler.Signup)
			r.Post(LogoutURL, authHandler.Logout)

			r.Route("/account", func(r chi.Router) {
				r.Use(loginRequired)

				r.Get("/", userHandler.Account)
				r.Post("/withdraw", userHandler.Withdraw)
			})
		})

		// --- JSON API（読み取り専用） ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

			r.Get("/auth/me", authHandler.Me)
			r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
			r.Get("/api/news", apiHandler.ListNews)
			r.Get("/api/news/{id}", apiHandler.GetNews)
			r.With(middleware.NewSessionMiddleware(deps.SessionFinder)).Get("/api/account", userHandler.AccountJSON)
		})
	})

	return r
}
