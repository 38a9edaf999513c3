package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/newsboard/internal/auth"
	"github.com/hitoshi/newsboard/internal/cache"
	"github.com/hitoshi/newsboard/internal/comment"
	"github.com/hitoshi/newsboard/internal/config"
	"github.com/hitoshi/newsboard/internal/database"
	"github.com/hitoshi/newsboard/internal/handler"
	"github.com/hitoshi/newsboard/internal/metrics"
	"github.com/hitoshi/newsboard/internal/middleware"
	"github.com/hitoshi/newsboard/internal/news"
	"github.com/hitoshi/newsboard/internal/repository"
	"github.com/hitoshi/newsboard/internal/user"
)

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// openHomeCache はREDIS_URLが設定されていればRedisキャッシュを返す。
// 未設定または接続できない場合はキャッシュなしで動作する。
func openHomeCache(ctx context.Context, cfg *config.Config) (cache.HomeCache, func()) {
	if cfg.RedisURL == "" {
		return cache.NopHomeCache{}, func() {}
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unavailable, home cache disabled",
			slog.String("error", err.Error()),
		)
		return cache.NopHomeCache{}, func() {}
	}

	slog.Info("home cache enabled", slog.Duration("ttl", cfg.HomeCacheTTL))
	return cache.NewRedisHomeCache(client, cfg.HomeCacheTTL), func() { client.Close() }
}

// newMetricsRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを返す。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newHandler は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 戻り値のstopはレートリミッターのクリーンアップを停止する。
func newHandler(cfg *config.Config, db *sql.DB, homeCache cache.HomeCache) (http.Handler, func(), error) {
	renderer, err := handler.NewTemplateRenderer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load templates: %w", err)
	}

	reg, collector := newMetricsRegistry()

	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	newsRepo := repository.NewPostgresNewsRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)

	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	newsService := news.NewService(newsRepo, commentRepo, homeCache, cfg.NewsCountOnHomePage)
	commentService := comment.NewService(commentRepo, newsRepo, collector)
	userService := user.NewService(userRepo, sessionRepo, commentRepo)

	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitComment),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),
		HTTPRecorder:   collector,
		Logger:         slog.Default(),

		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,

		Renderer: renderer,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		NewsService:    newsService,
		CommentService: commentService,
		UserService:    userService,
	})

	return router, rateLimiter.Stop, nil
}

// runServe はWebサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	homeCache, closeCache := openHomeCache(context.Background(), cfg)
	defer closeCache()

	router, stopLimiter, err := newHandler(cfg, db, homeCache)
	if err != nil {
		return err
	}
	defer stopLimiter()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
			slog.Int("news_count_on_home_page", cfg.NewsCountOnHomePage),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}
