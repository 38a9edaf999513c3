package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hitoshi/newsboard/internal/config"
	"github.com/hitoshi/newsboard/internal/metrics"
	"github.com/hitoshi/newsboard/internal/repository"
	"github.com/hitoshi/newsboard/internal/security"
	"github.com/hitoshi/newsboard/internal/worker/cleanup"
	"github.com/hitoshi/newsboard/internal/worker/importer"
)

// runWorker はワーカーモードで起動する。
// 期限切れセッションの掃除と、IMPORT_FEED_URLSが設定されていればニュース取り込みを行う。
// /metricsはSERVER_PORTで公開する。
func runWorker(cfg *config.Config) error {
	ssrfGuard := security.NewSSRFGuard()
	if err := security.ValidateSources(ssrfGuard, cfg.ImportFeedURLs); err != nil {
		return fmt.Errorf("invalid IMPORT_FEED_URLS: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	homeCache, closeCache := openHomeCache(ctx, cfg)
	defer closeCache()

	reg, collector := newMetricsRegistry()

	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), slog.Default())

	var newsImporter *importer.Importer
	if len(cfg.ImportFeedURLs) > 0 {
		fetcher := importer.NewFetcher(
			ssrfGuard.NewSafeClient(cfg.ImportTimeout, cfg.ImportMaxSize),
			repository.NewPostgresNewsRepo(db),
			security.NewContentSanitizer(),
			collector,
			slog.Default(),
			cfg.ImportInterval,
		)
		newsImporter = importer.NewImporter(
			importer.NewSources(cfg.ImportFeedURLs),
			fetcher,
			homeCache,
			slog.Default(),
			cfg.ImportMaxConcurrent,
		)
	} else {
		slog.Info("IMPORT_FEED_URLS is empty, news import disabled")
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Int("import_sources", len(cfg.ImportFeedURLs)),
		slog.Duration("import_interval", cfg.ImportInterval),
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanupJob.Start(ctx, cfg.SessionCleanupInterval)
	}()
	if newsImporter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			newsImporter.Start(ctx, cfg.ImportInterval)
		}()
	}

	<-ctx.Done()
	slog.Info("shutting down worker...")
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

