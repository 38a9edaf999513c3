// Package importer は外部のRSS/Atomフィードからニュースを定期的に取り込む。
package importer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/newsboard/internal/cache"
)

// DefaultInterval はStartに0以下の間隔が渡された場合に使う巡回間隔。
const DefaultInterval = 15 * time.Minute

// SourceFetcher は取り込み元1件の取得処理のインターフェース。
type SourceFetcher interface {
	Fetch(ctx context.Context, src *Source) (int, error)
}

// Importer は取り込み元の一覧を定期的に巡回する。
// 同時に取得する取り込み元の数はmaxConcurrencyで制限する。
type Importer struct {
	sources        []*Source
	fetcher        SourceFetcher
	homeCache      cache.HomeCache
	logger         *slog.Logger
	maxConcurrency int
	now            func() time.Time
}

// NewImporter はImporterを生成する。
// maxConcurrencyが0以下の場合は4を使用する。homeCacheがnilの場合は無効化を行わない。
func NewImporter(
	sources []*Source,
	fetcher SourceFetcher,
	homeCache cache.HomeCache,
	logger *slog.Logger,
	maxConcurrency int,
) *Importer {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if homeCache == nil {
		homeCache = cache.NopHomeCache{}
	}
	return &Importer{
		sources:        sources,
		fetcher:        fetcher,
		homeCache:      homeCache,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// Start はinterval間隔で取り込みを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで戻らない。
func (im *Importer) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	im.logger.Info("news importer started",
		slog.Duration("interval", interval),
		slog.Int("sources", len(im.sources)),
		slog.Int("max_concurrency", im.maxConcurrency),
	)

	im.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			im.logger.Info("news importer stopped")
			return
		case <-ticker.C:
			im.RunOnce(ctx)
		}
	}
}

// RunOnce は取り込み時刻に達した取り込み元を並列に取得し、新規挿入数の合計を返す。
// 1件でも挿入された場合はトップページのキャッシュを破棄する。
func (im *Importer) RunOnce(ctx context.Context) int {
	start := im.now()

	var due []*Source
	for _, src := range im.sources {
		if src.Due(start) {
			due = append(due, src)
		}
	}
	if len(due) == 0 {
		im.logger.Debug("no sources due for import")
		return 0
	}

	sem := make(chan struct{}, im.maxConcurrency)
	var wg sync.WaitGroup
	var total atomic.Int64

	for _, src := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(src *Source) {
			defer wg.Done()
			defer func() { <-sem }()

			inserted, err := im.fetcher.Fetch(ctx, src)
			total.Add(int64(inserted))
			if err != nil {
				im.logger.Error("failed to import source",
					slog.String("source_url", src.URL),
					slog.String("error", err.Error()),
				)
			}
		}(src)
	}
	wg.Wait()

	inserted := int(total.Load())
	if inserted > 0 {
		if err := im.homeCache.Invalidate(ctx); err != nil {
			im.logger.Warn("failed to invalidate home cache",
				slog.String("error", err.Error()),
			)
		}
	}

	im.logger.Info("import cycle completed",
		slog.Int("sources", len(due)),
		slog.Int("news_inserted", inserted),
		slog.Float64("duration_ms", float64(im.now().Sub(start).Milliseconds())),
	)
	return inserted
}
