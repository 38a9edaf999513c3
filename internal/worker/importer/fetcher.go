package importer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newsboard/internal/metrics"
	"github.com/hitoshi/newsboard/internal/model"
	"github.com/hitoshi/newsboard/internal/security"
)

// maxTitleLength はnews.titleカラムの最大文字数。
const maxTitleLength = 255

// NewsUpserter は取り込んだニュースを保存するインターフェース。
type NewsUpserter interface {
	UpsertFromSource(ctx context.Context, news *model.News) (bool, error)
}

// Fetcher は1つの取り込み元を取得してニュースとして保存する。
type Fetcher struct {
	client    *http.Client
	upserter  NewsUpserter
	sanitizer security.ContentSanitizer
	recorder  metrics.ImportRecorder
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time
}

// NewFetcher はFetcherを生成する。clientにはSSRF対策済みのクライアントを渡す。
// intervalは成功時に次の取り込みまで空ける時間。
func NewFetcher(
	client *http.Client,
	upserter NewsUpserter,
	sanitizer security.ContentSanitizer,
	recorder metrics.ImportRecorder,
	logger *slog.Logger,
	interval time.Duration,
) *Fetcher {
	return &Fetcher{
		client:    client,
		upserter:  upserter,
		sanitizer: sanitizer,
		recorder:  recorder,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
	}
}

// Fetch は取り込み元を条件付きGETで取得し、新規に挿入したニュース数を返す。
// 取得結果に応じてSourceの状態を更新する。
func (f *Fetcher) Fetch(ctx context.Context, src *Source) (int, error) {
	start := f.now()
	defer func() {
		if f.recorder != nil {
			f.recorder.RecordImportLatency(f.now().Sub(start))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		src.applyStop(err.Error())
		f.recordFailure(src, "invalid_request")
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Newsboard/1.0 (+news importer)")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if src.ETag != "" {
		req.Header.Set("If-None-Match", src.ETag)
	}
	if src.LastModified != "" {
		req.Header.Set("If-Modified-Since", src.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		src.applyBackoff(f.now(), err.Error())
		f.recordFailure(src, "request")
		return 0, fmt.Errorf("failed to fetch %s: %w", src.URL, err)
	}
	defer resp.Body.Close()

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultOK:
	case FetchResultNotModified:
		src.applySuccess(f.now(), f.interval)
		f.logger.Info("source not modified",
			slog.String("source_url", src.URL),
			slog.Int("http_status", resp.StatusCode),
		)
		return 0, nil
	case FetchResultStop:
		reason := fmt.Sprintf("stopped by HTTP status %d", resp.StatusCode)
		src.applyStop(reason)
		f.recordFailure(src, "http_stop")
		f.logger.Warn("source import stopped",
			slog.String("source_url", src.URL),
			slog.Int("http_status", resp.StatusCode),
		)
		return 0, fmt.Errorf("%s: %s", src.URL, reason)
	default:
		reason := fmt.Sprintf("backoff by HTTP status %d", resp.StatusCode)
		src.applyBackoff(f.now(), reason)
		f.recordFailure(src, "http_backoff")
		f.logger.Warn("source import backing off",
			slog.String("source_url", src.URL),
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", src.ConsecutiveErrors),
			slog.Time("next_attempt_at", src.NextAttemptAt),
		)
		return 0, fmt.Errorf("%s: %s", src.URL, reason)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		src.applyParseFailure(f.now(), f.interval, err.Error())
		if f.recorder != nil {
			f.recorder.RecordParseFailure(src.URL)
		}
		f.logger.Error("failed to parse source",
			slog.String("source_url", src.URL),
			slog.Int("consecutive_errors", src.ConsecutiveErrors),
			slog.String("error", err.Error()),
		)
		return 0, nil
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		src.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		src.LastModified = lastMod
	}

	today := f.now()
	inserted, updated := 0, 0
	for _, parsed := range convertItems(feed.Items) {
		n := f.toNews(src.URL, parsed, today)
		created, err := f.upserter.UpsertFromSource(ctx, n)
		if err != nil {
			src.applyBackoff(f.now(), err.Error())
			f.recordFailure(src, "store")
			return inserted, fmt.Errorf("failed to store news from %s: %w", src.URL, err)
		}
		if created {
			inserted++
		} else {
			updated++
		}
	}

	src.applySuccess(f.now(), f.interval)
	if f.recorder != nil {
		f.recorder.RecordImportSuccess(src.URL)
		f.recorder.RecordNewsImported(inserted)
	}

	f.logger.Info("source imported",
		slog.String("source_url", src.URL),
		slog.Int("news_inserted", inserted),
		slog.Int("news_updated", updated),
		slog.Int("items_total", len(feed.Items)),
		slog.Float64("duration_ms", float64(f.now().Sub(start).Milliseconds())),
	)
	return inserted, nil
}

func (f *Fetcher) recordFailure(src *Source, reason string) {
	if f.recorder != nil {
		f.recorder.RecordImportFailure(src.URL, reason)
	}
}

// toNews はパース結果を保存用のニュースに変換する。
// 本文はHTMLを無害化した上でプレーンテキストにする。
func (f *Fetcher) toNews(sourceURL string, parsed model.ParsedNews, today time.Time) *model.News {
	date := today
	if parsed.PublishedAt != nil {
		date = *parsed.PublishedAt
	}
	return &model.News{
		Title:      truncateRunes(parsed.Title, maxTitleLength),
		Text:       f.sanitizer.PlainText(f.sanitizer.Sanitize(parsed.Content)),
		Date:       model.TruncateToDate(date),
		SourceURL:  sourceURL,
		SourceGUID: parsed.GUID,
	}
}

// convertItems はgofeedの記事をParsedNewsに変換する。
// タイトルか識別子を持たない記事は取り込まない。
func convertItems(items []*gofeed.Item) []model.ParsedNews {
	out := make([]model.ParsedNews, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		title := strings.TrimSpace(item.Title)
		guid := strings.TrimSpace(item.GUID)
		if guid == "" {
			guid = strings.TrimSpace(item.Link)
		}
		if title == "" || guid == "" {
			continue
		}

		parsed := model.ParsedNews{
			GUID:    guid,
			Title:   title,
			Content: item.Content,
		}
		if parsed.Content == "" {
			parsed.Content = item.Description
		}

		switch {
		case item.PublishedParsed != nil:
			t := *item.PublishedParsed
			parsed.PublishedAt = &t
		case item.UpdatedParsed != nil:
			t := *item.UpdatedParsed
			parsed.PublishedAt = &t
		}

		out = append(out, parsed)
	}
	return out
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
