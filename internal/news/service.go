// Package news はニュース一覧と詳細表示のドメインロジックを提供する。
package news

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/newsboard/internal/cache"
	"github.com/hitoshi/newsboard/internal/model"
	"github.com/hitoshi/newsboard/internal/repository"
)

// Detail はニュース詳細ページに表示する内容。
type Detail struct {
	News     *model.News
	Comments []model.Comment
}

// Service はニュース表示のサービス層。
type Service struct {
	newsRepo    repository.NewsRepository
	commentRepo repository.CommentRepository
	homeCache   cache.HomeCache
	pageSize    int
	nowFunc     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// homeCacheがnilの場合はキャッシュを使用しない。
func NewService(
	newsRepo repository.NewsRepository,
	commentRepo repository.CommentRepository,
	homeCache cache.HomeCache,
	pageSize int,
) *Service {
	if homeCache == nil {
		homeCache = cache.NopHomeCache{}
	}
	return &Service{
		newsRepo:    newsRepo,
		commentRepo: commentRepo,
		homeCache:   homeCache,
		pageSize:    pageSize,
		nowFunc:     time.Now,
	}
}

// PageSize はトップページに表示する最大件数を返す。
func (s *Service) PageSize() int {
	return s.pageSize
}

// Home はトップページ用に日付の新しい順で最大pageSize件のニュースを返す。
// キャッシュの障害はログに残すのみで、データベースから取得し直す。
func (s *Service) Home(ctx context.Context) ([]model.News, error) {
	list, ok, err := s.homeCache.Get(ctx, s.pageSize)
	if err != nil {
		slog.Warn("home cache read failed", slog.String("error", err.Error()))
	}
	if ok {
		return list, nil
	}

	list, err = s.newsRepo.ListLatest(ctx, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("ニュース一覧の取得に失敗しました: %w", err)
	}

	if err := s.homeCache.Set(ctx, s.pageSize, list); err != nil {
		slog.Warn("home cache write failed", slog.String("error", err.Error()))
	}

	return list, nil
}

// Total は登録されているニュースの総件数を返す。
func (s *Service) Total(ctx context.Context) (int, error) {
	n, err := s.newsRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("ニュース件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// Detail はニュースとそのコメントを作成日時の昇順で返す。
// 存在しないIDの場合はNewsNotFoundエラーを返す。
func (s *Service) Detail(ctx context.Context, newsID string) (*Detail, error) {
	n, err := s.newsRepo.FindByID(ctx, newsID)
	if err != nil {
		return nil, fmt.Errorf("ニュースの取得に失敗しました: %w", err)
	}
	if n == nil {
		return nil, model.NewNewsNotFoundError(newsID)
	}

	comments, err := s.commentRepo.ListByNews(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}

	return &Detail{News: n, Comments: comments}, nil
}

// Create はニュースを作成し、トップページのキャッシュを破棄する。
// dateがゼロ値の場合は当日の日付を使用する。
func (s *Service) Create(ctx context.Context, title, text string, date time.Time) (*model.News, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if date.IsZero() {
		date = s.nowFunc()
	}

	n := &model.News{
		Title: title,
		Text:  text,
		Date:  model.TruncateToDate(date),
	}
	if err := s.newsRepo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("ニュースの作成に失敗しました: %w", err)
	}

	if err := s.homeCache.Invalidate(ctx); err != nil {
		slog.Warn("home cache invalidation failed", slog.String("error", err.Error()))
	}

	return n, nil
}
