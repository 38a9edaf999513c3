// Package cache はトップページのニュース一覧キャッシュを提供する。
package cache

import (
	"context"
	"time"

	"github.com/hitoshi/newsboard/internal/model"
)

// HomeCache はトップページ用ニュース一覧のキャッシュインターフェース。
type HomeCache interface {
	// Get はlimit件の一覧を取得する。キャッシュに無い場合はfalseを返す。
	Get(ctx context.Context, limit int) ([]model.News, bool, error)
	// Set はlimit件の一覧を保存する。
	Set(ctx context.Context, limit int, list []model.News) error
	// Invalidate は保存済みの一覧をすべて破棄する。
	Invalidate(ctx context.Context) error
}

// cachedNews はキャッシュ上のJSON表現。
type cachedNews struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Date       string    `json:"date"`
	SourceURL  string    `json:"source_url,omitempty"`
	SourceGUID string    `json:"source_guid,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

const dateLayout = "2006-01-02"

func toCached(list []model.News) []cachedNews {
	out := make([]cachedNews, len(list))
	for i, n := range list {
		out[i] = cachedNews{
			ID:         n.ID,
			Title:      n.Title,
			Text:       n.Text,
			Date:       n.Date.Format(dateLayout),
			SourceURL:  n.SourceURL,
			SourceGUID: n.SourceGUID,
			CreatedAt:  n.CreatedAt,
		}
	}
	return out
}

func fromCached(list []cachedNews) ([]model.News, error) {
	out := make([]model.News, len(list))
	for i, c := range list {
		date, err := time.Parse(dateLayout, c.Date)
		if err != nil {
			return nil, err
		}
		out[i] = model.News{
			ID:         c.ID,
			Title:      c.Title,
			Text:       c.Text,
			Date:       date,
			SourceURL:  c.SourceURL,
			SourceGUID: c.SourceGUID,
			CreatedAt:  c.CreatedAt,
		}
	}
	return out, nil
}

// NopHomeCache は何もキャッシュしない実装。Redis未設定時に使用する。
type NopHomeCache struct{}

// Get は常にキャッシュミスを返す。
func (NopHomeCache) Get(context.Context, int) ([]model.News, bool, error) { return nil, false, nil }

// Set は何もしない。
func (NopHomeCache) Set(context.Context, int, []model.News) error { return nil }

// Invalidate は何もしない。
func (NopHomeCache) Invalidate(context.Context) error { return nil }

var _ HomeCache = NopHomeCache{}
