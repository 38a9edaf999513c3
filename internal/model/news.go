// Package model はドメインモデルを定義する。
package model

import "time"

// News はニュース記事を表す。
// 公開日は日付単位で扱い、時刻部分は常に0時（UTC）とする。
type News struct {
	ID         string
	Title      string
	Text       string
	Date       time.Time
	SourceURL  string // インポート元フィードURL。手動作成の場合は空
	SourceGUID string // インポート元での記事識別子
	CreatedAt  time.Time
}

// TruncateToDate は時刻をUTCの日付単位に切り捨てる。
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParsedNews はフィードパーサーから取得した未保存のニュースデータを表す。
// インポートワーカーがフィードをパースした後に生成される。
type ParsedNews struct {
	GUID        string
	Title       string
	Content     string // 未サニタイズのHTML
	PublishedAt *time.Time
}
