package importer

import (
	"fmt"
	"net/http"
	"time"
)

// FetchResult はHTTPステータスコードに基づく取得結果の分類。
type FetchResult int

const (
	// FetchResultOK は取得成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified はコンテンツ未変更（304）。
	FetchResultNotModified
	// FetchResultStop は取り込みを停止するステータス（401/403/404/410）。
	FetchResultStop
	// FetchResultBackoff はバックオフするステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown はそれ以外。
	FetchResultUnknown
)

const (
	// initialBackoff は最初の失敗後の待機時間。
	initialBackoff = 5 * time.Minute
	// maxBackoff はバックオフの上限。
	maxBackoff = 6 * time.Hour
	// parseFailureThreshold はこの回数連続でパースに失敗すると取り込みを停止する。
	parseFailureThreshold = 10
)

// Source は取り込み元フィードの状態。ワーカープロセスのメモリ上にのみ保持する。
type Source struct {
	URL               string
	ETag              string
	LastModified      string
	ConsecutiveErrors int
	NextAttemptAt     time.Time
	Stopped           bool
	LastError         string
}

// NewSources は取り込み元URLの一覧からSourceを生成する。
func NewSources(urls []string) []*Source {
	sources := make([]*Source, 0, len(urls))
	for _, u := range urls {
		sources = append(sources, &Source{URL: u})
	}
	return sources
}

// Due は取り込み対象であればtrueを返す。
func (s *Source) Due(now time.Time) bool {
	return !s.Stopped && !now.Before(s.NextAttemptAt)
}

// ClassifyHTTPStatus はHTTPステータスコードを取得結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == http.StatusOK:
		return FetchResultOK
	case statusCode == http.StatusNotModified:
		return FetchResultNotModified
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return FetchResultStop
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return FetchResultStop
	case statusCode == http.StatusTooManyRequests:
		return FetchResultBackoff
	case statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数から待機時間を求める。
// 初回5分から倍々に増え、6時間で頭打ちになる。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// applyStop は取り込みを停止する。
func (s *Source) applyStop(reason string) {
	s.Stopped = true
	s.LastError = reason
}

// applyBackoff は連続エラー回数を増やし、次回の取り込み時刻を遅らせる。
func (s *Source) applyBackoff(now time.Time, reason string) {
	s.ConsecutiveErrors++
	s.LastError = reason
	s.NextAttemptAt = now.Add(CalculateBackoff(s.ConsecutiveErrors - 1))
}

// applySuccess はエラー状態をリセットし、次回の取り込み時刻を設定する。
func (s *Source) applySuccess(now time.Time, interval time.Duration) {
	s.ConsecutiveErrors = 0
	s.LastError = ""
	s.NextAttemptAt = now.Add(interval)
}

// applyParseFailure はパース失敗を数え、閾値に達したら停止する。
func (s *Source) applyParseFailure(now time.Time, interval time.Duration, reason string) {
	s.ConsecutiveErrors++
	s.LastError = fmt.Sprintf("parse failed (%d in a row): %s", s.ConsecutiveErrors, reason)
	s.NextAttemptAt = now.Add(interval)
	if s.ConsecutiveErrors >= parseFailureThreshold {
		s.Stopped = true
	}
}
