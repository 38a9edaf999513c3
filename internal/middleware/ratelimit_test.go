package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/newsboard/internal/model"
	"golang.org/x/time/rate"
)

// userRequest はユーザーIDをコンテキストに持つリクエストを生成する。
func userRequest(method, path, userID string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

// anonymousRequest は指定したリモートアドレスからの未認証リクエストを生成する。
func anonymousRequest(method, path, remoteAddr string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func testRateLimiterConfig(generalBurst, commentBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    generalBurst,
		CommentRate:     1,
		CommentBurst:    commentBurst,
		CleanupInterval: 1 * time.Minute,
	}
}

// --- GeneralMiddleware のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(5, 10))
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, userRequest(http.MethodGet, "/", "user-1"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(2, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, userRequest(http.MethodGet, "/", "user-rate-limit"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	// 3回目はレート制限に引っかかる
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, userRequest(http.MethodGet, "/", "user-rate-limit"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	retrySeconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil {
		t.Errorf("Retry-After header should be a number, got %q", resp.Header.Get("Retry-After"))
	}
	if retrySeconds < 1 {
		t.Errorf("Retry-After = %d, should be at least 1", retrySeconds)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want %q", body.Code, "RATE_LIMIT_EXCEEDED")
	}
	if body.Category == "" || body.Message == "" {
		t.Error("expected category and message in error response")
	}
}

func TestRateLimitMiddleware_IsolatesUserRateLimits(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// ユーザーAがバーストを使い切る
	handler.ServeHTTP(httptest.NewRecorder(), userRequest(http.MethodGet, "/", "user-a"))
	wA := httptest.NewRecorder()
	handler.ServeHTTP(wA, userRequest(http.MethodGet, "/", "user-a"))
	if wA.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("user-a: status = %d, want %d", wA.Result().StatusCode, http.StatusTooManyRequests)
	}

	// ユーザーBは影響を受けない
	wB := httptest.NewRecorder()
	handler.ServeHTTP(wB, userRequest(http.MethodGet, "/", "user-b"))
	if wB.Result().StatusCode != http.StatusOK {
		t.Errorf("user-b: status = %d, want %d", wB.Result().StatusCode, http.StatusOK)
	}
}

func TestRateLimitMiddleware_AnonymousRequestsLimitedByClientIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, anonymousRequest(http.MethodGet, "/", "192.0.2.1:1111"))
	if w1.Result().StatusCode != http.StatusOK {
		t.Errorf("first request: status = %d, want %d", w1.Result().StatusCode, http.StatusOK)
	}

	// 同じIPの別ポートからでも同じリミッターを共有する
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, anonymousRequest(http.MethodGet, "/", "192.0.2.1:2222"))
	if w2.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("same ip: status = %d, want %d", w2.Result().StatusCode, http.StatusTooManyRequests)
	}

	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, anonymousRequest(http.MethodGet, "/", "192.0.2.2:1111"))
	if w3.Result().StatusCode != http.StatusOK {
		t.Errorf("other ip: status = %d, want %d", w3.Result().StatusCode, http.StatusOK)
	}
}

func TestRequesterKey(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
		want string
	}{
		{"authenticated", userRequest(http.MethodGet, "/", "user-1"), "user:user-1"},
		{"anonymous with port", anonymousRequest(http.MethodGet, "/", "198.51.100.7:5555"), "ip:198.51.100.7"},
		{"anonymous without port", anonymousRequest(http.MethodGet, "/", "198.51.100.7"), "ip:198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := requesterKey(tt.req); got != tt.want {
				t.Errorf("requesterKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- CommentMiddleware のテスト ---

func TestCommentRateLimit_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(100, 3))
	defer rl.Stop()

	handler := rl.CommentMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, userRequest(http.MethodPost, "/news/n1/comments", "user-comment"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, userRequest(http.MethodPost, "/news/n1/comments", "user-comment"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
}

func TestCommentRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(100, 1))
	defer rl.Stop()

	generalHandler := rl.GeneralMiddleware()(okHandler())
	commentHandler := rl.CommentMiddleware()(okHandler())

	// コメント操作のバーストを使い切る
	commentHandler.ServeHTTP(httptest.NewRecorder(), userRequest(http.MethodPost, "/news/n1/comments", "user-indep"))
	w := httptest.NewRecorder()
	commentHandler.ServeHTTP(w, userRequest(http.MethodPost, "/news/n1/comments", "user-indep"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("comment: status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}

	// 全般のレート制限には影響しない
	w2 := httptest.NewRecorder()
	generalHandler.ServeHTTP(w2, userRequest(http.MethodGet, "/", "user-indep"))
	if w2.Result().StatusCode != http.StatusOK {
		t.Errorf("general: status = %d, want %d", w2.Result().StatusCode, http.StatusOK)
	}

	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("GeneralLimiterCount() = %d, want 1", rl.GeneralLimiterCount())
	}
	if rl.CommentLimiterCount() != 1 {
		t.Errorf("CommentLimiterCount() = %d, want 1", rl.CommentLimiterCount())
	}
}

// --- クリーンアップのテスト ---

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	cfg := testRateLimiterConfig(5, 5)
	cfg.CleanupInterval = 50 * time.Millisecond

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), userRequest(http.MethodGet, "/", "user-cleanup"))
	rl.CommentMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), userRequest(http.MethodPost, "/", "user-cleanup"))

	if rl.GeneralLimiterCount() == 0 || rl.CommentLimiterCount() == 0 {
		t.Fatal("expected limiter entries to be created")
	}

	// TTLはCleanupIntervalの2倍（100ms）なので200ms待てば削除される
	time.Sleep(200 * time.Millisecond)

	if count := rl.GeneralLimiterCount(); count != 0 {
		t.Errorf("expected 0 general entries after cleanup, got %d", count)
	}
	if count := rl.CommentLimiterCount(); count != 0 {
		t.Errorf("expected 0 comment entries after cleanup, got %d", count)
	}
}

// --- ミドルウェアチェーンとの統合テスト ---

func TestRateLimitMiddleware_InChainWithSessionLoader(t *testing.T) {
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "rate-limit-session" {
				return &model.Session{
					ID:        "rate-limit-session",
					UserID:    "user-rate-chain",
					ExpiresAt: time.Now().Add(1 * time.Hour),
				}, nil
			}
			return nil, nil
		},
	}

	rl := NewRateLimiter(testRateLimiterConfig(2, 10))
	defer rl.Stop()

	// SessionLoader -> RateLimit -> Handler
	handler := NewSessionLoader(repo)(rl.GeneralMiddleware()(okHandler()))

	for i := 0; i < 2; i++ {
		req := anonymousRequest(http.MethodGet, "/", "203.0.113.9:1000")
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "rate-limit-session"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	req3 := anonymousRequest(http.MethodGet, "/", "203.0.113.9:1000")
	req3.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "rate-limit-session"})
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, req3)
	if w3.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("request 3: status = %d, want %d", w3.Result().StatusCode, http.StatusTooManyRequests)
	}

	// 同じIPでもセッションなしのリクエストは別枠
	w4 := httptest.NewRecorder()
	handler.ServeHTTP(w4, anonymousRequest(http.MethodGet, "/", "203.0.113.9:1000"))
	if w4.Result().StatusCode != http.StatusOK {
		t.Errorf("anonymous: status = %d, want %d", w4.Result().StatusCode, http.StatusOK)
	}
}

// --- 設定値のテスト ---

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != 2.0 { // 120/60 = 2
		t.Errorf("GeneralRate = %f, want 2.0", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.CommentBurst != 20 {
		t.Errorf("CommentBurst = %d, want 20", cfg.CommentBurst)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(60, 6)

	if cfg.GeneralRate != 1.0 {
		t.Errorf("GeneralRate = %f, want 1.0", cfg.GeneralRate)
	}
	if cfg.CommentRate != 0.1 {
		t.Errorf("CommentRate = %f, want 0.1", cfg.CommentRate)
	}
	if cfg.GeneralBurst != 60 || cfg.CommentBurst != 6 {
		t.Errorf("bursts = %d/%d, want 60/6", cfg.GeneralBurst, cfg.CommentBurst)
	}
}

func TestRateLimiterConfigPerMinute_NonPositiveFallsBackToDefaults(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(0, -3)

	if cfg.GeneralBurst != 120 || cfg.CommentBurst != 20 {
		t.Errorf("bursts = %d/%d, want 120/20", cfg.GeneralBurst, cfg.CommentBurst)
	}

	// 既定値に戻ったコメント制限で投稿が通ること
	rl := NewRateLimiter(cfg)
	defer rl.Stop()
	w := httptest.NewRecorder()
	rl.CommentMiddleware()(okHandler()).ServeHTTP(w, userRequest(http.MethodPost, "/news/abc", "user-1"))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestWriteRateLimitResponse_RetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		limit float64
		want  string
	}{
		{"one per second", 1, "1"},
		{"one per ten seconds", 0.1, "10"},
		{"faster than one per second", 5, "1"},
		{"zero rate", 0, "60"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeRateLimitResponse(w, rate.Limit(tt.limit))

			if w.Code != http.StatusTooManyRequests {
				t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
			}
			if got := w.Header().Get("Retry-After"); got != tt.want {
				t.Errorf("Retry-After = %q, want %q", got, tt.want)
			}
		})
	}
}
