package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、500レスポンスを返すミドルウェアを生成する。
//
// JSON APIへのリクエストには統一エラーフォーマットで応答する。
// それ以外はrenderPageでHTMLのエラーページを描画する。renderPageがnilの場合はJSONで応答する。
func NewRecoveryMiddleware(logger *slog.Logger, renderPage func(w http.ResponseWriter, r *http.Request)) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// クライアント切断による中断はnet/httpに処理を任せる
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logger.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)

				if renderPage == nil || wantsJSON(r) {
					WriteInternalServerError(w)
					return
				}
				renderPage(w, r)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wantsJSON はリクエストがJSON APIに対するものかを判定する。
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/auth/me" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
