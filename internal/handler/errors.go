package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/newsboard/internal/middleware"
	"github.com/hitoshi/newsboard/internal/model"
)

// internalErrorMessage は500エラーページに表示する文言。
const internalErrorMessage = "内部エラーが発生しました。しばらく待ってから再度お試しください。"

// handleServiceError はサービス層から返されたエラーをJSONエラーレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeNewsNotFound, model.ErrCodeCommentNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidComment, model.ErrCodeInvalidSignup:
		return http.StatusBadRequest
	case model.ErrCodeDuplicateUsername:
		return http.StatusConflict
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials, model.ErrCodeUserNotFound:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// renderServiceError はサービス層のエラーをHTMLエラーページとして描画する。
// 未知のエラーは詳細をログにのみ記録し、500ページを返す。
func renderServiceError(w http.ResponseWriter, r *http.Request, renderer Renderer, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("internal server error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		renderErrorPage(w, r, renderer, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	status := mapAPIErrorToHTTPStatus(apiErr)
	if status == http.StatusInternalServerError {
		slog.Error("internal server error",
			slog.String("path", r.URL.Path),
			slog.String("error", apiErr.Error()),
		)
	}
	renderErrorPage(w, r, renderer, status, apiErr.Message)
}

// renderErrorPage は指定ステータスのエラーページを描画する。
func renderErrorPage(w http.ResponseWriter, r *http.Request, renderer Renderer, status int, message string) {
	render(w, renderer, status, pageError, ErrorPage{
		Layout:  layoutFor(r),
		Status:  status,
		Title:   http.StatusText(status),
		Message: message,
	})
}

// layoutFor はリクエストコンテキストから共通レイアウトデータを組み立てる。
func layoutFor(r *http.Request) Layout {
	userID, _ := middleware.UserIDFromContext(r.Context())
	return Layout{
		UserID:    userID,
		CSRFToken: middleware.CSRFTokenFromRequest(r),
	}
}

// isAPIErrorCode はエラーが指定コードのAPIErrorかどうかを判定する。
func isAPIErrorCode(err error, code string) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// fieldErrorsOf はエラーに含まれる項目別エラーを返す。
func fieldErrorsOf(err error) map[string][]string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.FieldErrors
	}
	return nil
}
