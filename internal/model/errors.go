// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, news, comment, system
	Action   string // ユーザー向け対処方法

	// FieldErrors はフォーム項目ごとのエラーメッセージ。バリデーションエラーのみ設定される。
	FieldErrors map[string][]string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNewsNotFound       = "NEWS_NOT_FOUND"
	ErrCodeCommentNotFound    = "COMMENT_NOT_FOUND"
	ErrCodeInvalidComment     = "INVALID_COMMENT"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidSignup      = "INVALID_SIGNUP"
	ErrCodeDuplicateUsername  = "DUPLICATE_USERNAME"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewNewsNotFoundError はニュース未検出エラーを生成する。
func NewNewsNotFoundError(newsID string) *APIError {
	return &APIError{
		Code:     ErrCodeNewsNotFound,
		Message:  fmt.Sprintf("指定されたニュースが見つかりません: %s", newsID),
		Category: "news",
		Action:   "ニュースIDを確認してください。",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
// 他人のコメントを編集・削除しようとした場合もこのエラーを返し、
// コメントの存在や所有者を推測させない。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", commentID),
		Category: "comment",
		Action:   "コメントIDを確認してください。",
	}
}

// NewInvalidCommentError はコメントフォームのバリデーションエラーを生成する。
func NewInvalidCommentError(fieldErrors map[string][]string) *APIError {
	return &APIError{
		Code:        ErrCodeInvalidComment,
		Message:     fmt.Sprintf("コメントの内容が不正です: %s", joinFieldErrors(fieldErrors)),
		Category:    "validation",
		Action:      "入力内容を修正してから再度送信してください。",
		FieldErrors: fieldErrors,
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー名とパスワードのどちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidSignupError は登録フォームのバリデーションエラーを生成する。
func NewInvalidSignupError(fieldErrors map[string][]string) *APIError {
	return &APIError{
		Code:        ErrCodeInvalidSignup,
		Message:     fmt.Sprintf("登録内容が不正です: %s", joinFieldErrors(fieldErrors)),
		Category:    "validation",
		Action:      "入力内容を修正してから再度送信してください。",
		FieldErrors: fieldErrors,
	}
}

// NewDuplicateUsernameError はユーザー名重複エラーを生成する。
func NewDuplicateUsernameError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  "このユーザー名は既に使われています。",
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
		FieldErrors: map[string][]string{
			"username": {"このユーザー名は既に使われています。"},
		},
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// joinFieldErrors はフィールドエラーをログ向けの1行に整形する。
func joinFieldErrors(fieldErrors map[string][]string) string {
	parts := make([]string, 0, len(fieldErrors))
	for field, msgs := range fieldErrors {
		parts = append(parts, field+": "+strings.Join(msgs, ", "))
	}
	return strings.Join(parts, "; ")
}
