package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/newsboard/internal/middleware"
	"github.com/hitoshi/newsboard/internal/model"
	"github.com/hitoshi/newsboard/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetProfile はユーザー情報と投稿済みコメント数を返す。
	GetProfile(ctx context.Context, userID string) (*user.Profile, error)
	// Withdraw はユーザーの退会処理を実行する。
	// セッションとユーザーを削除し、コメントはカスケード削除される。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はアカウント管理のHTTPハンドラー。
type UserHandler struct {
	service      UserServiceInterface
	renderer     Renderer
	cookieConfig AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, renderer Renderer, cookieConfig AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service:      service,
		renderer:     renderer,
		cookieConfig: cookieConfig,
	}
}

// Account はアカウントページを表示する。
// GET /account
func (h *UserHandler) Account(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		renderServiceError(w, r, h.renderer, err)
		return
	}

	render(w, h.renderer, http.StatusOK, pageAccount, AccountPage{
		Layout:  layoutFor(r),
		Profile: profile,
	})
}

// Withdraw はユーザーの退会処理を実行し、トップページへリダイレクトする。
// POST /account/withdraw
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		renderServiceError(w, r, h.renderer, err)
		return
	}

	clearSessionCookie(w, h.cookieConfig)
	http.Redirect(w, r, HomeURL, http.StatusFound)
}

// accountResponse はアカウント情報のAPIレスポンス。
type accountResponse struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	CommentCount int    `json:"comment_count"`
}

// AccountJSON はアカウント情報をJSONで返す。
// GET /api/account
func (h *UserHandler) AccountJSON(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accountResponse{
		ID:           profile.User.ID,
		Username:     profile.User.Username,
		CommentCount: profile.CommentCount,
	})
}
