// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/newsboard/internal/middleware"
	"github.com/hitoshi/newsboard/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, username, password string) (*model.User, *model.Session, error)
	Login(ctx context.Context, username, password string) (*model.User, *model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はログイン・ログアウト・ユーザー登録のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	config   AuthHandlerConfig
	renderer Renderer
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, renderer Renderer) *AuthHandler {
	return &AuthHandler{
		service:  service,
		config:   config,
		renderer: renderer,
	}
}

// LoginForm はログインフォームを表示する。
// GET /auth/login?next=/news/xxx
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	render(w, h.renderer, http.StatusOK, pageLogin, LoginPage{
		Layout: layoutFor(r),
		Next:   r.URL.Query().Get("next"),
	})
}

// Login はユーザー名とパスワードで認証し、セッションCookieを発行する。
// 成功時はnextパラメータ（同一オリジンのパスのみ）かトップページへリダイレクトする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	next := r.PostFormValue("next")

	_, session, err := h.service.Login(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		if !isAPIErrorCode(err, model.ErrCodeInvalidCredentials) {
			renderServiceError(w, r, h.renderer, err)
			return
		}
		render(w, h.renderer, http.StatusOK, pageLogin, LoginPage{
			Layout:   layoutFor(r),
			Username: username,
			Next:     next,
			Error:    model.NewInvalidCredentialsError().Message,
		})
		return
	}

	h.setSessionCookie(w, session.ID)
	http.Redirect(w, r, safeNext(next), http.StatusFound)
}

// SignupForm はユーザー登録フォームを表示する。
// GET /auth/signup
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	render(w, h.renderer, http.StatusOK, pageSignup, SignupPage{
		Layout: layoutFor(r),
		Next:   r.URL.Query().Get("next"),
	})
}

// Signup はユーザーを登録してそのままログイン状態にする。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	next := r.PostFormValue("next")

	_, session, err := h.service.Signup(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		fieldErrors := fieldErrorsOf(err)
		if fieldErrors == nil {
			renderServiceError(w, r, h.renderer, err)
			return
		}
		render(w, h.renderer, http.StatusOK, pageSignup, SignupPage{
			Layout:   layoutFor(r),
			Username: username,
			Next:     next,
			Errors:   fieldErrors,
		})
		return
	}

	h.setSessionCookie(w, session.ID)
	http.Redirect(w, r, safeNext(next), http.StatusFound)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, HomeURL, http.StatusFound)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		slog.Warn("failed to get current user", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
	})
}

// setSessionCookie はセッションCookieを設定する（HTTP Only）。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	clearSessionCookie(w, h.config)
}

func clearSessionCookie(w http.ResponseWriter, config AuthHandlerConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
