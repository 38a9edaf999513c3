package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/newsboard/internal/comment"
	"github.com/hitoshi/newsboard/internal/middleware"
	"github.com/hitoshi/newsboard/internal/model"
)

// CommentHandler はコメント編集・削除のHTTPハンドラー。
// 作成者以外からのアクセスには404を返す。
type CommentHandler struct {
	service  CommentServiceInterface
	renderer Renderer
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface, renderer Renderer) *CommentHandler {
	return &CommentHandler{
		service:  service,
		renderer: renderer,
	}
}

// EditForm はコメント編集フォームを表示する。
// GET /comments/{id}/edit
func (h *CommentHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	c, err := h.service.GetForAuthor(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		renderServiceError(w, r, h.renderer, err)
		return
	}

	render(w, h.renderer, http.StatusOK, pageCommentEdit, CommentEditPage{
		Layout:  layoutFor(r),
		Comment: c,
		Form:    comment.NewForm(c.Text),
	})
}

// Edit はコメント本文を更新する。
// POST /comments/{id}/edit
func (h *CommentHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	form := comment.NewForm(r.PostFormValue("text"))

	c, err := h.service.Edit(r.Context(), userID, chi.URLParam(r, "id"), form)
	if err != nil {
		if isAPIErrorCode(err, model.ErrCodeInvalidComment) && c != nil {
			render(w, h.renderer, http.StatusOK, pageCommentEdit, CommentEditPage{
				Layout:  layoutFor(r),
				Comment: c,
				Form:    form,
			})
			return
		}
		renderServiceError(w, r, h.renderer, err)
		return
	}

	http.Redirect(w, r, NewsCommentsURL(c.NewsID), http.StatusFound)
}

// DeleteConfirm はコメント削除の確認ページを表示する。
// GET /comments/{id}/delete
func (h *CommentHandler) DeleteConfirm(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	c, err := h.service.GetForAuthor(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		renderServiceError(w, r, h.renderer, err)
		return
	}

	render(w, h.renderer, http.StatusOK, pageCommentDelete, CommentDeletePage{
		Layout:  layoutFor(r),
		Comment: c,
	})
}

// Delete はコメントを削除してニュース詳細のコメント欄へリダイレクトする。
// POST /comments/{id}/delete
// DELETE /comments/{id}/delete
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	c, err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		renderServiceError(w, r, h.renderer, err)
		return
	}

	http.Redirect(w, r, NewsCommentsURL(c.NewsID), http.StatusFound)
}
