package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/newsboard/internal/comment"
	"github.com/hitoshi/newsboard/internal/middleware"
	"github.com/hitoshi/newsboard/internal/model"
	"github.com/hitoshi/newsboard/internal/news"
)

// NewsServiceInterface はニュースハンドラーが必要とするサービスインターフェース。
type NewsServiceInterface interface {
	// Home はトップページ用のニュースを日付の新しい順で返す。
	Home(ctx context.Context) ([]model.News, error)
	// Detail はニュースとコメント（作成日時の古い順）を返す。
	Detail(ctx context.Context, newsID string) (*news.Detail, error)
	// Total はニュースの総件数を返す。
	Total(ctx context.Context) (int, error)
	// PageSize はトップページに表示する最大件数を返す。
	PageSize() int
}

// CommentServiceInterface はコメント操作のハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	Create(ctx context.Context, userID, newsID string, form *comment.Form) (*model.Comment, error)
	GetForAuthor(ctx context.Context, userID, commentID string) (*model.Comment, error)
	Edit(ctx context.Context, userID, commentID string, form *comment.Form) (*model.Comment, error)
	Delete(ctx context.Context, userID, commentID string) (*model.Comment, error)
}

// NewsHandler はニュース一覧・詳細とコメント投稿のHTTPハンドラー。
type NewsHandler struct {
	news     NewsServiceInterface
	comments CommentServiceInterface
	renderer Renderer
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(newsService NewsServiceInterface, commentService CommentServiceInterface, renderer Renderer) *NewsHandler {
	return &NewsHandler{
		news:     newsService,
		comments: commentService,
		renderer: renderer,
	}
}

// Home はトップページを表示する。
// GET /
func (h *NewsHandler) Home(w http.ResponseWriter, r *http.Request) {
	list, err := h.news.Home(r.Context())
	if err != nil {
		renderServiceError(w, r, h.renderer, err)
		return
	}

	render(w, h.renderer, http.StatusOK, pageHome, HomePage{
		Layout:     layoutFor(r),
		ObjectList: list,
	})
}

// Detail はニュース詳細ページを表示する。
// コメントフォームは認証済みの場合のみ表示する。
// GET /news/{id}
func (h *NewsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	newsID := chi.URLParam(r, "id")

	var form *comment.Form
	if _, err := middleware.UserIDFromContext(r.Context()); err == nil {
		form = comment.NewForm("")
	}

	h.renderDetail(w, r, newsID, form)
}

// PostComment はコメントを投稿する。
// 成功時はニュース詳細のコメント欄へリダイレクトし、
// バリデーションエラー時はフォームのエラー付きで詳細ページを再表示する。
// POST /news/{id}
func (h *NewsHandler) PostComment(w http.ResponseWriter, r *http.Request) {
	newsID := chi.URLParam(r, "id")
	userID, _ := middleware.UserIDFromContext(r.Context())

	form := comment.NewForm(r.PostFormValue("text"))

	if _, err := h.comments.Create(r.Context(), userID, newsID, form); err != nil {
		switch {
		case isAPIErrorCode(err, model.ErrCodeInvalidComment):
			h.renderDetail(w, r, newsID, form)
		case isAPIErrorCode(err, model.ErrCodeUnauthorized):
			http.Redirect(w, r, loginURLWithNext(NewsDetailURL(newsID)), http.StatusFound)
		default:
			renderServiceError(w, r, h.renderer, err)
		}
		return
	}

	http.Redirect(w, r, NewsCommentsURL(newsID), http.StatusFound)
}

func (h *NewsHandler) renderDetail(w http.ResponseWriter, r *http.Request, newsID string, form *comment.Form) {
	detail, err := h.news.Detail(r.Context(), newsID)
	if err != nil {
		renderServiceError(w, r, h.renderer, err)
		return
	}

	render(w, h.renderer, http.StatusOK, pageNewsDetail, DetailPage{
		Layout:   layoutFor(r),
		News:     detail.News,
		Comments: detail.Comments,
		Form:     form,
	})
}
