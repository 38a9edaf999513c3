package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/newsboard/internal/model"
)

// APIHandler はニュースの読み取り専用JSON APIハンドラー。
type APIHandler struct {
	news NewsServiceInterface
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(newsService NewsServiceInterface) *APIHandler {
	return &APIHandler{news: newsService}
}

// newsResponse はニュースのAPIレスポンス。
type newsResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text,omitempty"`
	Date  string `json:"date"`
	URL   string `json:"url"`
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Text    string    `json:"text"`
	Created time.Time `json:"created"`
}

// newsListResponse はニュース一覧のAPIレスポンス。
// Totalは全件数、PageSizeは一覧に含まれる最大件数。
type newsListResponse struct {
	News     []newsResponse `json:"news"`
	Total    int            `json:"total"`
	PageSize int            `json:"page_size"`
}

// newsDetailResponse はニュース詳細のAPIレスポンス。
type newsDetailResponse struct {
	newsResponse
	Comments []commentResponse `json:"comments"`
}

// ListNews はトップページと同じニュース一覧を返す。
// GET /api/news
func (h *APIHandler) ListNews(w http.ResponseWriter, r *http.Request) {
	list, err := h.news.Home(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	total, err := h.news.Total(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := newsListResponse{
		News:     make([]newsResponse, len(list)),
		Total:    total,
		PageSize: h.news.PageSize(),
	}
	for i, n := range list {
		resp.News[i] = toNewsResponse(n, false)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetNews はニュースとコメントを返す。
// GET /api/news/{id}
func (h *APIHandler) GetNews(w http.ResponseWriter, r *http.Request) {
	detail, err := h.news.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := newsDetailResponse{
		newsResponse: toNewsResponse(*detail.News, true),
		Comments:     make([]commentResponse, len(detail.Comments)),
	}
	for i, c := range detail.Comments {
		resp.Comments[i] = commentResponse{
			ID:      c.ID,
			Author:  c.AuthorName,
			Text:    c.Text,
			Created: c.Created,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func toNewsResponse(n model.News, withText bool) newsResponse {
	resp := newsResponse{
		ID:    n.ID,
		Title: n.Title,
		Date:  n.Date.Format("2006-01-02"),
		URL:   NewsDetailURL(n.ID),
	}
	if withText {
		resp.Text = n.Text
	}
	return resp
}
