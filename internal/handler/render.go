package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/newsboard/internal/comment"
	"github.com/hitoshi/newsboard/internal/middleware"
	"github.com/hitoshi/newsboard/internal/model"
	"github.com/hitoshi/newsboard/internal/user"
)

//go:embed templates/*.html
var templateFS embed.FS

// テンプレート名
const (
	pageHome          = "home"
	pageNewsDetail    = "news_detail"
	pageCommentEdit   = "comment_edit"
	pageCommentDelete = "comment_delete"
	pageLogin         = "login"
	pageSignup        = "signup"
	pageAccount       = "account"
	pageError         = "error"
)

var pageNames = []string{
	pageHome,
	pageNewsDetail,
	pageCommentEdit,
	pageCommentDelete,
	pageLogin,
	pageSignup,
	pageAccount,
	pageError,
}

// Renderer はページをレンダリングするインターフェース。
// テストではページデータを記録する実装に差し替える。
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, data any) error
}

// Layout は全ページ共通のデータ。
type Layout struct {
	UserID    string
	CSRFToken string
}

// IsAuthenticated はリクエスト元がログイン済みかどうかを返す。
func (l Layout) IsAuthenticated() bool {
	return l.UserID != ""
}

// HomePage はトップページのデータ。
type HomePage struct {
	Layout
	ObjectList []model.News
}

// DetailPage はニュース詳細ページのデータ。
// Formは認証済みの場合のみ設定される。
type DetailPage struct {
	Layout
	News     *model.News
	Comments []model.Comment
	Form     *comment.Form
}

// CommentEditPage はコメント編集ページのデータ。
type CommentEditPage struct {
	Layout
	Comment *model.Comment
	Form    *comment.Form
}

// CommentDeletePage はコメント削除確認ページのデータ。
type CommentDeletePage struct {
	Layout
	Comment *model.Comment
}

// LoginPage はログインページのデータ。
type LoginPage struct {
	Layout
	Username string
	Next     string
	Error    string
}

// SignupPage はユーザー登録ページのデータ。
type SignupPage struct {
	Layout
	Username string
	Next     string
	Errors   map[string][]string
}

// AccountPage はアカウントページのデータ。
type AccountPage struct {
	Layout
	Profile *user.Profile
}

// ErrorPage はエラーページのデータ。
type ErrorPage struct {
	Layout
	Status  int
	Title   string
	Message string
}

// TemplateRenderer は埋め込みHTMLテンプレートでページを描画する。
type TemplateRenderer struct {
	pages map[string]*template.Template
}

// NewTemplateRenderer は全ページのテンプレートを解析してTemplateRendererを生成する。
func NewTemplateRenderer() (*TemplateRenderer, error) {
	funcs := template.FuncMap{
		"newsURL":          NewsDetailURL,
		"commentEditURL":   CommentEditURL,
		"commentDeleteURL": CommentDeleteURL,
		"homeURL":          func() string { return HomeURL },
		"loginURL":         func() string { return LoginURL },
		"loginNextURL":     loginURLWithNext,
		"logoutURL":        func() string { return LogoutURL },
		"signupURL":        func() string { return SignupURL },
		"accountURL":       func() string { return AccountURL },
		"withdrawURL":      func() string { return WithdrawURL },
		"csrfField":        func() string { return middleware.CSRFFormField },
		"formatDate":       func(t time.Time) string { return t.Format("2006-01-02") },
		"formatTime":       func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
		"isAuthor": func(c model.Comment, userID string) bool {
			return c.IsAuthor(userID)
		},
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &TemplateRenderer{pages: pages}, nil
}

// Render はページを描画してレスポンスに書き込む。
// 描画に失敗した場合はレスポンスを書き込まずにエラーを返す。
func (r *TemplateRenderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// render はページを描画する。描画エラーはログに記録して500を返す。
func render(w http.ResponseWriter, renderer Renderer, status int, name string, data any) {
	if err := renderer.Render(w, status, name, data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
