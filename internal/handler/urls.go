package handler

import "net/url"

// 名前付きURL。テンプレートとリダイレクトはこれらを経由してパスを組み立てる。
const (
	HomeURL          = "/"
	LoginURL         = "/auth/login"
	LogoutURL        = "/auth/logout"
	SignupURL        = "/auth/signup"
	AccountURL       = "/account"
	WithdrawURL      = "/account/withdraw"
	commentsFragment = "#comments"
)

// NewsDetailURL はニュース詳細ページのパスを返す。
func NewsDetailURL(newsID string) string {
	return "/news/" + url.PathEscape(newsID)
}

// NewsCommentsURL はニュース詳細ページのコメント欄へのパスを返す。
func NewsCommentsURL(newsID string) string {
	return NewsDetailURL(newsID) + commentsFragment
}

// CommentEditURL はコメント編集ページのパスを返す。
func CommentEditURL(commentID string) string {
	return "/comments/" + url.PathEscape(commentID) + "/edit"
}

// CommentDeleteURL はコメント削除ページのパスを返す。
func CommentDeleteURL(commentID string) string {
	return "/comments/" + url.PathEscape(commentID) + "/delete"
}

// loginURLWithNext はログイン後に戻る先を付けたログインページのパスを返す。
func loginURLWithNext(next string) string {
	if next == "" {
		return LoginURL
	}
	return LoginURL + "?next=" + url.QueryEscape(next)
}

// safeNext はログイン後のリダイレクト先を検証する。
// 同一オリジンの絶対パスのみ許可し、それ以外はトップページを返す。
func safeNext(next string) string {
	if next == "" || next[0] != '/' {
		return HomeURL
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return HomeURL
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return HomeURL
	}
	return next
}
