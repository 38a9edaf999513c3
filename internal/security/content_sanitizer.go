// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer は外部フィードから取り込んだニュース本文のHTMLを
// 許可リストで無害化し、保存用のプレーンテキストへ変換する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ContentSanitizer は取り込みコンテンツの無害化インターフェース。
type ContentSanitizer interface {
	// Sanitize は許可リストに含まれるタグと属性のみを残したHTMLを返す。
	Sanitize(rawHTML string) string

	// PlainText はHTMLからテキストのみを取り出す。
	// ブロック要素の境界は改行になり、連続する空行は1行にまとめられる。
	PlainText(rawHTML string) string
}

// contentSanitizer はbluemondayのポリシーを保持するContentSanitizerの実装。
// bluemonday.Policyは構築後は並行利用可能。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はニュース本文用のポリシーでContentSanitizerを生成する。
//
//   - 許可タグ: p, br, ul, ol, li, blockquote, pre, code, strong, em, h2〜h4, a
//   - aのhrefはhttp/httpsの絶対URLのみ。target="_blank" と rel="noreferrer noopener" を付与
//   - 画像、script、style、iframe、on*属性は全て除去
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
		"h2", "h3", "h4",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{policy: p}
}

// Sanitize は許可リストに従ってHTMLを無害化する。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}

// blockElements はテキスト抽出時に改行として扱う要素。
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Div: true, atom.Li: true,
	atom.Ul: true, atom.Ol: true, atom.Blockquote: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Table: true, atom.Hr: true, atom.Section: true, atom.Article: true,
}

// skippedElements は中身ごと読み飛ばす要素。
var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Noscript: true, atom.Template: true,
}

// PlainText はSanitize済みのHTMLをトークナイズしてテキストを抽出する。
func (s *contentSanitizer) PlainText(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}

	var b strings.Builder
	skipDepth := 0
	z := nethtml.NewTokenizer(strings.NewReader(rawHTML))

	for {
		tt := z.Next()
		switch tt {
		case nethtml.ErrorToken:
			// io.EOF以外でも、それまでに読めたテキストを返す
			return normalizeLines(b.String())

		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedElements[a] {
				if tt == nethtml.StartTagToken {
					skipDepth++
				}
				continue
			}
			if blockElements[a] {
				b.WriteByte('\n')
			}

		case nethtml.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedElements[a] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if blockElements[a] {
				b.WriteByte('\n')
			}

		case nethtml.TextToken:
			if skipDepth > 0 {
				continue
			}
			// Textはエンティティを展開済みだが、二重エスケープされたフィードもあるため再度展開する
			b.WriteString(html.UnescapeString(string(z.Text())))
		}
	}
}

// normalizeLines は各行の空白を詰め、連続する空行を1つにまとめる。
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
