package comment

import (
	"strings"
	"unicode/utf8"
)

// MaxTextLength はコメント本文の最大文字数（rune単位）。
const MaxTextLength = 2000

// Warning は禁止語を含むコメントに対して表示する警告文。
const Warning = "Не ругайтесь!"

// BadWords はコメントに含めてはならない語の一覧。
// 大文字小文字を区別せず部分一致で判定する。
var BadWords = []string{
	"редиска",
	"негодяй",
}

// フィールド名
const fieldText = "text"

// Form はコメント投稿・編集フォームの入力値とバリデーション結果を保持する。
type Form struct {
	Text   string
	Errors map[string][]string
}

// NewForm は入力値からFormを生成する。
func NewForm(text string) *Form {
	return &Form{Text: text}
}

// Validate は入力値を検証し、問題がなければtrueを返す。
// 前後の空白は除去され、エラーはErrorsにフィールド単位で格納される。
func (f *Form) Validate() bool {
	f.Errors = nil
	f.Text = strings.TrimSpace(f.Text)

	switch {
	case f.Text == "":
		f.addError(fieldText, "コメントを入力してください。")
	case utf8.RuneCountInString(f.Text) > MaxTextLength:
		f.addError(fieldText, "コメントが長すぎます。")
	case containsBadWord(f.Text):
		f.addError(fieldText, Warning)
	}

	return len(f.Errors) == 0
}

// FieldError はフィールドの最初のエラーメッセージを返す。
func (f *Form) FieldError(field string) string {
	if msgs := f.Errors[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (f *Form) addError(field, msg string) {
	if f.Errors == nil {
		f.Errors = map[string][]string{}
	}
	f.Errors[field] = append(f.Errors[field], msg)
}

// containsBadWord は本文が禁止語を含むかどうかを判定する。
func containsBadWord(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range BadWords {
		if strings.Contains(lower, strings.ToLower(word)) {
			return true
		}
	}
	return false
}
