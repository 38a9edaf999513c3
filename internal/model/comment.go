// Package model はドメインモデルを定義する。
package model

import "time"

// Comment はニュースに対するユーザーコメントを表す。
// コメントは必ず1つのニュースと1人の作成者に属する。
type Comment struct {
	ID         string
	NewsID     string
	AuthorID   string
	AuthorName string // usersテーブルとJOINして取得される表示名
	Text       string
	Created    time.Time
	UpdatedAt  time.Time
}

// IsAuthor は指定ユーザーがコメントの作成者かどうかを返す。
func (c *Comment) IsAuthor(userID string) bool {
	return userID != "" && c.AuthorID == userID
}
