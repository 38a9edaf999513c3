// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/newsboard/internal/model"
)

// ErrDuplicateUsername はユーザー名の一意制約違反を表す。
var ErrDuplicateUsername = errors.New("username already exists")

// NewsRepository はニュースデータの永続化インターフェース。
type NewsRepository interface {
	// ListLatest は日付の新しい順に最大limit件のニュースを返す。
	// 同一日付の場合はcreated_atの新しい順、さらにidで順序を確定させる。
	ListLatest(ctx context.Context, limit int) ([]model.News, error)

	// FindByID は指定IDのニュースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.News, error)

	// Create はニュースを作成する。
	Create(ctx context.Context, news *model.News) error

	// UpsertFromSource は取り込み元の(source_url, source_guid)をキーにニュースを登録する。
	// 新規に挿入された場合はtrue、既存の行を更新した場合はfalseを返す。
	UpsertFromSource(ctx context.Context, news *model.News) (bool, error)

	// Count はニュースの総件数を返す。
	Count(ctx context.Context) (int, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// ListByNews はニュースのコメントを作成日時の昇順で返す。
	// 投稿者のユーザー名をJOINしてAuthorNameに設定する。
	ListByNews(ctx context.Context, newsID string) ([]model.Comment, error)

	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// Create はコメントを作成する。Createdはデータベースの時刻で設定される。
	Create(ctx context.Context, comment *model.Comment) error

	// UpdateText はコメント本文を置き換える。
	UpdateText(ctx context.Context, id, text string) error

	// Delete は指定IDのコメントを削除する。
	Delete(ctx context.Context, id string) error
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。
	// ユーザー名が重複している場合はErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、commentsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
