package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/newsboard/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// ListByNews はニュースのコメントを作成日時の昇順で返す。
// 同一時刻のコメントはidで順序を確定させる。
func (r *PostgresCommentRepo) ListByNews(ctx context.Context, newsID string) ([]model.Comment, error) {
	if _, err := uuid.Parse(newsID); err != nil {
		return []model.Comment{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.news_id, c.author_id, u.username, c.text, c.created, c.updated_at
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.news_id = $1
		 ORDER BY c.created ASC, c.id ASC`,
		newsID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.NewsID, &c.AuthorID, &c.AuthorName, &c.Text, &c.Created, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}

	return comments, nil
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	c := &model.Comment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.news_id, c.author_id, u.username, c.text, c.created, c.updated_at
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.id = $1`,
		id,
	).Scan(&c.ID, &c.NewsID, &c.AuthorID, &c.AuthorName, &c.Text, &c.Created, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment by ID: %w", err)
	}

	return c, nil
}

// Create はコメントを作成する。CreatedとUpdatedAtはデータベースの時刻で設定される。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO comments (id, news_id, author_id, text)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created, updated_at`,
		comment.ID, comment.NewsID, comment.AuthorID, comment.Text,
	).Scan(&comment.Created, &comment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// UpdateText はコメント本文を置き換える。
func (r *PostgresCommentRepo) UpdateText(ctx context.Context, id, text string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET text = $2, updated_at = now() WHERE id = $1`,
		id, text,
	)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("comment not found: %s", id)
	}
	return nil
}

// Delete は指定IDのコメントを削除する。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM comments WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("comment not found: %s", id)
	}
	return nil
}

// CountByAuthor はユーザーが投稿したコメント数を返す。
func (r *PostgresCommentRepo) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	if _, err := uuid.Parse(authorID); err != nil {
		return 0, nil
	}

	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM comments WHERE author_id = $1`,
		authorID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count comments by author: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
