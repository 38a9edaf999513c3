package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/newsboard/internal/model"
)

// PostgresNewsRepo はPostgreSQLを使用したニュースリポジトリ。
type PostgresNewsRepo struct {
	db *sql.DB
}

// NewPostgresNewsRepo はPostgresNewsRepoを生成する。
func NewPostgresNewsRepo(db *sql.DB) *PostgresNewsRepo {
	return &PostgresNewsRepo{db: db}
}

// dateLayout はDATE列へ渡す日付の書式。
const dateLayout = "2006-01-02"

const newsColumns = `id, title, text, date, source_url, source_guid, created_at`

// scanNews は1行分のニュースをスキャンする。
func scanNews(row interface{ Scan(...any) error }, news *model.News) error {
	var sourceURL, sourceGUID sql.NullString
	if err := row.Scan(
		&news.ID, &news.Title, &news.Text, &news.Date,
		&sourceURL, &sourceGUID, &news.CreatedAt,
	); err != nil {
		return err
	}
	news.Date = model.TruncateToDate(news.Date)
	news.SourceURL = nullStringValue(sourceURL)
	news.SourceGUID = nullStringValue(sourceGUID)
	return nil
}

// ListLatest は日付の新しい順に最大limit件のニュースを返す。
func (r *PostgresNewsRepo) ListLatest(ctx context.Context, limit int) ([]model.News, error) {
	if limit <= 0 {
		return []model.News{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+newsColumns+`
		 FROM news
		 ORDER BY date DESC, created_at DESC, id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest news: %w", err)
	}
	defer rows.Close()

	list := make([]model.News, 0, limit)
	for rows.Next() {
		var n model.News
		if err := scanNews(rows, &n); err != nil {
			return nil, fmt.Errorf("failed to scan news: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate news: %w", err)
	}

	return list, nil
}

// FindByID は指定IDのニュースを取得する。見つからない場合はnilを返す。
// UUIDとして解釈できないIDも「見つからない」として扱う。
func (r *PostgresNewsRepo) FindByID(ctx context.Context, id string) (*model.News, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	news := &model.News{}
	err := scanNews(r.db.QueryRowContext(ctx,
		`SELECT `+newsColumns+` FROM news WHERE id = $1`,
		id,
	), news)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find news by ID: %w", err)
	}

	return news, nil
}

// Create はニュースを作成する。IDが空の場合は新規に採番する。
func (r *PostgresNewsRepo) Create(ctx context.Context, news *model.News) error {
	if news.ID == "" {
		news.ID = uuid.New().String()
	}
	news.Date = model.TruncateToDate(news.Date)

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO news (id, title, text, date, source_url, source_guid)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		news.ID, news.Title, news.Text, news.Date.Format(dateLayout),
		nullString(news.SourceURL), nullString(news.SourceGUID),
	).Scan(&news.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create news: %w", err)
	}
	return nil
}

// UpsertFromSource は(source_url, source_guid)をキーにニュースを登録する。
// 既存行はタイトルと本文のみ更新し、日付とIDは維持する。
func (r *PostgresNewsRepo) UpsertFromSource(ctx context.Context, news *model.News) (bool, error) {
	if news.SourceURL == "" || news.SourceGUID == "" {
		return false, fmt.Errorf("source_url and source_guid are required for upsert")
	}
	if news.ID == "" {
		news.ID = uuid.New().String()
	}
	news.Date = model.TruncateToDate(news.Date)

	// xmax = 0 は今回のINSERTで作られた行であることを示す
	var inserted bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO news (id, title, text, date, source_url, source_guid)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (source_url, source_guid) WHERE source_url IS NOT NULL
		 DO UPDATE SET title = EXCLUDED.title, text = EXCLUDED.text
		 RETURNING id, created_at, (xmax = 0)`,
		news.ID, news.Title, news.Text, news.Date.Format(dateLayout), news.SourceURL, news.SourceGUID,
	).Scan(&news.ID, &news.CreatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert news: %w", err)
	}
	return inserted, nil
}

// Count はニュースの総件数を返す。
func (r *PostgresNewsRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM news`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count news: %w", err)
	}
	return count, nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullString は空文字列をNULLとして扱うsql.NullStringを返す。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ NewsRepository = (*PostgresNewsRepo)(nil)
