// Package comment はコメントの投稿・編集・削除のドメインロジックを提供する。
package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/newsboard/internal/metrics"
	"github.com/hitoshi/newsboard/internal/model"
	"github.com/hitoshi/newsboard/internal/repository"
)

// Service はコメント操作のサービス層。
// 編集・削除は作成者本人にのみ許可し、それ以外は存在しないものとして扱う。
type Service struct {
	commentRepo repository.CommentRepository
	newsRepo    repository.NewsRepository
	metrics     metrics.CommentRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	commentRepo repository.CommentRepository,
	newsRepo repository.NewsRepository,
	recorder metrics.CommentRecorder,
) *Service {
	return &Service{
		commentRepo: commentRepo,
		newsRepo:    newsRepo,
		metrics:     recorder,
	}
}

// Create はニュースにコメントを投稿する。
// 未認証の場合とフォームが不正な場合はコメントを保存しない。
func (s *Service) Create(ctx context.Context, userID, newsID string, form *Form) (*model.Comment, error) {
	if userID == "" {
		s.reject(metrics.RejectReasonUnauthorized)
		return nil, model.NewUnauthorizedError()
	}

	n, err := s.newsRepo.FindByID(ctx, newsID)
	if err != nil {
		return nil, fmt.Errorf("ニュースの取得に失敗しました: %w", err)
	}
	if n == nil {
		s.reject(metrics.RejectReasonNotFound)
		return nil, model.NewNewsNotFoundError(newsID)
	}

	if !form.Validate() {
		s.reject(metrics.RejectReasonInvalid)
		return nil, model.NewInvalidCommentError(form.Errors)
	}

	c := &model.Comment{
		NewsID:   n.ID,
		AuthorID: userID,
		Text:     form.Text,
	}
	if err := s.commentRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}

	s.record(func(r metrics.CommentRecorder) { r.RecordCommentCreated() })
	slog.Info("comment created",
		slog.String("comment_id", c.ID),
		slog.String("news_id", c.NewsID),
		slog.String("user_id", userID),
	)

	return c, nil
}

// GetForAuthor は作成者本人に対してのみコメントを返す。
// 存在しない場合と作成者以外の場合はどちらもCommentNotFoundエラーを返す。
func (s *Service) GetForAuthor(ctx context.Context, userID, commentID string) (*model.Comment, error) {
	c, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if c == nil || !c.IsAuthor(userID) {
		return nil, model.NewCommentNotFoundError(commentID)
	}
	return c, nil
}

// Edit はコメント本文を置き換える。作成者以外はCommentNotFoundエラーになる。
// フォームが不正な場合は既存のコメントとともにInvalidCommentエラーを返す。
func (s *Service) Edit(ctx context.Context, userID, commentID string, form *Form) (*model.Comment, error) {
	c, err := s.GetForAuthor(ctx, userID, commentID)
	if err != nil {
		s.rejectIfNotFound(err)
		return nil, err
	}

	if !form.Validate() {
		s.reject(metrics.RejectReasonInvalid)
		return c, model.NewInvalidCommentError(form.Errors)
	}

	if err := s.commentRepo.UpdateText(ctx, c.ID, form.Text); err != nil {
		return nil, fmt.Errorf("コメントの更新に失敗しました: %w", err)
	}
	c.Text = form.Text

	s.record(func(r metrics.CommentRecorder) { r.RecordCommentEdited() })
	slog.Info("comment edited",
		slog.String("comment_id", c.ID),
		slog.String("user_id", userID),
	)

	return c, nil
}

// Delete はコメントを削除し、削除したコメントを返す。作成者以外はCommentNotFoundエラーになる。
func (s *Service) Delete(ctx context.Context, userID, commentID string) (*model.Comment, error) {
	c, err := s.GetForAuthor(ctx, userID, commentID)
	if err != nil {
		s.rejectIfNotFound(err)
		return nil, err
	}

	if err := s.commentRepo.Delete(ctx, c.ID); err != nil {
		return nil, fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}

	s.record(func(r metrics.CommentRecorder) { r.RecordCommentDeleted() })
	slog.Info("comment deleted",
		slog.String("comment_id", c.ID),
		slog.String("news_id", c.NewsID),
		slog.String("user_id", userID),
	)

	return c, nil
}

func (s *Service) record(fn func(metrics.CommentRecorder)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}

func (s *Service) reject(reason string) {
	s.record(func(r metrics.CommentRecorder) { r.RecordCommentRejected(reason) })
}

func (s *Service) rejectIfNotFound(err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeCommentNotFound {
		s.reject(metrics.RejectReasonNotFound)
	}
}
