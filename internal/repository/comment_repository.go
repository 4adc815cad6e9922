package repository

import (
	"context"
	"yatube/internal/models"

	"gorm.io/gorm"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	// ListByPost 返回帖子下的评论，按 created 倒序
	ListByPost(ctx context.Context, postID uint) ([]models.Comment, error)
	CountByPost(ctx context.Context, postID uint) (int64, error)
	CountForPosts(ctx context.Context, postIDs []uint) (map[uint]int, error)
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository { return &commentRepository{db: db} }

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at DESC, id DESC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ?", postID).Count(&total).Error
	return total, err
}

// CountForPosts 批量查询评论数量，用于列表页填充
func (r *commentRepository) CountForPosts(ctx context.Context, postIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int)
	if len(postIDs) == 0 {
		return counts, nil
	}

	type countResult struct {
		PostID uint
		Count  int
	}
	var results []countResult
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		counts[res.PostID] = res.Count
	}
	return counts, nil
}
