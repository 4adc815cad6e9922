package repository

import (
	"context"
	"yatube/internal/models"

	"gorm.io/gorm"
)

// PostRepository 返回物化的、按 pub_date 倒序排列的帖子序列
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	Save(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, post *models.Post) error
	// GetByAuthorAndID 按 (username, post_id) 复合键定位帖子
	GetByAuthorAndID(ctx context.Context, username string, id uint) (*models.Post, error)
	CountAll(ctx context.Context) (int64, error)
	ListAll(ctx context.Context, offset, limit int) ([]models.Post, error)
	CountByGroup(ctx context.Context, groupID uint) (int64, error)
	ListByGroup(ctx context.Context, groupID uint, offset, limit int) ([]models.Post, error)
	CountByAuthor(ctx context.Context, authorID uint) (int64, error)
	ListByAuthor(ctx context.Context, authorID uint, offset, limit int) ([]models.Post, error)
	CountByFollowed(ctx context.Context, viewerID uint) (int64, error)
	ListByFollowed(ctx context.Context, viewerID uint, offset, limit int) ([]models.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) Save(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

func (r *postRepository) Delete(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Delete(post).Error
}

func (r *postRepository) GetByAuthorAndID(ctx context.Context, username string, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").Preload("Group").
		Joins("JOIN users ON users.id = posts.author_id").
		Where("users.username = ? AND posts.id = ?", username, id).
		First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) CountAll(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&total).Error
	return total, err
}

func (r *postRepository) ListAll(ctx context.Context, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").Preload("Group").
		Order("pub_date DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) CountByGroup(ctx context.Context, groupID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("group_id = ?", groupID).Count(&total).Error
	return total, err
}

func (r *postRepository) ListByGroup(ctx context.Context, groupID uint, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").Preload("Group").
		Where("group_id = ?", groupID).
		Order("pub_date DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("author_id = ?", authorID).Count(&total).Error
	return total, err
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").Preload("Group").
		Where("author_id = ?", authorID).
		Order("pub_date DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	return posts, err
}

// followedAuthors 子查询：viewer 关注的作者集合
func (r *postRepository) followedAuthors(viewerID uint) *gorm.DB {
	return r.db.Model(&models.Follow{}).Select("author_id").Where("user_id = ?", viewerID)
}

func (r *postRepository) CountByFollowed(ctx context.Context, viewerID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("author_id IN (?)", r.followedAuthors(viewerID)).
		Count(&total).Error
	return total, err
}

func (r *postRepository) ListByFollowed(ctx context.Context, viewerID uint, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").Preload("Group").
		Where("author_id IN (?)", r.followedAuthors(viewerID)).
		Order("pub_date DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	return posts, err
}
