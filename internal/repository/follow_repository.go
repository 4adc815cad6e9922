package repository

import (
	"context"
	"yatube/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FollowRepository interface {
	Create(ctx context.Context, userID, authorID uint) error
	Delete(ctx context.Context, userID, authorID uint) error
	Exists(ctx context.Context, userID, authorID uint) (bool, error)
	CountFollowers(ctx context.Context, authorID uint) (int64, error)
	CountFollowing(ctx context.Context, userID uint) (int64, error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository { return &followRepository{db: db} }

func (r *followRepository) Create(ctx context.Context, userID, authorID uint) error {
	f := &models.Follow{UserID: userID, AuthorID: authorID}
	// 幂等：重复关注不报错，并发写依赖 idx_follow_pair 唯一键收敛成一条边
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(f).Error
}

func (r *followRepository) Delete(ctx context.Context, userID, authorID uint) error {
	// 不存在的边删除 0 行，同样视为成功
	return r.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&models.Follow{}).Error
}

func (r *followRepository) Exists(ctx context.Context, userID, authorID uint) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *followRepository) CountFollowers(ctx context.Context, authorID uint) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("author_id = ?", authorID).Count(&cnt).Error
	return cnt, err
}

func (r *followRepository) CountFollowing(ctx context.Context, userID uint) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("user_id = ?", userID).Count(&cnt).Error
	return cnt, err
}
