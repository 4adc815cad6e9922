package services

import (
	"context"
	"errors"
	"yatube/internal/repository"
)

var ErrSelfFollow = errors.New("cannot follow self")

// FollowStats 个人主页展示用的关注数据
type FollowStats struct {
	Followers   int64 // 关注该作者的人数
	Following   int64 // 该作者关注的人数
	IsFollowing bool
}

// FollowService 关注/取关。重复关注与取关不存在的边都是 no-op。
type FollowService struct {
	follows repository.FollowRepository
}

func NewFollowService(follows repository.FollowRepository) *FollowService {
	return &FollowService{follows: follows}
}

// Follow 建立 user -> author 的关注边。自己关注自己不建边。
func (s *FollowService) Follow(ctx context.Context, userID, authorID uint) error {
	if userID == authorID {
		return ErrSelfFollow
	}
	return s.follows.Create(ctx, userID, authorID)
}

func (s *FollowService) Unfollow(ctx context.Context, userID, authorID uint) error {
	return s.follows.Delete(ctx, userID, authorID)
}

// IsFollowing 未登录 viewer（viewerID == 0）恒为 false
func (s *FollowService) IsFollowing(ctx context.Context, viewerID, authorID uint) (bool, error) {
	if viewerID == 0 {
		return false, nil
	}
	return s.follows.Exists(ctx, viewerID, authorID)
}

// Stats 作者的关注统计及 viewer 的关注状态
func (s *FollowService) Stats(ctx context.Context, viewerID, authorID uint) (FollowStats, error) {
	followers, err := s.follows.CountFollowers(ctx, authorID)
	if err != nil {
		return FollowStats{}, err
	}
	following, err := s.follows.CountFollowing(ctx, authorID)
	if err != nil {
		return FollowStats{}, err
	}
	isFollowing, err := s.IsFollowing(ctx, viewerID, authorID)
	if err != nil {
		return FollowStats{}, err
	}
	return FollowStats{
		Followers:   followers,
		Following:   following,
		IsFollowing: isFollowing,
	}, nil
}
