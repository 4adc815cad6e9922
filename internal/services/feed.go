package services

import (
	"context"
	"math"
	"yatube/internal/models"
	"yatube/internal/repository"
)

const DefaultPostsPerPage = 10

// Page 一页物化后的帖子列表及分页信息
type Page struct {
	Posts      []models.Post
	Number     int // 1-indexed
	TotalPages int
	HasPrev    bool
	HasNext    bool
	PrevNumber int
	NextNumber int
}

// FeedService 各范围（全部/群组/作者/关注）的帖子流，统一按 pub_date 倒序分页
type FeedService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	perPage  int
}

func NewFeedService(posts repository.PostRepository, comments repository.CommentRepository, perPage int) *FeedService {
	if perPage < 1 {
		perPage = DefaultPostsPerPage
	}
	return &FeedService{posts: posts, comments: comments, perPage: perPage}
}

func (s *FeedService) PerPage() int { return s.perPage }

// clampPage 页码越界时收敛到合法页：非法输入取第 1 页，超出末页取末页。
// 与原分页器 get_page 的行为保持一致，不报错。
func clampPage(page, totalPages int) int {
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page
}

func (s *FeedService) paginate(ctx context.Context, page int, total int64,
	list func(offset, limit int) ([]models.Post, error)) (Page, error) {

	totalPages := int(math.Ceil(float64(total) / float64(s.perPage)))
	if totalPages == 0 {
		totalPages = 1
	}
	page = clampPage(page, totalPages)

	offset := (page - 1) * s.perPage
	posts, err := list(offset, s.perPage)
	if err != nil {
		return Page{}, err
	}
	if err := s.fillCommentCounts(ctx, posts); err != nil {
		return Page{}, err
	}

	return Page{
		Posts:      posts,
		Number:     page,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
		PrevNumber: page - 1,
		NextNumber: page + 1,
	}, nil
}

// fillCommentCounts 批量填充帖子的评论数量
func (s *FeedService) fillCommentCounts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	counts, err := s.comments.CountForPosts(ctx, postIDs)
	if err != nil {
		return err
	}
	for i := range posts {
		posts[i].CommentCount = counts[posts[i].ID]
	}
	return nil
}

// All 全站帖子流（首页）
func (s *FeedService) All(ctx context.Context, page int) (Page, error) {
	total, err := s.posts.CountAll(ctx)
	if err != nil {
		return Page{}, err
	}
	return s.paginate(ctx, page, total, func(offset, limit int) ([]models.Post, error) {
		return s.posts.ListAll(ctx, offset, limit)
	})
}

// ByGroup 指定群组的帖子流
func (s *FeedService) ByGroup(ctx context.Context, groupID uint, page int) (Page, error) {
	total, err := s.posts.CountByGroup(ctx, groupID)
	if err != nil {
		return Page{}, err
	}
	return s.paginate(ctx, page, total, func(offset, limit int) ([]models.Post, error) {
		return s.posts.ListByGroup(ctx, groupID, offset, limit)
	})
}

// ByAuthor 指定作者的帖子流（个人主页）
func (s *FeedService) ByAuthor(ctx context.Context, authorID uint, page int) (Page, error) {
	total, err := s.posts.CountByAuthor(ctx, authorID)
	if err != nil {
		return Page{}, err
	}
	return s.paginate(ctx, page, total, func(offset, limit int) ([]models.Post, error) {
		return s.posts.ListByAuthor(ctx, authorID, offset, limit)
	})
}

// Following viewer 关注的作者们的帖子流
func (s *FeedService) Following(ctx context.Context, viewerID uint, page int) (Page, error) {
	total, err := s.posts.CountByFollowed(ctx, viewerID)
	if err != nil {
		return Page{}, err
	}
	return s.paginate(ctx, page, total, func(offset, limit int) ([]models.Post, error) {
		return s.posts.ListByFollowed(ctx, viewerID, offset, limit)
	})
}
