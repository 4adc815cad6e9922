package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"
	"yatube/internal/cache"
	"yatube/internal/forms"
	"yatube/internal/models"
	"yatube/internal/repository"
	"yatube/internal/services"
	"yatube/internal/utils"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	feed     *services.FeedService
	posts    repository.PostRepository
	groups   repository.GroupRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	follows  *services.FollowService
	images   *services.ImageStorage

	// 首页片段缓存：惰性填充，只靠 TTL 过期（帖子写入不主动失效）
	pageCache *cache.PageCache
	cacheTTL  time.Duration
}

func NewPostHandler(
	feed *services.FeedService,
	posts repository.PostRepository,
	groups repository.GroupRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	follows *services.FollowService,
	images *services.ImageStorage,
	pageCache *cache.PageCache,
	cacheTTL time.Duration,
) *PostHandler {
	return &PostHandler{
		feed:      feed,
		posts:     posts,
		groups:    groups,
		comments:  comments,
		users:     users,
		follows:   follows,
		images:    images,
		pageCache: pageCache,
		cacheTTL:  cacheTTL,
	}
}

// Index 首页 - 全站最新帖子
func (h *PostHandler) Index(c *gin.Context) {
	page := utils.ParsePage(c.Query("page"))

	if cachedData := h.pageCache.Get(indexCacheKey(page)); cachedData != nil {
		if hData, ok := cachedData.(gin.H); ok {
			Render(c, http.StatusOK, "posts/index.html", copyH(hData))
			return
		}
	}

	feedPage, err := h.feed.All(c.Request.Context(), page)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "加载帖子失败")
		return
	}

	renderData := gin.H{
		"Title": "最新记录",
		"Page":  feedPage,
	}

	// 键用收敛后的页码，越界请求不会把同一页内容另存一份
	h.pageCache.Set(indexCacheKey(feedPage.Number), renderData, h.cacheTTL)

	Render(c, http.StatusOK, "posts/index.html", copyH(renderData))
}

func indexCacheKey(page int) string {
	return fmt.Sprintf("posts:index:page:%d", page)
}

// copyH 缓存的渲染数据被并发请求共享，而 Render 要往里写请求级字段
// （当前用户、路径），只能在浅拷贝上渲染
func copyH(data gin.H) gin.H {
	out := make(gin.H, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	return out
}

// GroupPosts 群组下的帖子列表
func (h *PostHandler) GroupPosts(c *gin.Context) {
	slug := c.Param("slug")

	group, err := h.groups.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		RenderError(c, http.StatusNotFound, "群组不存在")
		return
	}

	page := utils.ParsePage(c.Query("page"))
	feedPage, err := h.feed.ByGroup(c.Request.Context(), group.ID, page)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "加载帖子失败")
		return
	}

	Render(c, http.StatusOK, "posts/group.html", gin.H{
		"Title": group.Title,
		"Group": group,
		"Page":  feedPage,
	})
}

// Profile 作者主页 + 帖子列表 + 关注状态
func (h *PostHandler) Profile(c *gin.Context) {
	username := c.Param("username")
	ctx := c.Request.Context()

	author, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		RenderError(c, http.StatusNotFound, "用户不存在")
		return
	}

	page := utils.ParsePage(c.Query("page"))
	feedPage, err := h.feed.ByAuthor(ctx, author.ID, page)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "加载帖子失败")
		return
	}

	stats, err := h.follows.Stats(ctx, currentUserID(c), author.ID)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "加载关注数据失败")
		return
	}

	Render(c, http.StatusOK, "posts/profile.html", gin.H{
		"Title":  author.Username + " 的主页",
		"Author": author,
		"Page":   feedPage,
		"Follow": stats,
	})
}

// FollowIndex 已关注作者的帖子流
func (h *PostHandler) FollowIndex(c *gin.Context) {
	user := currentUser(c)

	page := utils.ParsePage(c.Query("page"))
	feedPage, err := h.feed.Following(c.Request.Context(), user.ID, page)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "加载帖子失败")
		return
	}

	Render(c, http.StatusOK, "posts/follow.html", gin.H{
		"Title": "我的关注",
		"Page":  feedPage,
	})
}

// lookupPost 按 (username, post_id) 复合键定位帖子，失败时渲染 404
func (h *PostHandler) lookupPost(c *gin.Context) (*models.Post, bool) {
	username := c.Param("username")
	id, err := strconv.Atoi(c.Param("post_id"))
	if err != nil || id < 1 {
		RenderError(c, http.StatusNotFound, "帖子不存在")
		return nil, false
	}

	post, err := h.posts.GetByAuthorAndID(c.Request.Context(), username, uint(id))
	if err != nil {
		RenderError(c, http.StatusNotFound, "帖子不存在")
		return nil, false
	}
	return post, true
}

type commentView struct {
	models.Comment
	TextHTML template.HTML
}

// renderPostPage 帖子详情页，评论表单校验失败时复用同一渲染
func (h *PostHandler) renderPostPage(c *gin.Context, post *models.Post, form forms.CommentForm, errs map[string]string) {
	ctx := c.Request.Context()

	comments, err := h.comments.ListByPost(ctx, post.ID)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "加载评论失败")
		return
	}

	views := make([]commentView, len(comments))
	for i, com := range comments {
		views[i] = commentView{Comment: com, TextHTML: utils.RenderMarkdown(com.Text)}
	}

	stats, err := h.follows.Stats(ctx, currentUserID(c), post.AuthorID)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "加载关注数据失败")
		return
	}

	Render(c, http.StatusOK, "posts/post.html", gin.H{
		"Title":    post.Author.Username + " 的帖子",
		"Post":     post,
		"PostHTML": utils.RenderMarkdown(post.Text),
		"Author":   post.Author,
		"Comments": views,
		"Follow":   stats,
		"Form":     form,
		"Errors":   errs,
	})
}

// PostView 帖子详情 + 评论 + 评论表单
func (h *PostHandler) PostView(c *gin.Context) {
	post, ok := h.lookupPost(c)
	if !ok {
		return
	}
	h.renderPostPage(c, post, forms.CommentForm{}, nil)
}

// renderPostForm 发布/编辑表单页，校验失败时带字段错误重绘并保留已填内容
func (h *PostHandler) renderPostForm(c *gin.Context, post *models.Post, form forms.PostForm, errs map[string]string) {
	groups, err := h.groups.List(c.Request.Context())
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "加载群组失败")
		return
	}

	title := "发布新帖"
	if post != nil {
		title = "编辑帖子"
	}

	// 软失败：校验错误仍然返回 200，由表单展示错误文案
	Render(c, http.StatusOK, "posts/edit.html", gin.H{
		"Title":  title,
		"Post":   post,
		"Form":   form,
		"Errors": errs,
		"Groups": groups,
	})
}

// ShowCreate 发布帖子页面
func (h *PostHandler) ShowCreate(c *gin.Context) {
	h.renderPostForm(c, nil, forms.PostForm{}, nil)
}

// resolveGroup 解析可选的群组字段，返回群组 ID（未选择时为 nil）
func (h *PostHandler) resolveGroup(c *gin.Context, form forms.PostForm, errs map[string]string) *uint {
	if form.Group == "" {
		return nil
	}
	gid := utils.StringToInt(form.Group)
	group, err := h.groups.GetByID(c.Request.Context(), uint(gid))
	if err != nil {
		errs["Group"] = "所选群组不存在"
		return nil
	}
	return &group.ID
}

// saveImage 保存可选的帖子配图，返回媒体相对路径（未上传时为空串）
func (h *PostHandler) saveImage(c *gin.Context, errs map[string]string) string {
	header, err := c.FormFile("image")
	if err != nil {
		// 未上传图片
		return ""
	}
	path, err := h.images.SavePost(header)
	if err != nil {
		errs["Image"] = "图片保存失败"
		return ""
	}
	return path
}

// Create 提交发布帖子
func (h *PostHandler) Create(c *gin.Context) {
	user := currentUser(c)

	var form forms.PostForm
	_ = c.ShouldBind(&form)
	errs := forms.Validate(&form)

	groupID := h.resolveGroup(c, form, errs)
	image := ""
	if len(errs) == 0 {
		image = h.saveImage(c, errs)
	}
	if len(errs) > 0 {
		h.renderPostForm(c, nil, form, errs)
		return
	}

	post := models.Post{
		Text:     form.Text,
		PubDate:  time.Now(),
		AuthorID: user.ID,
		GroupID:  groupID,
		Image:    image,
	}
	if err := h.posts.Create(c.Request.Context(), &post); err != nil {
		errs["Text"] = "发布失败，请稍后再试"
		h.renderPostForm(c, nil, form, errs)
		return
	}

	c.Redirect(http.StatusFound, "/")
}

// ShowEdit 编辑帖子页面，仅作者可见，其他人跳回详情页
func (h *PostHandler) ShowEdit(c *gin.Context) {
	post, ok := h.lookupPost(c)
	if !ok {
		return
	}

	if post.AuthorID != currentUserID(c) {
		c.Redirect(http.StatusFound, postURL(post))
		return
	}

	form := forms.PostForm{Text: post.Text}
	if post.GroupID != nil {
		form.Group = strconv.Itoa(int(*post.GroupID))
	}
	h.renderPostForm(c, post, form, nil)
}

// Update 提交帖子更新。非作者静默跳回详情页，不做任何修改。
func (h *PostHandler) Update(c *gin.Context) {
	post, ok := h.lookupPost(c)
	if !ok {
		return
	}

	if post.AuthorID != currentUserID(c) {
		c.Redirect(http.StatusFound, postURL(post))
		return
	}

	var form forms.PostForm
	_ = c.ShouldBind(&form)
	errs := forms.Validate(&form)

	groupID := h.resolveGroup(c, form, errs)
	image := ""
	if len(errs) == 0 {
		image = h.saveImage(c, errs)
	}
	if len(errs) > 0 {
		h.renderPostForm(c, post, form, errs)
		return
	}

	// pub_date 创建后不再变更
	post.Text = form.Text
	post.GroupID = groupID
	if image != "" {
		post.Image = image
	}
	if err := h.posts.Save(c.Request.Context(), post); err != nil {
		errs["Text"] = "保存失败，请稍后再试"
		h.renderPostForm(c, post, form, errs)
		return
	}

	c.Redirect(http.StatusFound, postURL(post))
}

// AddComment 发表评论
func (h *PostHandler) AddComment(c *gin.Context) {
	user := currentUser(c)

	post, ok := h.lookupPost(c)
	if !ok {
		return
	}

	var form forms.CommentForm
	_ = c.ShouldBind(&form)
	if errs := forms.Validate(&form); len(errs) > 0 {
		h.renderPostPage(c, post, form, errs)
		return
	}

	comment := models.Comment{
		PostID:   post.ID,
		AuthorID: user.ID,
		Text:     form.Text,
	}
	if err := h.comments.Create(c.Request.Context(), &comment); err != nil {
		RenderError(c, http.StatusInternalServerError, "评论失败，请稍后再试")
		return
	}

	c.Redirect(http.StatusFound, postURL(post))
}

func postURL(post *models.Post) string {
	return fmt.Sprintf("/%s/%d", post.Author.Username, post.ID)
}
