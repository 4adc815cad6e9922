package router

import (
	"time"
	"yatube/internal/cache"
	"yatube/internal/handlers"
	"yatube/internal/middleware"
	"yatube/internal/repository"
	"yatube/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Options 路由装配参数，由 main 从环境变量读入
type Options struct {
	PerPage   int           // 每页帖子数
	CacheTTL  time.Duration // 首页片段缓存有效期
	MediaRoot string        // 上传图片的本地目录
}

func RegisterRoutes(r *gin.Engine, gdb *gorm.DB, pageCache *cache.PageCache, opts Options) {
	// Repositories
	users := repository.NewUserRepository(gdb)
	groups := repository.NewGroupRepository(gdb)
	posts := repository.NewPostRepository(gdb)
	comments := repository.NewCommentRepository(gdb)
	followRepo := repository.NewFollowRepository(gdb)

	// Services
	feedService := services.NewFeedService(posts, comments, opts.PerPage)
	followService := services.NewFollowService(followRepo)
	images := services.NewImageStorage(opts.MediaRoot)

	// Middleware
	r.Use(middleware.LoadUser(users))

	// Handlers
	authHandler := handlers.NewAuthHandler(users)
	postHandler := handlers.NewPostHandler(feedService, posts, groups, comments, users, followService, images, pageCache, opts.CacheTTL)
	followHandler := handlers.NewFollowHandler(users, followService)

	// 公共路由 (Public Routes)
	r.GET("/", postHandler.Index)                  // 首页 - 全站最新帖子（带缓存）
	r.GET("/group/:slug", postHandler.GroupPosts)  // 群组下的帖子列表
	r.GET("/signup", authHandler.ShowRegister)     // 注册页面
	r.POST("/signup", authHandler.Register)        // 提交注册
	r.GET("/login", authHandler.ShowLogin)         // 登录页面
	r.POST("/login", authHandler.Login)            // 提交登录
	r.GET("/logout", authHandler.Logout)           // 退出登录

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/new", postHandler.ShowCreate)                        // 发布帖子页面
		authorized.POST("/new", postHandler.Create)                           // 提交发布帖子
		authorized.GET("/follow", postHandler.FollowIndex)                    // 已关注作者的帖子流
		authorized.GET("/:username/follow", followHandler.Follow)             // 关注作者
		authorized.GET("/:username/unfollow", followHandler.Unfollow)         // 取消关注
		authorized.GET("/:username/:post_id/edit", postHandler.ShowEdit)      // 编辑帖子页面（仅作者）
		authorized.POST("/:username/:post_id/edit", postHandler.Update)       // 提交帖子更新（仅作者）
		authorized.POST("/:username/:post_id/comment", postHandler.AddComment) // 发表评论
	}

	// 个人主页与帖子详情
	r.GET("/:username", postHandler.Profile)           // 作者主页 + 关注状态
	r.GET("/:username/:post_id", postHandler.PostView) // 帖子详情 + 评论

	// 未匹配路由 → 404 页
	r.NoRoute(handlers.NotFound)
}
