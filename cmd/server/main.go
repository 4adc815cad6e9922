package main

import (
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"time"
	"yatube/internal/cache"
	"yatube/internal/db"
	"yatube/internal/handlers"
	"yatube/internal/router"
	"yatube/internal/utils"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	// Initialize Database
	db.Init()

	// Initialize Gin
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.CustomRecovery(handlers.ServerError))

	// Setup Sessions
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "secret_key_change_me"
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("yatube_session", store))

	// Load Templates using Multitemplate to avoid collision and allow handler names
	r.HTMLRender = loadTemplates("./web/templates")

	// Static Assets & Media
	mediaRoot := os.Getenv("MEDIA_ROOT")
	if mediaRoot == "" {
		mediaRoot = "./web/media"
	}
	r.Static("/static", "./web/static")
	r.Static("/media", mediaRoot)

	// 首页片段缓存
	pageCache, err := cache.New(64)
	if err != nil {
		log.Fatalf("Failed to create page cache: %v", err)
	}

	cacheTTL := 20 * time.Second
	if v := utils.StringToInt(os.Getenv("INDEX_CACHE_TTL")); v > 0 {
		cacheTTL = time.Duration(v) * time.Second
	}

	perPage := 10
	if v := utils.StringToInt(os.Getenv("POSTS_PER_PAGE")); v > 0 {
		perPage = v
	}

	router.RegisterRoutes(r, db.DB, pageCache, router.Options{
		PerPage:   perPage,
		CacheTTL:  cacheTTL,
		MediaRoot: mediaRoot,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Yatube server starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

func loadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	// Helper to assemble files: base layout + view
	assemble := func(view string) []string {
		files := make([]string, 0)
		files = append(files, layouts...)
		files = append(files, view)
		return files
	}

	// FuncMap
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"timeAgo": func(t interface{}) string {
			var timeVal time.Time
			switch v := t.(type) {
			case time.Time:
				timeVal = v
			default:
				return ""
			}

			duration := time.Since(timeVal)
			seconds := int(duration.Seconds())

			if seconds < 60 {
				return fmt.Sprintf("%d秒前", seconds)
			} else if seconds < 3600 {
				return fmt.Sprintf("%d分钟前", seconds/60)
			} else if seconds < 86400 {
				return fmt.Sprintf("%d小时前", seconds/3600)
			} else if seconds < 2592000 {
				return fmt.Sprintf("%d天前", seconds/86400)
			} else if seconds < 31536000 {
				return fmt.Sprintf("%d个月前", seconds/2592000)
			}
			return fmt.Sprintf("%d年前", seconds/31536000)
		},
	}

	// Manual registration to ensure keys match handler expectation
	// Posts
	r.AddFromFilesFuncs("posts/index.html", funcMap, assemble(templatesDir+"/views/posts/index.html")...)
	r.AddFromFilesFuncs("posts/group.html", funcMap, assemble(templatesDir+"/views/posts/group.html")...)
	r.AddFromFilesFuncs("posts/profile.html", funcMap, assemble(templatesDir+"/views/posts/profile.html")...)
	r.AddFromFilesFuncs("posts/post.html", funcMap, assemble(templatesDir+"/views/posts/post.html")...)
	r.AddFromFilesFuncs("posts/edit.html", funcMap, assemble(templatesDir+"/views/posts/edit.html")...)
	r.AddFromFilesFuncs("posts/follow.html", funcMap, assemble(templatesDir+"/views/posts/follow.html")...)

	// Auth
	r.AddFromFilesFuncs("auth/login.html", funcMap, assemble(templatesDir+"/views/auth/login.html")...)
	r.AddFromFilesFuncs("auth/signup.html", funcMap, assemble(templatesDir+"/views/auth/signup.html")...)

	// Error
	r.AddFromFilesFuncs("error.html", funcMap, assemble(templatesDir+"/views/error.html")...)

	return r
}
