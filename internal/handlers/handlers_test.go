package handlers_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
	"yatube/internal/cache"
	"yatube/internal/models"
	"yatube/internal/router"
	"yatube/internal/utils"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testPassword = "password123"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Post{},
		&models.Comment{},
		&models.Follow{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testTemplates 用内联模板替代磁盘上的页面，测试只关心数据不关心排版
func testTemplates() multitemplate.Renderer {
	r := multitemplate.NewRenderer()
	page := `{{range .Page.Posts}}{{.ID}}:{{.Text}};{{end}}[page {{.Page.Number}}/{{.Page.TotalPages}}]`
	r.AddFromString("posts/index.html", page)
	r.AddFromString("posts/group.html", `group={{.Group.Slug}} `+page)
	r.AddFromString("posts/profile.html", `author={{.Author.Username}} following={{.Follow.IsFollowing}} `+page)
	r.AddFromString("posts/post.html", `post={{.Post.ID}} comments={{len .Comments}}{{range $k, $v := .Errors}} {{$k}}={{$v}}{{end}}`)
	r.AddFromString("posts/edit.html", `edit{{range $k, $v := .Errors}} {{$k}}={{$v}}{{end}}`)
	r.AddFromString("posts/follow.html", page)
	r.AddFromString("auth/login.html", `login next={{.Next}}`)
	r.AddFromString("auth/signup.html", `signup`)
	r.AddFromString("error.html", `error: {{.Error}}`)
	return r
}

func setupServer(t *testing.T) (*gin.Engine, *gorm.DB, *cache.PageCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)

	r := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	r.Use(sessions.Sessions("yatube_session", store))
	r.HTMLRender = testTemplates()

	pageCache, err := cache.New(16)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	router.RegisterRoutes(r, db, pageCache, router.Options{
		PerPage:   10,
		CacheTTL:  time.Minute,
		MediaRoot: t.TempDir(),
	})
	return r, db, pageCache
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{Username: username, Email: username + "@example.com", Password: hash}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return &user
}

func seedPost(t *testing.T, db *gorm.DB, author *models.User, text string) *models.Post {
	t.Helper()
	post := models.Post{Text: text, PubDate: time.Now(), AuthorID: author.ID}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return &post
}

func doRequest(r *gin.Engine, method, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine, username string) []*http.Cookie {
	t.Helper()
	w := doRequest(r, http.MethodPost, "/login", url.Values{
		"username": {username},
		"password": {testPassword},
	}, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("login %s: expected 302, got %d (%s)", username, w.Code, w.Body.String())
	}
	return w.Result().Cookies()
}

func TestCreatePostStoresAuthorAndRedirects(t *testing.T) {
	r, db, _ := setupServer(t)
	alice := seedUser(t, db, "alice")
	cookies := login(t, r, "alice")

	before := time.Now()
	w := doRequest(r, http.MethodPost, "/new", url.Values{"text": {"hello world"}}, cookies)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d (%s)", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("expected redirect to /, got %s", loc)
	}

	var post models.Post
	if err := db.First(&post).Error; err != nil {
		t.Fatalf("post not stored: %v", err)
	}
	if post.AuthorID != alice.ID {
		t.Errorf("expected author %d, got %d", alice.ID, post.AuthorID)
	}
	if post.PubDate.Before(before.Add(-time.Second)) || post.PubDate.After(time.Now().Add(time.Second)) {
		t.Errorf("pub_date not set to creation time: %v", post.PubDate)
	}
}

func TestCreatePostBlankTextSoftFails(t *testing.T) {
	r, db, _ := setupServer(t)
	seedUser(t, db, "alice")
	cookies := login(t, r, "alice")

	w := doRequest(r, http.MethodPost, "/new", url.Values{"text": {"   "}}, cookies)
	// 软失败：返回 200 并重绘表单，而不是错误页
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Text=") {
		t.Errorf("expected field error in body, got %s", w.Body.String())
	}

	var count int64
	db.Model(&models.Post{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no post written, got %d", count)
	}
}

func TestCreatePostUnknownGroup(t *testing.T) {
	r, db, _ := setupServer(t)
	seedUser(t, db, "alice")
	cookies := login(t, r, "alice")

	w := doRequest(r, http.MethodPost, "/new", url.Values{
		"text":  {"hello"},
		"group": {"999"},
	}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Group=") {
		t.Errorf("expected group error in body, got %s", w.Body.String())
	}

	var count int64
	db.Model(&models.Post{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no post written, got %d", count)
	}
}

func TestEditByNonAuthorRedirectsUnchanged(t *testing.T) {
	r, db, _ := setupServer(t)
	alice := seedUser(t, db, "alice")
	seedUser(t, db, "bob")
	post := seedPost(t, db, alice, "original text")

	cookies := login(t, r, "bob")
	editURL := fmt.Sprintf("/alice/%d/edit", post.ID)
	w := doRequest(r, http.MethodPost, editURL, url.Values{"text": {"hacked"}}, cookies)

	// 非作者静默跳回详情页
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != fmt.Sprintf("/alice/%d", post.ID) {
		t.Errorf("expected redirect to post view, got %s", loc)
	}

	var stored models.Post
	db.First(&stored, post.ID)
	if stored.Text != "original text" {
		t.Errorf("post mutated by non-author: %q", stored.Text)
	}
}

func TestEditByAuthor(t *testing.T) {
	r, db, _ := setupServer(t)
	alice := seedUser(t, db, "alice")
	post := seedPost(t, db, alice, "original text")

	cookies := login(t, r, "alice")
	editURL := fmt.Sprintf("/alice/%d/edit", post.ID)
	w := doRequest(r, http.MethodPost, editURL, url.Values{"text": {"updated text"}}, cookies)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d (%s)", w.Code, w.Body.String())
	}

	var stored models.Post
	db.First(&stored, post.ID)
	if stored.Text != "updated text" {
		t.Errorf("expected updated text, got %q", stored.Text)
	}
	// pub_date 不随编辑变化
	if !stored.PubDate.Equal(post.PubDate) {
		t.Errorf("pub_date changed on edit: %v -> %v", post.PubDate, stored.PubDate)
	}
}

func TestUnauthenticatedCommentRedirectsToLogin(t *testing.T) {
	r, db, _ := setupServer(t)
	alice := seedUser(t, db, "alice")
	post := seedPost(t, db, alice, "a post")

	commentURL := fmt.Sprintf("/alice/%d/comment", post.ID)
	w := doRequest(r, http.MethodPost, commentURL, url.Values{"text": {"hi"}}, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	expected := "/login?next=" + url.QueryEscape(commentURL)
	if loc := w.Header().Get("Location"); loc != expected {
		t.Errorf("expected redirect to %s, got %s", expected, loc)
	}

	var count int64
	db.Model(&models.Comment{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no comment written, got %d", count)
	}
}

func TestAddComment(t *testing.T) {
	r, db, _ := setupServer(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	post := seedPost(t, db, alice, "a post")

	cookies := login(t, r, "bob")
	commentURL := fmt.Sprintf("/alice/%d/comment", post.ID)
	w := doRequest(r, http.MethodPost, commentURL, url.Values{"text": {"nice one"}}, cookies)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d (%s)", w.Code, w.Body.String())
	}

	var comment models.Comment
	if err := db.First(&comment).Error; err != nil {
		t.Fatalf("comment not stored: %v", err)
	}
	if comment.AuthorID != bob.ID || comment.PostID != post.ID {
		t.Errorf("comment misattributed: %+v", comment)
	}
}

func TestGroupFeedNotFound(t *testing.T) {
	r, _, _ := setupServer(t)
	w := doRequest(r, http.MethodGet, "/group/unknown-slug", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestProfileNotFound(t *testing.T) {
	r, _, _ := setupServer(t)
	w := doRequest(r, http.MethodGet, "/nobody", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestFollowIndexRequiresLogin(t *testing.T) {
	r, _, _ := setupServer(t)
	w := doRequest(r, http.MethodGet, "/follow", nil, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?next=%2Ffollow" {
		t.Errorf("expected login redirect with next, got %s", loc)
	}
}

func TestFollowUnfollowFlow(t *testing.T) {
	r, db, _ := setupServer(t)
	seedUser(t, db, "alice")
	seedUser(t, db, "bob")
	cookies := login(t, r, "alice")

	countEdges := func() int64 {
		var cnt int64
		db.Model(&models.Follow{}).Count(&cnt)
		return cnt
	}

	// 关注两次仍然只有一条边，且每次都跳回作者主页
	for i := 0; i < 2; i++ {
		w := doRequest(r, http.MethodGet, "/bob/follow", nil, cookies)
		if w.Code != http.StatusFound {
			t.Fatalf("follow: expected 302, got %d", w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/bob" {
			t.Errorf("expected redirect to /bob, got %s", loc)
		}
	}
	if got := countEdges(); got != 1 {
		t.Errorf("expected 1 edge after double follow, got %d", got)
	}

	// 取关，再取关一次也不报错
	for i := 0; i < 2; i++ {
		w := doRequest(r, http.MethodGet, "/bob/unfollow", nil, cookies)
		if w.Code != http.StatusFound {
			t.Fatalf("unfollow: expected 302, got %d", w.Code)
		}
	}
	if got := countEdges(); got != 0 {
		t.Errorf("expected 0 edges after unfollow, got %d", got)
	}
}

func TestSelfFollowCreatesNoEdge(t *testing.T) {
	r, db, _ := setupServer(t)
	seedUser(t, db, "alice")
	cookies := login(t, r, "alice")

	w := doRequest(r, http.MethodGet, "/alice/follow", nil, cookies)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/alice" {
		t.Errorf("expected redirect to own profile, got %s", loc)
	}

	var cnt int64
	db.Model(&models.Follow{}).Count(&cnt)
	if cnt != 0 {
		t.Errorf("expected no self edge, got %d", cnt)
	}
}

func TestIndexCacheServesStaleUntilCleared(t *testing.T) {
	r, db, pageCache := setupServer(t)
	alice := seedUser(t, db, "alice")
	post := seedPost(t, db, alice, "soon deleted")

	first := doRequest(r, http.MethodGet, "/", nil, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}
	if !strings.Contains(first.Body.String(), "soon deleted") {
		t.Fatalf("expected post in feed, got %s", first.Body.String())
	}

	// 删除帖子不会主动失效缓存，TTL 窗口内内容保持字节一致
	if err := db.Delete(&models.Post{}, post.ID).Error; err != nil {
		t.Fatalf("delete post: %v", err)
	}

	second := doRequest(r, http.MethodGet, "/", nil, nil)
	if second.Body.String() != first.Body.String() {
		t.Errorf("expected byte-identical cached body, got diff:\n%s\n%s", first.Body.String(), second.Body.String())
	}

	// 清空缓存后反映删除
	pageCache.Clear()
	third := doRequest(r, http.MethodGet, "/", nil, nil)
	if strings.Contains(third.Body.String(), "soon deleted") {
		t.Errorf("expected deletion visible after cache clear, got %s", third.Body.String())
	}
}

func TestIndexCacheHitConcurrent(t *testing.T) {
	r, db, _ := setupServer(t)
	alice := seedUser(t, db, "alice")
	seedPost(t, db, alice, "hot post")

	// 预热缓存，后续请求全部命中同一条目
	warm := doRequest(r, http.MethodGet, "/", nil, nil)
	if warm.Code != http.StatusOK {
		t.Fatalf("warm-up: expected 200, got %d", warm.Code)
	}
	expected := warm.Body.String()

	// 并发命中共享的缓存数据，渲染不得写入缓存里的 map
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := doRequest(r, http.MethodGet, "/", nil, nil)
			if w.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", w.Code)
				return
			}
			if w.Body.String() != expected {
				t.Errorf("expected identical cached body, got %s", w.Body.String())
			}
		}()
	}
	wg.Wait()
}

func TestIndexCacheKeyUsesClampedPage(t *testing.T) {
	r, db, _ := setupServer(t)
	alice := seedUser(t, db, "alice")
	for i := 1; i <= 13; i++ {
		seedPost(t, db, alice, fmt.Sprintf("post %d", i))
	}

	// 越界页码渲染末页，并按收敛后的页码写缓存
	over := doRequest(r, http.MethodGet, "/?page=99", nil, nil)
	if over.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", over.Code)
	}
	if !strings.Contains(over.Body.String(), "[page 2/2]") {
		t.Fatalf("expected clamp to last page, got %s", over.Body.String())
	}

	// 删除一条帖子后直接请求第 2 页：命中越界请求写下的同一条目，内容一致
	if err := db.Where("text = ?", "post 1").Delete(&models.Post{}).Error; err != nil {
		t.Fatalf("delete post: %v", err)
	}
	direct := doRequest(r, http.MethodGet, "/?page=2", nil, nil)
	if direct.Body.String() != over.Body.String() {
		t.Errorf("expected page 2 to share the clamped cache entry, got diff:\n%s\n%s",
			over.Body.String(), direct.Body.String())
	}
}

func TestIndexPagination(t *testing.T) {
	r, db, _ := setupServer(t)
	alice := seedUser(t, db, "alice")
	for i := 1; i <= 13; i++ {
		seedPost(t, db, alice, fmt.Sprintf("post %d", i))
	}

	w := doRequest(r, http.MethodGet, "/?page=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "[page 2/2]") {
		t.Errorf("expected page 2 of 2, got %s", w.Body.String())
	}

	// 垃圾页码取第 1 页
	w = doRequest(r, http.MethodGet, "/?page=abc", nil, nil)
	if !strings.Contains(w.Body.String(), "[page 1/2]") {
		t.Errorf("expected page 1 for junk input, got %s", w.Body.String())
	}
}

func TestSignupAndLoginFlow(t *testing.T) {
	r, db, _ := setupServer(t)

	w := doRequest(r, http.MethodPost, "/signup", url.Values{
		"username": {"newbie"},
		"email":    {"newbie@example.com"},
		"password": {testPassword},
	}, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("signup: expected 302, got %d (%s)", w.Code, w.Body.String())
	}

	var user models.User
	if err := db.Where("username = ?", "newbie").First(&user).Error; err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if user.Password == testPassword {
		t.Errorf("password stored in plain text")
	}

	// next 返回路径生效
	cookies := login(t, r, "newbie")
	w = doRequest(r, http.MethodPost, "/login", url.Values{
		"username": {"newbie"},
		"password": {testPassword},
		"next":     {"/follow"},
	}, cookies)
	if loc := w.Header().Get("Location"); loc != "/follow" {
		t.Errorf("expected redirect to next path, got %s", loc)
	}
}
