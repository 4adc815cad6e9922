package handlers

import (
	"net/http"
	"regexp"
	"strings"
	"yatube/internal/models"
	"yatube/internal/repository"
	"yatube/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	users repository.UserRepository
}

func NewAuthHandler(users repository.UserRepository) *AuthHandler {
	return &AuthHandler{users: users}
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// 与路由表冲突的用户名不允许注册
var reservedUsernames = map[string]bool{
	"new":    true,
	"follow": true,
	"group":  true,
	"signup": true,
	"login":  true,
	"logout": true,
	"static": true,
	"media":  true,
}

func (h *AuthHandler) ShowRegister(c *gin.Context) {
	Render(c, http.StatusOK, "auth/signup.html", gin.H{
		"Title":    "注册",
		"Username": "",
		"Email":    "",
	})
}

func (h *AuthHandler) Register(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	renderForm := func(errMsg string) {
		Render(c, http.StatusOK, "auth/signup.html", gin.H{
			"Title":    "注册",
			"Error":    errMsg,
			"Username": username,
			"Email":    email,
		})
	}

	if !usernamePattern.MatchString(username) || reservedUsernames[username] {
		renderForm("用户名不可用，仅允许 3-30 位字母、数字和下划线")
		return
	}
	if email == "" {
		renderForm("邮箱不能为空")
		return
	}
	if len(password) < 6 {
		renderForm("密码至少 6 位")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.users.GetByUsername(ctx, username); err == nil {
		renderForm("该用户名已被注册")
		return
	}
	if _, err := h.users.GetByEmail(ctx, email); err == nil {
		renderForm("该邮箱已被注册")
		return
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "系统错误")
		return
	}

	user := models.User{Username: username, Email: email, Password: hash}
	if err := h.users.Create(ctx, &user); err != nil {
		renderForm("注册失败，请稍后再试")
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	Render(c, http.StatusOK, "auth/login.html", gin.H{
		"Title":    "登录",
		"Username": "",
		"Next":     c.Query("next"),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	next := c.PostForm("next")

	user, err := h.users.GetByUsername(c.Request.Context(), username)
	if err != nil || !utils.CheckPasswordHash(password, user.Password) {
		Render(c, http.StatusOK, "auth/login.html", gin.H{
			"Title":    "登录",
			"Error":    "用户名或密码错误",
			"Username": username,
			"Next":     next,
		})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	// 只允许站内返回路径，防止开放跳转
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	c.Redirect(http.StatusFound, next)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Delete("user_id")
	session.Save()
	c.Redirect(http.StatusFound, "/")
}
