package middleware

import (
	"net/http"
	"net/url"
	"yatube/internal/repository"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CheckUserKey = "user"

// LoginURL 登录页路径，受保护页面未登录时跳转到这里并带上返回路径
const LoginURL = "/login"

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")
		_, loaded := c.Get(CheckUserKey)
		// 会话里没有 user_id，或用户已不存在（LoadUser 未能加载），都按未登录处理
		if userID == nil || !loaded {
			// 带上 next 返回路径，登录成功后跳回原地址
			next := c.Request.URL.RequestURI()
			c.Redirect(http.StatusFound, LoginURL+"?next="+url.QueryEscape(next))
			c.Abort()
			return
		}

		c.Next()
	}
}

// LoadUser retrieves user from session and sets to context
func LoadUser(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")

		if userID != nil {
			if id, ok := userID.(uint); ok {
				user, err := users.GetByID(c.Request.Context(), id)
				if err == nil {
					c.Set(CheckUserKey, user)
				}
			}
		}
		c.Next()
	}
}
