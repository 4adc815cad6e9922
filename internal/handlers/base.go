package handlers

import (
	"net/http"
	"yatube/internal/middleware"
	"yatube/internal/models"

	"github.com/gin-gonic/gin"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	// Inject Current User（匿名时显式置空，避免复用缓存数据时串号）
	obj["CurrentUser"] = currentUser(c)
	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// RenderError 渲染通用错误页
func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message})
}

// NotFound 未匹配路由的 404 页
func NotFound(c *gin.Context) {
	RenderError(c, http.StatusNotFound, "页面不存在")
}

// ServerError 未处理异常的兜底 500 页，配合 gin.CustomRecovery 使用
func ServerError(c *gin.Context, _ interface{}) {
	RenderError(c, http.StatusInternalServerError, "服务器内部错误")
}

func currentUser(c *gin.Context) *models.User {
	if user, exists := c.Get(middleware.CheckUserKey); exists {
		if u, ok := user.(*models.User); ok {
			return u
		}
	}
	return nil
}

func currentUserID(c *gin.Context) uint {
	if user := currentUser(c); user != nil {
		return user.ID
	}
	return 0
}
