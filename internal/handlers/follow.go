package handlers

import (
	"errors"
	"net/http"
	"yatube/internal/repository"
	"yatube/internal/services"

	"github.com/gin-gonic/gin"
)

type FollowHandler struct {
	users   repository.UserRepository
	follows *services.FollowService
}

func NewFollowHandler(users repository.UserRepository, follows *services.FollowService) *FollowHandler {
	return &FollowHandler{users: users, follows: follows}
}

// Follow 关注作者。无论是否真的建了边（重复关注、关注自己都是 no-op），
// 一律跳回作者主页。
func (h *FollowHandler) Follow(c *gin.Context) {
	username := c.Param("username")

	author, err := h.users.GetByUsername(c.Request.Context(), username)
	if err != nil {
		RenderError(c, http.StatusNotFound, "用户不存在")
		return
	}

	err = h.follows.Follow(c.Request.Context(), currentUserID(c), author.ID)
	if err != nil && !errors.Is(err, services.ErrSelfFollow) {
		RenderError(c, http.StatusInternalServerError, "关注失败，请稍后再试")
		return
	}

	c.Redirect(http.StatusFound, "/"+author.Username)
}

// Unfollow 取消关注。边不存在同样视为成功。
func (h *FollowHandler) Unfollow(c *gin.Context) {
	username := c.Param("username")

	author, err := h.users.GetByUsername(c.Request.Context(), username)
	if err != nil {
		RenderError(c, http.StatusNotFound, "用户不存在")
		return
	}

	if err := h.follows.Unfollow(c.Request.Context(), currentUserID(c), author.ID); err != nil {
		RenderError(c, http.StatusInternalServerError, "操作失败，请稍后再试")
		return
	}

	c.Redirect(http.StatusFound, "/"+author.Username)
}
