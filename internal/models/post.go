package models

import (
	"time"
)

type Post struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Text     string    `gorm:"type:text;not null" json:"text"`
	PubDate  time.Time `gorm:"not null;index" json:"pub_date"` // 创建时写入，之后不再变更
	AuthorID uint      `gorm:"not null;index" json:"author_id"`
	Author   User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	GroupID  *uint     `gorm:"index" json:"group_id"` // 可选，群组删除后置空
	Group    *Group    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"group"`
	Image    string    `json:"image"` // 媒体目录下的相对路径，如 posts/xxx.jpg

	// 非数据库字段，用于查询时填充
	CommentCount int `gorm:"-" json:"comment_count"`
}
