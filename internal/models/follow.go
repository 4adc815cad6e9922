package models

import (
	"time"
)

// Follow 关注关系：user 关注 author
type Follow struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	UserID   uint `gorm:"not null;index:idx_follow_user;uniqueIndex:idx_follow_pair" json:"user_id"`
	User     User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	AuthorID uint `gorm:"not null;index:idx_follow_author;uniqueIndex:idx_follow_pair" json:"author_id"`
	Author   User `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	// 复合唯一键 idx_follow_pair = (user_id, author_id)，避免重复关注
	CreatedAt time.Time `json:"created_at"`
}
