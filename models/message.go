package models

import (
	"gorm.io/gorm"
)

// Message represents a chat message
// 只有作者本人可以编辑或删除，CreatedAt给出消息的创建顺序
type Message struct {
	gorm.Model
	UserID uint   `gorm:"not null;index" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`
	Text   string `gorm:"type:text;not null" json:"text"`
}
