package models

import (
	"gorm.io/gorm"
)

// User represents a registered account
// PasswordHash 只存bcrypt哈希，绝不回传给客户端
type User struct {
	gorm.Model
	PublicID     string     `gorm:"uniqueIndex;size:36;not null" json:"user_id"`
	Username     string     `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email        string     `gorm:"uniqueIndex;size:128;not null" json:"-"`
	Mobile       string     `gorm:"uniqueIndex;size:16;not null" json:"-"`
	PasswordHash string     `gorm:"not null" json:"-"`
	VotedPolls   []UserVote `gorm:"foreignKey:UserID" json:"voted_polls,omitempty"`
}

// UserVote records that a user has cast a vote on a poll.
// (user_id, poll_id)上的复合唯一索引是防止并发重复投票的最后一道防线
type UserVote struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex:idx_user_poll" json:"user_id"`
	PollID uint `gorm:"not null;uniqueIndex:idx_user_poll" json:"poll_id"`
}
