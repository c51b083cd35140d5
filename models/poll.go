package models

import (
	"gorm.io/gorm"
)

// Poll represents a voting poll created by a registered user
type Poll struct {
	gorm.Model               // Includes fields like ID, CreatedAt, UpdatedAt, DeletedAt
	Question    string       `gorm:"not null" json:"question"`
	Options     []PollOption `gorm:"foreignKey:PollID" json:"options"`
	CreatedByID uint         `gorm:"index" json:"created_by_id"`
	CreatedBy   *User        `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}

// PollOption represents an option within a poll
// 票数只能由投票协调器修改，每次被接受的投票恰好加1
type PollOption struct {
	gorm.Model
	PollID uint   `gorm:"not null;index" json:"poll_id"`
	Text   string `gorm:"not null" json:"option"`
	Votes  int64  `gorm:"default:0" json:"count"`
}
