package model

import (
	"strings"
	"time"
)

// Comment 是任务动态下的评论，ParentID 为空表示顶层评论。
type Comment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	AuthorID        uint      `gorm:"index;not null" json:"authorId"`
	Author          *UserRef  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	MissionUpdateID uint      `gorm:"index;not null" json:"missionUpdate"`
	ParentID        *uint     `gorm:"column:parent_comment_id;index" json:"parentComment"`
	Replies         []Comment `gorm:"foreignKey:ParentID" json:"replies"`
	Likes           []uint    `gorm:"-" json:"likes"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (c *Comment) Normalize() {
	c.Content = strings.TrimSpace(c.Content)
}

func (c *Comment) Validate() error {
	if c.Content == "" {
		return invalidf("Please add some content to your comment")
	}
	return nil
}
