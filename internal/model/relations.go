package model

import "time"

// 关联表。每种关系只存一行，双向视图都从同一行读取。

// Follow 记录 FollowerID 关注了 FolloweeID。
type Follow struct {
	FollowerID uint `gorm:"primaryKey;autoIncrement:false"`
	FolloweeID uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt  time.Time
}

func (Follow) TableName() string { return "user_follows" }

// MissionTracker 记录用户追踪的任务。
type MissionTracker struct {
	UserID    uint `gorm:"primaryKey;autoIncrement:false"`
	MissionID uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

func (MissionTracker) TableName() string { return "mission_trackers" }

type UpdateLike struct {
	UserID          uint `gorm:"primaryKey;autoIncrement:false"`
	MissionUpdateID uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt       time.Time
}

func (UpdateLike) TableName() string { return "update_likes" }

type CommentLike struct {
	UserID    uint `gorm:"primaryKey;autoIncrement:false"`
	CommentID uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

func (CommentLike) TableName() string { return "comment_likes" }
