package store

import (
	"context"
	"fmt"

	"astromissions/internal/model"
	"astromissions/internal/pkg/relation"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Relations 基于关联表实现 relation.Store。
//
// 每个关系只有一行记录，例如 user_follows(follower_id, followee_id)
// 同时是关注者的 following 与被关注者的 followers。
type Relations struct {
	db *gorm.DB
}

func NewRelations(db *gorm.DB) *Relations {
	return &Relations{db: db}
}

type joinTable struct {
	model   any
	subject string
	object  string
}

var joinTables = map[relation.Kind]joinTable{
	relation.Follow:      {&model.Follow{}, "follower_id", "followee_id"},
	relation.Track:       {&model.MissionTracker{}, "user_id", "mission_id"},
	relation.LikeUpdate:  {&model.UpdateLike{}, "user_id", "mission_update_id"},
	relation.LikeComment: {&model.CommentLike{}, "user_id", "comment_id"},
}

func tableFor(kind relation.Kind) (joinTable, error) {
	t, ok := joinTables[kind]
	if !ok {
		return joinTable{}, fmt.Errorf("%w: %q", relation.ErrUnknownKind, kind)
	}
	return t, nil
}

func row(kind relation.Kind, subject, object uint) any {
	switch kind {
	case relation.Follow:
		return &model.Follow{FollowerID: subject, FolloweeID: object}
	case relation.Track:
		return &model.MissionTracker{UserID: subject, MissionID: object}
	case relation.LikeUpdate:
		return &model.UpdateLike{UserID: subject, MissionUpdateID: object}
	default:
		return &model.CommentLike{UserID: subject, CommentID: object}
	}
}

func (s *Relations) Related(ctx context.Context, kind relation.Kind, subject, object uint) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	var n int64
	err = s.db.WithContext(ctx).Model(t.model).
		Where(t.subject+" = ? AND "+t.object+" = ?", subject, object).
		Count(&n).Error
	return n > 0, err
}

func (s *Relations) Link(ctx context.Context, kind relation.Kind, subject, object uint) error {
	if _, err := tableFor(kind); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row(kind, subject, object)).Error
}

func (s *Relations) Unlink(ctx context.Context, kind relation.Kind, subject, object uint) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where(t.subject+" = ? AND "+t.object+" = ?", subject, object).
		Delete(t.model).Error
}

// Toggle 在一个事务内完成检查与写入。
func (s *Relations) Toggle(ctx context.Context, kind relation.Kind, subject, object uint) (bool, error) {
	var related bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		related, err = relation.Toggle(ctx, &Relations{db: tx}, kind, subject, object)
		return err
	})
	return related, err
}

// Subjects 返回与 object 存在 kind 关系的用户 ID（例如点赞列表）。
func (s *Relations) Subjects(ctx context.Context, kind relation.Kind, object uint) ([]uint, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	ids := []uint{}
	err = s.db.WithContext(ctx).Model(t.model).
		Where(t.object+" = ?", object).
		Order("created_at").
		Pluck(t.subject, &ids).Error
	return ids, err
}

// Followers 返回关注 userID 的用户。
func (s *Relations) Followers(ctx context.Context, userID uint) ([]model.UserRef, error) {
	out := []model.UserRef{}
	err := s.db.WithContext(ctx).
		Joins("JOIN user_follows ON user_follows.follower_id = users.id").
		Where("user_follows.followee_id = ?", userID).
		Order("user_follows.created_at").
		Find(&out).Error
	return out, err
}

// Following 返回 userID 关注的用户。
func (s *Relations) Following(ctx context.Context, userID uint) ([]model.UserRef, error) {
	out := []model.UserRef{}
	err := s.db.WithContext(ctx).
		Joins("JOIN user_follows ON user_follows.followee_id = users.id").
		Where("user_follows.follower_id = ?", userID).
		Order("user_follows.created_at").
		Find(&out).Error
	return out, err
}

// TrackedMissions 返回用户追踪的任务。
func (s *Relations) TrackedMissions(ctx context.Context, userID uint) ([]model.Mission, error) {
	out := []model.Mission{}
	err := s.db.WithContext(ctx).
		Joins("JOIN mission_trackers ON mission_trackers.mission_id = missions.id").
		Where("mission_trackers.user_id = ?", userID).
		Order("mission_trackers.created_at").
		Find(&out).Error
	return out, err
}

// Trackers 返回追踪某任务的用户。
func (s *Relations) Trackers(ctx context.Context, missionID uint) ([]model.UserRef, error) {
	out := []model.UserRef{}
	err := s.db.WithContext(ctx).
		Joins("JOIN mission_trackers ON mission_trackers.user_id = users.id").
		Where("mission_trackers.mission_id = ?", missionID).
		Order("mission_trackers.created_at").
		Find(&out).Error
	return out, err
}
