package store

import (
	"context"

	"astromissions/internal/model"

	"gorm.io/gorm"
)

// Updates 是任务动态的读写入口。返回的动态都带有点赞用户列表。
type Updates struct {
	db *gorm.DB
}

func NewUpdates(db *gorm.DB) *Updates {
	return &Updates{db: db}
}

func (s *Updates) Create(ctx context.Context, u *model.MissionUpdate) error {
	if u.Status == "" {
		u.Status = model.UpdatePending
	}
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *Updates) ByID(ctx context.Context, id uint) (*model.MissionUpdate, error) {
	var u model.MissionUpdate
	if err := s.db.WithContext(ctx).Preload("Author").First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	list := []model.MissionUpdate{u}
	if err := s.attachLikes(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListByMission 返回某任务下指定状态的动态，最新的在前。
func (s *Updates) ListByMission(ctx context.Context, missionID uint, status string) ([]model.MissionUpdate, error) {
	out := []model.MissionUpdate{}
	q := s.db.WithContext(ctx).Preload("Author").Where("mission_id = ?", missionID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, s.attachLikes(ctx, out)
}

// ListByStatus is the moderation queue; an empty status lists everything.
func (s *Updates) ListByStatus(ctx context.Context, status string) ([]model.MissionUpdate, error) {
	out := []model.MissionUpdate{}
	q := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Mission", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "mission_id", "mission_name", "slug", "mission_status", "destination")
		})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, s.attachLikes(ctx, out)
}

// Edit 只在动态仍为 pending 时修改标题、内容与链接。
func (s *Updates) Edit(ctx context.Context, u *model.MissionUpdate) error {
	res := s.db.WithContext(ctx).Model(&model.MissionUpdate{}).
		Where("id = ? AND status = ?", u.ID, model.UpdatePending).
		Updates(map[string]any{
			"title":          u.Title,
			"content":        u.Content,
			"reference_link": u.ReferenceLink,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.missingOrDecided(ctx, u.ID)
	}
	return nil
}

// SetStatus 审核动态。只允许从 pending 变为 approved/rejected。
func (s *Updates) SetStatus(ctx context.Context, id uint, status string) error {
	res := s.db.WithContext(ctx).Model(&model.MissionUpdate{}).
		Where("id = ? AND status = ?", id, model.UpdatePending).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.missingOrDecided(ctx, id)
	}
	return nil
}

// Delete 删除 pending 动态及其评论与点赞。
func (s *Updates) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, model.UpdatePending).Delete(&model.MissionUpdate{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return (&Updates{db: tx}).missingOrDecided(ctx, id)
		}
		if err := deleteCommentsWhere(tx, "mission_update_id = ?", id); err != nil {
			return err
		}
		return tx.Where("mission_update_id = ?", id).Delete(&model.UpdateLike{}).Error
	})
}

func (s *Updates) missingOrDecided(ctx context.Context, id uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.MissionUpdate{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrNotPending
}

func (s *Updates) attachLikes(ctx context.Context, list []model.MissionUpdate) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uint, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	var rows []model.UpdateLike
	if err := s.db.WithContext(ctx).Where("mission_update_id IN ?", ids).Order("created_at").Find(&rows).Error; err != nil {
		return err
	}
	likes := make(map[uint][]uint, len(list))
	for _, r := range rows {
		likes[r.MissionUpdateID] = append(likes[r.MissionUpdateID], r.UserID)
	}
	for i := range list {
		list[i].Likes = likes[list[i].ID]
		if list[i].Likes == nil {
			list[i].Likes = []uint{}
		}
	}
	return nil
}
