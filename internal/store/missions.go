package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"astromissions/internal/model"
	"astromissions/internal/pkg/query"
	"astromissions/internal/pkg/slug"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Missions 是任务表的读写入口。
type Missions struct {
	db *gorm.DB
}

func NewMissions(db *gorm.DB) *Missions {
	return &Missions{db: db}
}

// Find 返回当前页的任务与满足过滤条件的总数。
//
// 总数使用相同的过滤条件，但不带 offset/limit。
func (s *Missions) Find(ctx context.Context, q query.Query) ([]model.Mission, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Mission{}).Scopes(q.Where).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count missions: %w", err)
	}
	missions := make([]model.Mission, 0, q.Limit)
	if err := s.db.WithContext(ctx).Scopes(q.Where, q.Order, q.Window).Find(&missions).Error; err != nil {
		return nil, 0, fmt.Errorf("find missions: %w", err)
	}
	return missions, total, nil
}

func (s *Missions) ByID(ctx context.Context, id uint) (*model.Mission, error) {
	var m model.Mission
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *Missions) BySlug(ctx context.Context, sl string) (*model.Mission, error) {
	var m model.Mission
	if err := s.db.WithContext(ctx).Where("slug = ?", sl).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// ByRef 先按 slug 查找，找不到且 ref 是数字时再按主键查找。
func (s *Missions) ByRef(ctx context.Context, ref string) (*model.Mission, error) {
	m, err := s.BySlug(ctx, ref)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return m, err
	}
	id, perr := strconv.ParseUint(ref, 10, 64)
	if perr != nil || id == 0 {
		return nil, ErrNotFound
	}
	return s.ByID(ctx, uint(id))
}

// Create 生成 slug（以及缺省的 missionId）后插入任务。
func (s *Missions) Create(ctx context.Context, m *model.Mission) error {
	if m.MissionID == "" {
		m.MissionID = uuid.NewString()
	}
	sl, err := slug.Unique(ctx, m.MissionName, s.slugTaken(0))
	if err != nil {
		return err
	}
	m.Slug = sl
	return translate(s.db.WithContext(ctx).Create(m).Error)
}

// Update 保存任务；名称变化时重新生成 slug。
func (s *Missions) Update(ctx context.Context, m *model.Mission, previousName string) error {
	if m.MissionName != previousName || m.Slug == "" {
		sl, err := slug.Unique(ctx, m.MissionName, s.slugTaken(m.ID))
		if err != nil {
			return err
		}
		m.Slug = sl
	}
	return translate(s.db.WithContext(ctx).Save(m).Error)
}

// Delete 删除任务及其追踪关系、动态、评论与点赞。
func (s *Missions) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Mission{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("mission_id = ?", id).Delete(&model.MissionTracker{}).Error; err != nil {
			return err
		}
		updateIDs := tx.Model(&model.MissionUpdate{}).Select("id").Where("mission_id = ?", id)
		if err := deleteCommentsWhere(tx, "mission_update_id IN (?)", updateIDs); err != nil {
			return err
		}
		if err := tx.Where("mission_update_id IN (?)", updateIDs).Delete(&model.UpdateLike{}).Error; err != nil {
			return err
		}
		return tx.Where("mission_id = ?", id).Delete(&model.MissionUpdate{}).Error
	})
}

func (s *Missions) slugTaken(exceptID uint) slug.TakenFunc {
	return func(ctx context.Context, candidate string) (bool, error) {
		var n int64
		q := s.db.WithContext(ctx).Model(&model.Mission{}).Where("slug = ?", candidate)
		if exceptID != 0 {
			q = q.Where("id <> ?", exceptID)
		}
		if err := q.Count(&n).Error; err != nil {
			return false, err
		}
		return n > 0, nil
	}
}
