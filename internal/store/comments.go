package store

import (
	"context"

	"astromissions/internal/model"

	"gorm.io/gorm"
)

// Comments 是评论的读写入口。
type Comments struct {
	db *gorm.DB
}

func NewComments(db *gorm.DB) *Comments {
	return &Comments{db: db}
}

func (s *Comments) Create(ctx context.Context, c *model.Comment) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return translate(err)
	}
	if c.Likes == nil {
		c.Likes = []uint{}
	}
	if c.Replies == nil {
		c.Replies = []model.Comment{}
	}
	return nil
}

func (s *Comments) ByID(ctx context.Context, id uint) (*model.Comment, error) {
	var c model.Comment
	if err := s.db.WithContext(ctx).Preload("Author").First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	list := []model.Comment{c}
	if err := s.attachLikes(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListForUpdate 返回顶层评论（最新在前），每条带作者信息与回复列表。
func (s *Comments) ListForUpdate(ctx context.Context, updateID uint) ([]model.Comment, error) {
	out := []model.Comment{}
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Replies.Author").
		Where("mission_update_id = ? AND parent_comment_id IS NULL", updateID).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if err := s.attachLikes(ctx, out); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.attachLikes(ctx, out[i].Replies); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Delete 删除评论及其所有下级回复和点赞。
func (s *Comments) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Comment{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		ids := []uint{id}
		frontier := []uint{id}
		for len(frontier) > 0 {
			var children []uint
			if err := tx.Model(&model.Comment{}).Where("parent_comment_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
				return err
			}
			ids = append(ids, children...)
			frontier = children
		}
		return deleteCommentsWhere(tx, "id IN ?", ids)
	})
}

// deleteCommentsWhere removes matching comments together with their likes.
func deleteCommentsWhere(tx *gorm.DB, where string, args ...any) error {
	var ids []uint
	if err := tx.Model(&model.Comment{}).Where(where, args...).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("comment_id IN ?", ids).Delete(&model.CommentLike{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&model.Comment{}).Error
}

func (s *Comments) attachLikes(ctx context.Context, list []model.Comment) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uint, len(list))
	for i := range list {
		ids[i] = list[i].ID
		if list[i].Replies == nil {
			list[i].Replies = []model.Comment{}
		}
	}
	var rows []model.CommentLike
	if err := s.db.WithContext(ctx).Where("comment_id IN ?", ids).Order("created_at").Find(&rows).Error; err != nil {
		return err
	}
	likes := make(map[uint][]uint, len(list))
	for _, r := range rows {
		likes[r.CommentID] = append(likes[r.CommentID], r.UserID)
	}
	for i := range list {
		list[i].Likes = likes[list[i].ID]
		if list[i].Likes == nil {
			list[i].Likes = []uint{}
		}
	}
	return nil
}
