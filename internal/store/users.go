package store

import (
	"context"

	"astromissions/internal/model"

	"gorm.io/gorm"
)

// Users 是用户表的读写入口。
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (s *Users) Create(ctx context.Context, u *model.User) error {
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

// Save writes every column of u, including the embedded one-time code.
func (s *Users) Save(ctx context.Context, u *model.User) error {
	return translate(s.db.WithContext(ctx).Save(u).Error)
}

func (s *Users) ByID(ctx context.Context, id uint) (*model.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Users) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.first(ctx, "email = ?", model.NormalizeEmail(email))
}

func (s *Users) ByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.first(ctx, "username = ?", username)
}

func (s *Users) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Users) first(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where(where, arg).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}
