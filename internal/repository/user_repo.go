package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yukyubor/backend/internal/model"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	// Upsert 按 telegram_id 插入或更新资料，返回落库后的用户
	Upsert(ctx context.Context, user *model.User) (*model.User, error)
	// DecrementLinksBalance 可用次数减一，已为 0 时不变
	DecrementLinksBalance(ctx context.Context, id uint) error
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "username", "role", "updated_at"}),
		}).
		Create(user).Error
	if err != nil {
		return nil, err
	}
	return r.GetByTelegramID(ctx, user.TelegramID)
}

func (r *userRepo) DecrementLinksBalance(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND links_balance > 0", id).
		Update("links_balance", gorm.Expr("links_balance - 1")).Error
}
