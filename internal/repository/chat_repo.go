package repository

import (
	"context"

	"gorm.io/gorm"

	"yukyubor/backend/internal/model"
)

// ChatRepository 聊天数据访问接口
type ChatRepository interface {
	Create(ctx context.Context, chat *model.Chat) error
	GetByID(ctx context.Context, id uint) (*model.Chat, error)
	// FindByPair 按无序用户对查找聊天
	FindByPair(ctx context.Context, userA, userB uint) (*model.Chat, error)
	Update(ctx context.Context, chat *model.Chat) error
	UpdateStatus(ctx context.Context, ids []uint, status string) error
}

type chatRepo struct {
	db *gorm.DB
}

// NewChatRepo 创建 ChatRepository 实例
func NewChatRepo(db *gorm.DB) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) Create(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

func (r *chatRepo) GetByID(ctx context.Context, id uint) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepo) FindByPair(ctx context.Context, userA, userB uint) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA).
		First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepo) Update(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Save(chat).Error
}

func (r *chatRepo) UpdateStatus(ctx context.Context, ids []uint, status string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Chat{}).
		Where("id IN ?", ids).
		Update("status", status).Error
}
