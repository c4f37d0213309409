package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"yukyubor/backend/internal/model"
	"yukyubor/backend/internal/repository"
	pkgerrors "yukyubor/backend/pkg/errors"
)

// ── 聊天模块业务错误 ──

var (
	ErrChatSameUser = pkgerrors.Validation("不能与自己建立聊天")
	ErrChatConflict = pkgerrors.Conflict("聊天正在被并发创建，请重试")
)

// ChatBridge 匹配成功时查找或创建双方的聊天
// tx 为调用方所在事务的 Repository，聊天与匹配结果一同提交或回滚
type ChatBridge interface {
	FindOrCreate(ctx context.Context, tx *repository.Repository, senderID, receiverID uint, links model.ChatLinks) (*model.Chat, error)
}

type chatBridge struct {
	logger *zap.Logger
}

// NewChatBridge 创建 ChatBridge 实例
func NewChatBridge(logger *zap.Logger) ChatBridge {
	return &chatBridge{logger: logger}
}

func (b *chatBridge) FindOrCreate(ctx context.Context, tx *repository.Repository, senderID, receiverID uint, links model.ChatLinks) (*model.Chat, error) {
	if senderID == receiverID {
		return nil, ErrChatSameUser
	}

	chat, err := tx.Chat.FindByPair(ctx, senderID, receiverID)
	switch {
	case err == nil:
		// 同一对用户复用已有聊天，重新激活并指向最新一次匹配
		if chat.Status != model.ChatActive || links.SendRequestID != nil || links.DeliveryRequestID != nil {
			chat.Status = model.ChatActive
			if links.SendRequestID != nil {
				chat.SendRequestID = links.SendRequestID
			}
			if links.DeliveryRequestID != nil {
				chat.DeliveryRequestID = links.DeliveryRequestID
			}
			if err := tx.Chat.Update(ctx, chat); err != nil {
				b.logger.Error("更新聊天失败", zap.Uint("chat_id", chat.ID), zap.Error(err))
				return nil, err
			}
		}
		return chat, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		b.logger.Error("查询聊天失败", zap.Error(err))
		return nil, err
	}

	chat = &model.Chat{
		SenderID:          senderID,
		ReceiverID:        receiverID,
		SendRequestID:     links.SendRequestID,
		DeliveryRequestID: links.DeliveryRequestID,
		Status:            model.ChatActive,
	}
	if err := tx.Chat.Create(ctx, chat); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrChatConflict
		}
		b.logger.Error("创建聊天失败", zap.Error(err))
		return nil, err
	}

	b.logger.Info("已创建聊天",
		zap.Uint("chat_id", chat.ID),
		zap.Uint("sender_id", senderID),
		zap.Uint("receiver_id", receiverID),
	)
	return chat, nil
}
