package database

import (
	"context"
	"errors"
	"fmt"

	"realtime-pollchat-backend/apperr"
	"realtime-pollchat-backend/models"

	"gorm.io/gorm"
)

// CreateMessage 保存聊天消息并回填作者信息
func CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := DB.WithContext(ctx).Create(msg).Error; err != nil {
		return apperr.Transient(fmt.Errorf("保存消息失败: %w", err))
	}
	if err := DB.WithContext(ctx).Preload("User").First(msg, msg.ID).Error; err != nil {
		return apperr.Transient(fmt.Errorf("读取已保存消息失败: %w", err))
	}
	return nil
}

// ListMessages 返回全部聊天历史（含作者），按创建顺序
func ListMessages(ctx context.Context) ([]models.Message, error) {
	var messages []models.Message
	err := DB.WithContext(ctx).
		Preload("User").
		Order("id asc").
		Find(&messages).Error
	if err != nil {
		return nil, apperr.Transient(fmt.Errorf("获取聊天历史失败: %w", err))
	}
	return messages, nil
}

// GetMessageByID 获取单条消息（含作者）
func GetMessageByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	err := DB.WithContext(ctx).Preload("User").First(&msg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Transient(fmt.Errorf("获取消息失败: %w", err))
	}
	return &msg, nil
}

// UpdateMessageText 修改消息文本，所有权检查由聊天管理器在调用前完成
func UpdateMessageText(ctx context.Context, id uint, text string) error {
	res := DB.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		UpdateColumn("text", text)
	if res.Error != nil {
		return apperr.Transient(fmt.Errorf("更新消息失败: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteMessage 删除消息
func DeleteMessage(ctx context.Context, id uint) error {
	res := DB.WithContext(ctx).Delete(&models.Message{}, id)
	if res.Error != nil {
		return apperr.Transient(fmt.Errorf("删除消息失败: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
