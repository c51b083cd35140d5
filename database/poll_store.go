package database

import (
	"context"
	"errors"
	"fmt"

	"realtime-pollchat-backend/apperr"
	"realtime-pollchat-backend/models"

	"gorm.io/gorm"
)

// CreatePoll 在单个事务内创建投票及其零票选项
func CreatePoll(ctx context.Context, poll *models.Poll) error {
	tx := DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return apperr.Transient(fmt.Errorf("开始事务失败: %w", tx.Error))
	}

	if err := tx.Create(poll).Error; err != nil {
		tx.Rollback()
		return apperr.Transient(fmt.Errorf("创建投票失败: %w", err))
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return apperr.Transient(fmt.Errorf("提交事务失败: %w", err))
	}
	return nil
}

// ListPolls 返回全部投票（含选项和创建者），按创建时间倒序
func ListPolls(ctx context.Context) ([]models.Poll, error) {
	var polls []models.Poll
	err := DB.WithContext(ctx).
		Preload("Options").
		Preload("CreatedBy").
		Order("created_at desc").
		Find(&polls).Error
	if err != nil {
		return nil, apperr.Transient(fmt.Errorf("获取投票列表失败: %w", err))
	}
	return polls, nil
}

// GetPollByID 获取单个投票（含选项和创建者）
func GetPollByID(ctx context.Context, id uint) (*models.Poll, error) {
	var poll models.Poll
	err := DB.WithContext(ctx).
		Preload("Options").
		Preload("CreatedBy").
		First(&poll, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Transient(fmt.Errorf("获取投票失败: %w", err))
	}
	return &poll, nil
}

// IncrementOptionVote 对(poll, option)执行条件原子递增。
// 必须是单条UPDATE而不是读-改-写，否则并发投票会丢失更新。
// 没有匹配行时不改变任何状态，返回ErrNotFound。
func IncrementOptionVote(ctx context.Context, pollID uint, optionText string) (*models.PollOption, error) {
	res := DB.WithContext(ctx).Model(&models.PollOption{}).
		Where("poll_id = ? AND text = ?", pollID, optionText).
		UpdateColumn("votes", gorm.Expr("votes + ?", 1))
	if res.Error != nil {
		return nil, apperr.Transient(fmt.Errorf("更新投票计数失败: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrNotFound
	}

	// 递增已提交，读回选项用于缓存同步和广播
	var option models.PollOption
	err := DB.WithContext(ctx).
		Where("poll_id = ? AND text = ?", pollID, optionText).
		First(&option).Error
	if err != nil {
		return nil, apperr.Transient(fmt.Errorf("读取更新后选项失败: %w", err))
	}
	return &option, nil
}
