package database

import (
	"context"
	"errors"
	"fmt"
	"log"

	"realtime-pollchat-backend/apperr"
	"realtime-pollchat-backend/models"

	"gorm.io/gorm"
)

// CreateUser 创建新用户记录
func CreateUser(ctx context.Context, user *models.User) error {
	if err := DB.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrConflictingWrite
		}
		return apperr.Transient(fmt.Errorf("创建用户失败: %w", err))
	}
	return nil
}

// GetUserByUsername 按用户名查找用户
func GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Transient(fmt.Errorf("查询用户失败: %w", err))
	}
	return &user, nil
}

// GetUserByID 按主键查找用户
func GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Transient(fmt.Errorf("查询用户失败: %w", err))
	}
	return &user, nil
}

// UsernameExists 检查用户名是否已被占用
func UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := DB.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).Count(&count).Error
	if err != nil {
		return false, apperr.Transient(fmt.Errorf("检查用户名失败: %w", err))
	}
	return count > 0, nil
}

// EmailOrMobileExists 检查邮箱或手机号是否已被注册
func EmailOrMobileExists(ctx context.Context, email, mobile string) (bool, error) {
	var count int64
	err := DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR mobile = ?", email, mobile).Count(&count).Error
	if err != nil {
		return false, apperr.Transient(fmt.Errorf("检查邮箱和手机号失败: %w", err))
	}
	return count > 0, nil
}

// HasUserVoted 检查用户是否已对某个投票投过票
func HasUserVoted(ctx context.Context, userID, pollID uint) (bool, error) {
	var count int64
	err := DB.WithContext(ctx).Model(&models.UserVote{}).
		Where("user_id = ? AND poll_id = ?", userID, pollID).Count(&count).Error
	if err != nil {
		return false, apperr.Transient(fmt.Errorf("查询投票记录失败: %w", err))
	}
	return count > 0, nil
}

// HasUserVotedAny 检查用户是否投过任何票（单投票遗留模式使用）
func HasUserVotedAny(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := DB.WithContext(ctx).Model(&models.UserVote{}).
		Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return false, apperr.Transient(fmt.Errorf("查询投票记录失败: %w", err))
	}
	return count > 0, nil
}

// RecordUserVote 持久化用户的投票记录。
// 唯一索引拒绝同一(user, poll)的第二次插入：此时计数已经递增过，
// 属于必须暴露的致命不一致，记录日志后返回ErrConflictingWrite，不做重试。
func RecordUserVote(ctx context.Context, userID, pollID uint) error {
	vote := models.UserVote{UserID: userID, PollID: pollID}
	if err := DB.WithContext(ctx).Create(&vote).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Printf("致命不一致: 用户%d对投票%d的记录写入撞上唯一索引，计数可能已递增", userID, pollID)
			return apperr.ErrConflictingWrite
		}
		return apperr.Transient(fmt.Errorf("写入投票记录失败: %w", err))
	}
	return nil
}
