package cache

import (
	"fmt"
	"log"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
)

var (
	// rs 全局的Redsync实例
	rs *redsync.Redsync
)

// DistributedLockService 分布式锁服务。
// 多实例共享同一Redis时，为同一(user, poll)的并发投票提供跨进程互斥。
type DistributedLockService struct {
	rs *redsync.Redsync
}

// InitDistLock 初始化分布式锁
func InitDistLock() {
	client, err := GetClient()
	if err != nil {
		log.Printf("初始化分布式锁失败: %v", err)
		return
	}

	pool := goredis.NewPool(client)
	rs = redsync.New(pool)
	log.Println("分布式锁初始化成功")
}

// GetLockService 获取分布式锁服务实例，Redis不可用时返回nil
func GetLockService() *DistributedLockService {
	if rs == nil {
		return nil
	}
	return &DistributedLockService{rs: rs}
}

// VoteLockName 构造(user, poll)投票互斥锁的键名
func VoteLockName(userID, pollID uint) string {
	return fmt.Sprintf("vote:lock:%d:%d", userID, pollID)
}

// UserVoteLockName 构造用户粒度投票互斥锁的键名，单投票模式使用
func UserVoteLockName(userID uint) string {
	return fmt.Sprintf("vote:lock:user:%d", userID)
}

// AcquireLock 尝试获取锁，带有超时时间
func (s *DistributedLockService) AcquireLock(lockName string, expiry time.Duration) (*redsync.Mutex, error) {
	mutex := s.rs.NewMutex(lockName,
		redsync.WithExpiry(expiry),
		redsync.WithTries(5),                        // 最大重试次数
		redsync.WithRetryDelay(50*time.Millisecond), // 重试延迟
		redsync.WithDriftFactor(0.01),               // 时钟漂移因子
	)

	if err := mutex.Lock(); err != nil {
		return nil, ErrLockNotAcquired
	}
	return mutex, nil
}

// ReleaseLock 释放锁
func (s *DistributedLockService) ReleaseLock(mutex *redsync.Mutex) {
	if _, err := mutex.Unlock(); err != nil {
		log.Printf("释放分布式锁失败: %v", err)
	}
}
