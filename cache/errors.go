package cache

import "errors"

var (
	// ErrRedisNotAvailable Redis不可达或处于模拟模式，票数缓存和分布式锁降级
	ErrRedisNotAvailable = errors.New("redis不可用，缓存与分布式锁已降级")

	// ErrLockNotAcquired 投票互斥锁竞争失败，重试次数耗尽
	ErrLockNotAcquired = errors.New("获取投票互斥锁失败")
)
