package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// 全局Redis客户端
var (
	redisClient *redis.Client
	redisCtx    = context.Background()
	initOnce    sync.Once
	initialized bool

	// 票数键的过期时间
	voteKeyExpiration = 24 * time.Hour
)

// InitRedis 初始化Redis连接
func InitRedis() error {
	var initErr error

	initOnce.Do(func() {
		// 检查是否强制使用模拟模式
		if os.Getenv("REDIS_MOCK") == "true" {
			log.Println("强制使用Redis模拟模式")
			mockMode = true
			initialized = true
			return
		}

		// 从环境变量获取Redis连接信息
		redisAddr := os.Getenv("REDIS_ADDR")
		redisPassword := os.Getenv("REDIS_PASSWORD")
		redisDb := 0

		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				redisDb = db
			}
		}

		if redisAddr == "" {
			redisAddr = "localhost:6379"
		}

		log.Printf("初始化Redis连接, 地址: %s", redisAddr)

		options := &redis.Options{
			Addr:        redisAddr,
			Password:    redisPassword,
			DB:          redisDb,
			DialTimeout: 3 * time.Second,
			ReadTimeout: 3 * time.Second,
			PoolSize:    10,
		}

		client := redis.NewClient(options)

		// 测试连接
		if _, err := client.Ping(redisCtx).Result(); err != nil {
			log.Printf("Redis连接失败: %v，将使用模拟模式", err)
			mockMode = true
			initialized = true
			return
		}

		redisClient = client
		initialized = true
		mockMode = false
		log.Println("Redis连接初始化成功")
	})

	return initErr
}

// GetClient 获取Redis客户端实例
func GetClient() (*redis.Client, error) {
	if !initialized {
		return nil, fmt.Errorf("Redis客户端未初始化")
	}
	if mockMode {
		return nil, ErrRedisNotAvailable
	}
	return redisClient, nil
}

// voteKey 票数缓存键格式 poll:{pollID}:votes:{optionID}
func voteKey(pollID, optionID uint) string {
	return fmt.Sprintf("poll:%d:votes:%d", pollID, optionID)
}

// SetVoteCount 将某个选项的票数写入缓存（以数据库为准的回填）
func SetVoteCount(pollID, optionID uint, count int64) error {
	if !initialized {
		return fmt.Errorf("Redis客户端未初始化")
	}

	key := voteKey(pollID, optionID)

	if mockMode {
		mockMutex.Lock()
		defer mockMutex.Unlock()
		mockData[key] = count
		return nil
	}

	ctx := context.Background()
	if err := redisClient.Set(ctx, key, count, voteKeyExpiration).Err(); err != nil {
		return fmt.Errorf("写入票数缓存失败: %v", err)
	}
	return nil
}

// GetVoteCounts 获取投票所有选项的缓存计数
func GetVoteCounts(pollID uint) (map[uint]int64, error) {
	if !initialized {
		return nil, fmt.Errorf("Redis客户端未初始化")
	}

	pattern := fmt.Sprintf("poll:%d:votes:*", pollID)

	if mockMode {
		mockMutex.Lock()
		defer mockMutex.Unlock()

		prefix := fmt.Sprintf("poll:%d:votes:", pollID)
		results := make(map[uint]int64)
		for key, count := range mockData {
			if strings.HasPrefix(key, prefix) {
				if id, err := strconv.ParseUint(strings.TrimPrefix(key, prefix), 10, 32); err == nil {
					results[uint(id)] = count
				}
			}
		}
		return results, nil
	}

	ctx := context.Background()
	keys, err := redisClient.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return map[uint]int64{}, nil
	}

	// 使用管道批量获取所有键的值
	pipe := redisClient.Pipeline()
	cmds := make(map[string]*redis.StringCmd)
	for _, key := range keys {
		cmds[key] = pipe.Get(ctx, key)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	results := make(map[uint]int64)
	for key, cmd := range cmds {
		parts := strings.Split(key, ":")
		if len(parts) < 4 {
			continue
		}
		optionID, err := strconv.ParseUint(parts[3], 10, 32)
		if err != nil {
			continue
		}

		if stringVal, err := cmd.Result(); err == nil {
			if count, err := strconv.ParseInt(stringVal, 10, 64); err == nil {
				results[uint(optionID)] = count
			}
		}
	}

	return results, nil
}

// CloseRedis 关闭Redis连接
func CloseRedis() {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("关闭Redis连接失败: %v", err)
		}
		redisClient = nil
	}
	log.Println("Redis连接已关闭")
}
