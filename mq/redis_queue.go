package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisVoteQueue 基于Redis List的投票事件队列。
// 单消费者顺序处理，保证updatePoll广播按投票提交顺序发出。
type RedisVoteQueue struct {
	client         *redis.Client
	ctx            context.Context
	processHandler VoteHandler
	isRunning      bool
	stopChan       chan struct{}
	wg             sync.WaitGroup
	maxRetries     int
}

// 消息队列的队列名称常量
const (
	MainQueueName       = "pollchat:vote_events"      // 主队列
	ProcessingQueueName = "pollchat:vote_processing"  // 处理中队列
	DeadLetterQueueName = "pollchat:vote_dead_letter" // 死信队列
	RetriesHashName     = "pollchat:vote_retries"     // 重试次数记录
)

// NewRedisVoteQueue 创建基于Redis的投票事件队列
func NewRedisVoteQueue(redisClient *redis.Client) *RedisVoteQueue {
	return &RedisVoteQueue{
		client:     redisClient,
		ctx:        context.Background(),
		isRunning:  false,
		stopChan:   make(chan struct{}),
		maxRetries: 3,
	}
}

// RegisterHandler 注册消息处理函数
func (r *RedisVoteQueue) RegisterHandler(handler VoteHandler) {
	r.processHandler = handler
}

// Publish 发送投票事件到主队列
func (r *RedisVoteQueue) Publish(msg VoteMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %v", err)
	}

	if err := r.client.LPush(r.ctx, MainQueueName, jsonData).Err(); err != nil {
		return fmt.Errorf("发送消息到队列失败: %v", err)
	}
	return nil
}

// Start 启动消费者
func (r *RedisVoteQueue) Start() error {
	if r.processHandler == nil {
		return fmt.Errorf("处理函数未注册")
	}

	if r.isRunning {
		return nil // 已经在运行中
	}

	r.isRunning = true
	r.wg.Add(1)
	go r.consumeLoop()

	log.Println("Redis投票事件消费者已启动")
	return nil
}

// Stop 关闭消费者
func (r *RedisVoteQueue) Stop() {
	if !r.isRunning {
		return
	}

	close(r.stopChan)
	r.wg.Wait()
	r.isRunning = false
	log.Println("Redis投票事件消费者已关闭")
}

// consumeLoop 主消费循环。消息在当前goroutine内同步处理，维持事件顺序。
func (r *RedisVoteQueue) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			return
		default:
			// 使用BRPOPLPUSH原子操作从主队列获取并移动到处理中队列
			result, err := r.client.BRPopLPush(r.ctx, MainQueueName, ProcessingQueueName, 1*time.Second).Result()
			if err != nil {
				if err != redis.Nil { // 忽略超时
					log.Printf("从队列获取消息失败: %v", err)
				}
				continue
			}

			r.processMessage(result)
		}
	}
}

// processMessage 处理一条消息，失败达到最大重试次数后进入死信队列
func (r *RedisVoteQueue) processMessage(msgData string) {
	var msg VoteMessage
	if err := json.Unmarshal([]byte(msgData), &msg); err != nil {
		log.Printf("解析消息数据失败: %v", err)
		r.client.LRem(r.ctx, ProcessingQueueName, 1, msgData)
		return
	}

	err := r.processHandler(msg.PollID, msg.OptionID)

	// 无论成败都先移出处理中队列
	r.client.LRem(r.ctx, ProcessingQueueName, 1, msgData)

	if err == nil {
		r.client.HDel(r.ctx, RetriesHashName, msg.MessageID)
		return
	}

	log.Printf("处理投票事件失败 [消息ID: %s]: %v", msg.MessageID, err)

	retries, _ := r.client.HIncrBy(r.ctx, RetriesHashName, msg.MessageID, 1).Result()
	if int(retries) >= r.maxRetries {
		// 超过最大重试次数，转入死信队列
		log.Printf("消息%s超过最大重试次数，转入死信队列", msg.MessageID)
		r.client.LPush(r.ctx, DeadLetterQueueName, msgData)
		r.client.HDel(r.ctx, RetriesHashName, msg.MessageID)
		return
	}

	// 重新入队
	r.client.LPush(r.ctx, MainQueueName, msgData)
}

// RetryDeadLetters 将死信队列中的消息重新放回主队列
func (r *RedisVoteQueue) RetryDeadLetters() error {
	for {
		msgData, err := r.client.RPopLPush(r.ctx, DeadLetterQueueName, MainQueueName).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("重试死信消息失败: %v", err)
		}
		log.Printf("死信消息已重新入队: %s", msgData)
	}
}

// QueueStats 返回各队列长度
func (r *RedisVoteQueue) QueueStats() map[string]int64 {
	stats := make(map[string]int64)
	for _, name := range []string{MainQueueName, ProcessingQueueName, DeadLetterQueueName} {
		if n, err := r.client.LLen(r.ctx, name).Result(); err == nil {
			stats[name] = n
		}
	}
	return stats
}
