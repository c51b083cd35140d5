package mq

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// VoteHandler 投票事件处理函数：同步票数缓存并广播updatePoll
type VoteHandler func(pollID, optionID uint) error

// VoteMessage 投票事件消息
type VoteMessage struct {
	PollID    uint   `json:"poll_id"`
	OptionID  uint   `json:"option_id"`
	Timestamp int64  `json:"timestamp"`
	MessageID string `json:"message_id"`
}

// VoteQueue 投票事件队列适配器。
// Redis可用时走RedisVoteQueue，否则退化为进程内通道，语义不变：
// 单消费者按入队顺序处理，广播顺序与投票提交顺序一致。
type VoteQueue struct {
	redisEnabled bool
	redisQueue   *RedisVoteQueue

	// 内存模式
	memChan chan VoteMessage
	handler VoteHandler
	stopMem chan struct{}
	memWG   sync.WaitGroup

	initOnce    sync.Once
	initialized bool
}

// NewVoteQueue 创建投票事件队列适配器
func NewVoteQueue() *VoteQueue {
	return &VoteQueue{}
}

// Initialize 初始化队列。redisClient为nil时使用内存模式。
func (q *VoteQueue) Initialize(redisClient *redis.Client) error {
	q.initOnce.Do(func() {
		if redisClient != nil {
			q.redisQueue = NewRedisVoteQueue(redisClient)
			q.redisEnabled = true
			log.Println("投票事件队列使用Redis模式")
		} else {
			q.memChan = make(chan VoteMessage, 256)
			q.stopMem = make(chan struct{})
			log.Println("Redis不可用，投票事件队列使用内存模式")
		}
		q.initialized = true
	})
	return nil
}

// RegisterHandler 注册处理函数并启动消费者
func (q *VoteQueue) RegisterHandler(handler VoteHandler) error {
	if !q.initialized {
		return fmt.Errorf("投票事件队列未初始化")
	}

	q.handler = handler

	if q.redisEnabled {
		q.redisQueue.RegisterHandler(handler)
		return q.redisQueue.Start()
	}

	// 内存模式消费循环
	q.memWG.Add(1)
	go func() {
		defer q.memWG.Done()
		for {
			select {
			case <-q.stopMem:
				return
			case msg := <-q.memChan:
				if err := q.handler(msg.PollID, msg.OptionID); err != nil {
					log.Printf("处理投票事件失败 [消息ID: %s]: %v", msg.MessageID, err)
				}
			}
		}
	}()
	return nil
}

// PublishVote 发布投票事件
func (q *VoteQueue) PublishVote(pollID, optionID uint) error {
	if !q.initialized {
		return fmt.Errorf("投票事件队列未初始化")
	}

	msg := VoteMessage{
		PollID:    pollID,
		OptionID:  optionID,
		Timestamp: time.Now().Unix(),
		MessageID: uuid.NewString(),
	}

	if q.redisEnabled {
		return q.redisQueue.Publish(msg)
	}

	select {
	case q.memChan <- msg:
		return nil
	default:
		return fmt.Errorf("内存队列已满")
	}
}

// Close 关闭队列
func (q *VoteQueue) Close() {
	if !q.initialized {
		return
	}
	if q.redisEnabled {
		q.redisQueue.Stop()
	} else {
		close(q.stopMem)
		q.memWG.Wait()
	}
	log.Println("投票事件队列已关闭")
}

// GetQueueStats 获取队列统计信息
func (q *VoteQueue) GetQueueStats() map[string]interface{} {
	stats := make(map[string]interface{})
	if !q.initialized {
		stats["status"] = "未初始化"
		return stats
	}

	if q.redisEnabled {
		stats["type"] = "Redis"
		stats["queues"] = q.redisQueue.QueueStats()
	} else {
		stats["type"] = "内存"
		stats["pending"] = len(q.memChan)
	}
	stats["status"] = "正常运行"
	return stats
}
