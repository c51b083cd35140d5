package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"realtime-pollchat-backend/apperr"
	"realtime-pollchat-backend/cache"
	"realtime-pollchat-backend/database"
	"realtime-pollchat-backend/mq"
)

// 投票模式：multi为每个投票各计一次，single为遗留的全局单票模式
const (
	VoteModeMulti  = "multi"
	VoteModeSingle = "single"
)

var (
	// voteQueue 投票事件队列，由main注入；为nil时直接广播
	voteQueue *mq.VoteQueue

	// voteMode 当前投票模式
	voteMode = VoteModeMulti

	// voteLocks 投票互斥表，封住检查-再写入的竞态窗口。
	// 条目带引用计数，最后一个持有者释放时从表里移除
	voteLocksMu sync.Mutex
	voteLocks   = make(map[string]*voteLock)
)

// voteLock 带引用计数的投票互斥条目
type voteLock struct {
	mu   sync.Mutex
	refs int
}

// acquireVoteLock 取出或创建键对应的互斥条目并加锁
func acquireVoteLock(key string) *voteLock {
	voteLocksMu.Lock()
	l, ok := voteLocks[key]
	if !ok {
		l = &voteLock{}
		voteLocks[key] = l
	}
	l.refs++
	voteLocksMu.Unlock()

	l.mu.Lock()
	return l
}

// releaseVoteLock 解锁并在没有其他持有者或等待者时移除条目
func releaseVoteLock(key string, l *voteLock) {
	l.mu.Unlock()

	voteLocksMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(voteLocks, key)
	}
	voteLocksMu.Unlock()
}

// voteLockKey 互斥粒度跟随投票模式：multi按(user, poll)，single按user。
// single模式下任何一票都封死该用户的后续投票，不同投票间的并发
// 同样要串行化，否则两次并发投票会双双通过已投检查
func voteLockKey(userID, pollID uint) string {
	if voteMode == VoteModeSingle {
		return fmt.Sprintf("%d", userID)
	}
	return fmt.Sprintf("%d:%d", userID, pollID)
}

// voteLockName 跨实例锁名，粒度与进程内互斥保持一致
func voteLockName(userID, pollID uint) string {
	if voteMode == VoteModeSingle {
		return cache.UserVoteLockName(userID)
	}
	return cache.VoteLockName(userID, pollID)
}

// InitVoteQueue 设置投票事件队列
func InitVoteQueue(q *mq.VoteQueue) {
	voteQueue = q
	log.Println("投票事件队列已设置到处理程序")
}

// SetVoteMode 配置投票模式，非法值回落到multi
func SetVoteMode(mode string) {
	if mode == VoteModeSingle {
		voteMode = VoteModeSingle
	} else {
		voteMode = VoteModeMulti
	}
	log.Printf("投票模式: %s", voteMode)
}

// votePayload vote事件的载荷
type votePayload struct {
	PollID uint   `json:"pollId"`
	Option string `json:"option"`
}

// lockVote 获取投票互斥，返回的函数在所有退出路径上释放锁。
// 进程内锁始终生效；Redis可用时叠加redsync跨实例互斥。
func lockVote(userID, pollID uint) func() {
	key := voteLockKey(userID, pollID)
	l := acquireVoteLock(key)

	release := func() { releaseVoteLock(key, l) }

	if svc := cache.GetLockService(); svc != nil {
		mutex, err := svc.AcquireLock(voteLockName(userID, pollID), 8*time.Second)
		if err != nil {
			// 跨实例锁拿不到时降级为进程内互斥，唯一索引仍然兜底
			log.Printf("获取分布式投票锁失败 [用户: %d, 投票: %d]: %v", userID, pollID, err)
		} else {
			release = func() {
				svc.ReleaseLock(mutex)
				releaseVoteLock(key, l)
			}
		}
	}

	return release
}

// handleVote 投票协调器：以单个逻辑事务执行
// 会话检查 → 重复投票检查 → 原子递增 → 写投票记录 → 广播。
func handleVote(c *Client, raw json.RawMessage) {
	user, err := sessionUser(c)
	if err != nil {
		sendError(c, "Not authenticated")
		return
	}

	var payload votePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.PollID == 0 || payload.Option == "" {
		sendError(c, "Invalid vote data")
		return
	}

	// 同一(user, poll)的并发投票在这里被串行化
	unlock := lockVote(user.ID, payload.PollID)
	defer unlock()

	ctx := context.Background()

	// 重复投票检查：幂等拒绝，不改变任何状态
	if err := checkNotVoted(ctx, user.ID, payload.PollID); err != nil {
		if errors.Is(err, apperr.ErrAlreadyVoted) {
			sendError(c, "You have already voted on this poll")
		} else {
			log.Printf("查询投票记录失败 [用户: %d, 投票: %d]: %v", user.ID, payload.PollID, err)
			sendError(c, "Error recording vote")
		}
		return
	}

	// 原子条件递增：投票或选项不存在时不改变任何状态
	option, err := database.IncrementOptionVote(ctx, payload.PollID, payload.Option)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			sendError(c, "Invalid vote option")
		} else {
			log.Printf("递增票数失败 [投票: %d, 选项: %s]: %v", payload.PollID, payload.Option, err)
			sendError(c, "Error recording vote")
		}
		return
	}

	// 记录用户已投票。递增已提交后这里失败属于致命不一致：
	// 只记录日志并回报失败，绝不重试（重试会重复计票）。
	if err := database.RecordUserVote(ctx, user.ID, payload.PollID); err != nil {
		log.Printf("写入投票记录失败 [用户: %d, 投票: %d]: %v", user.ID, payload.PollID, err)
		sendError(c, "Error recording vote")
		return
	}

	log.Printf("投票成功 [用户: %s, 投票: %d, 选项: %s]", user.Username, payload.PollID, payload.Option)

	// 定向回执：给投票者刷新完整投票列表
	sendPollSnapshot(c)

	// 经事件队列同步缓存并广播；队列不可用时直接广播，尽力而为
	if voteQueue != nil {
		if err := voteQueue.PublishVote(payload.PollID, option.ID); err == nil {
			return
		} else {
			log.Printf("发布投票事件失败，改为直接广播: %v", err)
		}
	}
	if err := OnVoteRecorded(payload.PollID, option.ID); err != nil {
		log.Printf("广播投票更新失败 [投票: %d]: %v", payload.PollID, err)
	}
}

// checkNotVoted 按当前投票模式检查用户是否已投票，已投返回ErrAlreadyVoted
func checkNotVoted(ctx context.Context, userID, pollID uint) error {
	var voted bool
	var err error
	if voteMode == VoteModeSingle {
		voted, err = database.HasUserVotedAny(ctx, userID)
	} else {
		voted, err = database.HasUserVoted(ctx, userID, pollID)
	}
	if err != nil {
		return err
	}
	if voted {
		return apperr.ErrAlreadyVoted
	}
	return nil
}

// OnVoteRecorded 投票事件的消费端：回填票数缓存并向全体广播updatePoll。
// 注册为事件队列的处理函数，也是队列不可用时的直接调用路径。
func OnVoteRecorded(pollID, optionID uint) error {
	poll, err := database.GetPollByID(context.Background(), pollID)
	if err != nil {
		return fmt.Errorf("读取投票失败: %w", err)
	}

	for _, opt := range poll.Options {
		if opt.ID == optionID {
			if err := cache.SetVoteCount(pollID, optionID, opt.Votes); err != nil {
				// 缓存失败不阻塞广播，数据库是事实来源
				log.Printf("回填票数缓存失败 [投票: %d, 选项: %d]: %v", pollID, optionID, err)
			}
			break
		}
	}

	GetHub().BroadcastAll("updatePoll", pollToPayload(poll))
	return nil
}
