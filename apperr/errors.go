package apperr

import (
	"errors"
	"fmt"
)

// 业务错误哨兵，所有组件统一使用这组错误做分类判断。
// 拒绝只回给发起连接，永远不会广播给其他客户端。
var (
	// ErrUnauthenticated 连接未绑定会话
	ErrUnauthenticated = errors.New("unauthenticated: no session bound to this connection")

	// ErrUnauthorized 会话存在但无权执行该操作（所有权不匹配）
	ErrUnauthorized = errors.New("unauthorized: operation not permitted")

	// ErrNotFound 投票、选项或消息不存在
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyVoted 幂等拒绝：重复投票不改变任何状态
	ErrAlreadyVoted = errors.New("already voted on this poll")

	// ErrConflictingWrite 持久层检测到并发写冲突，只记录日志，绝不自动重试
	ErrConflictingWrite = errors.New("conflicting concurrent write detected")

	// ErrTransient 持久层暂时不可用
	ErrTransient = errors.New("persistence layer temporarily unavailable")
)

// Transient 将持久层的意外错误标记为暂时性错误，
// 调用方用errors.Is(err, ErrTransient)分类，原始错误保留在消息里
func Transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
