package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"realtime-pollchat-backend/apperr"
	"realtime-pollchat-backend/auth"
	"realtime-pollchat-backend/database"
)

// authenticatePayload authenticate事件的载荷
type authenticatePayload struct {
	Token string `json:"token"`
}

// sendPollSnapshot 向单个连接发送当前投票快照（一次性读取，不是订阅）
func sendPollSnapshot(c *Client) {
	polls, err := database.ListPolls(context.Background())
	if err != nil {
		log.Printf("获取投票快照失败 [连接ID: %s]: %v", c.id, err)
		return
	}
	c.hub.SendTo(c, "allPolls", pollsToPayload(polls))
}

// handleAuthenticate 会话绑定器：校验令牌、解析用户、建立连接会话。
// 校验是无状态的，过期由令牌内嵌的时间戳强制。任何失败都不建立会话，
// 连接保持匿名，特权操作全部被拒绝。
func handleAuthenticate(c *Client, raw json.RawMessage) {
	var payload authenticatePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Token == "" {
		c.hub.SendTo(c, "unauthorized", "Invalid token")
		return
	}

	userID, err := auth.ParseToken(payload.Token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			c.hub.SendTo(c, "unauthorized", "Token expired")
		} else {
			c.hub.SendTo(c, "unauthorized", "Invalid token")
		}
		return
	}

	ctx := context.Background()
	user, err := database.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// 令牌签名有效但身份已不存在，区别于签名失败
			sendError(c, "User not found")
		} else {
			log.Printf("认证时查询用户失败 [连接ID: %s]: %v", c.id, err)
			sendError(c, "Error logging in")
		}
		return
	}

	// 绑定会话：认证成功是注册表唯一的写入路径
	c.hub.Sessions().Bind(c.id, user)
	c.hub.SendTo(c, "authenticated", nil)

	log.Printf("连接认证成功 [连接ID: %s, 用户: %s]", c.id, user.Username)

	// 认证成功的副作用：向新连接投递聊天历史快照
	messages, err := database.ListMessages(ctx)
	if err != nil {
		log.Printf("获取聊天历史失败 [连接ID: %s]: %v", c.id, err)
		return
	}

	history := make([]MessagePayload, len(messages))
	for i := range messages {
		history[i] = messageToPayload(&messages[i])
	}
	c.hub.SendTo(c, "chatHistory", history)
}
