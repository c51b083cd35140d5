package handlers

import (
	"realtime-pollchat-backend/cache"
	"realtime-pollchat-backend/models"
)

// OptionPayload 选项的线上表示
type OptionPayload struct {
	ID     uint   `json:"id"`
	Option string `json:"option"`
	Count  int64  `json:"count"`
}

// PollPayload 投票的线上表示
type PollPayload struct {
	ID        uint            `json:"id"`
	Question  string          `json:"question"`
	Options   []OptionPayload `json:"options"`
	CreatedBy string          `json:"createdBy,omitempty"`
}

// MessagePayload 聊天消息的线上表示，带作者标识和显示名
type MessagePayload struct {
	ID     uint   `json:"id"`
	UserID uint   `json:"userId"`
	User   string `json:"user"`
	Text   string `json:"text"`
}

// pollToPayload 将投票模型转换为线上表示。
// 票数优先从缓存读取，缓存未命中或不可用时回落到数据库值
func pollToPayload(poll *models.Poll) PollPayload {
	cached, err := cache.GetVoteCounts(poll.ID)
	if err != nil {
		cached = nil
	}

	options := make([]OptionPayload, len(poll.Options))
	for i, opt := range poll.Options {
		count := opt.Votes
		if c, ok := cached[opt.ID]; ok {
			count = c
		}
		options[i] = OptionPayload{
			ID:     opt.ID,
			Option: opt.Text,
			Count:  count,
		}
	}

	payload := PollPayload{
		ID:       poll.ID,
		Question: poll.Question,
		Options:  options,
	}
	if poll.CreatedBy != nil {
		payload.CreatedBy = poll.CreatedBy.Username
	}
	return payload
}

// pollsToPayload 转换投票列表
func pollsToPayload(polls []models.Poll) []PollPayload {
	payloads := make([]PollPayload, len(polls))
	for i := range polls {
		payloads[i] = pollToPayload(&polls[i])
	}
	return payloads
}

// messageToPayload 将消息模型转换为线上表示
func messageToPayload(msg *models.Message) MessagePayload {
	payload := MessagePayload{
		ID:     msg.ID,
		UserID: msg.UserID,
		Text:   msg.Text,
	}
	if msg.User != nil {
		payload.User = msg.User.Username
	}
	return payload
}
