package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"realtime-pollchat-backend/apperr"
	"realtime-pollchat-backend/database"
	"realtime-pollchat-backend/models"
)

// editMessagePayload editChatMessage事件的载荷
type editMessagePayload struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// requireAuthor 校验消息归属，非作者返回ErrUnauthorized
func requireAuthor(user *models.User, msg *models.Message) error {
	if msg.UserID != user.ID {
		return apperr.ErrUnauthorized
	}
	return nil
}

// handleChatMessage 保存消息并向全体广播newChatMessage
func handleChatMessage(c *Client, raw json.RawMessage) {
	user, err := sessionUser(c)
	if err != nil {
		sendError(c, "Not authenticated")
		return
	}

	// 载荷就是消息文本本身
	var text string
	if err := json.Unmarshal(raw, &text); err != nil || text == "" {
		sendError(c, "Invalid message")
		return
	}

	msg := models.Message{UserID: user.ID, Text: text}
	if err := database.CreateMessage(context.Background(), &msg); err != nil {
		log.Printf("保存聊天消息失败 [用户: %d]: %v", user.ID, err)
		sendError(c, "Error saving message")
		return
	}

	c.hub.BroadcastAll("newChatMessage", messageToPayload(&msg))
}

// handleEditChatMessage 所有权检查后修改消息并广播更新。
// 非作者的请求只收到定向拒绝，不产生任何广播。
func handleEditChatMessage(c *Client, raw json.RawMessage) {
	user, err := sessionUser(c)
	if err != nil {
		sendError(c, "Not authenticated")
		return
	}

	var payload editMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ID == 0 || payload.Text == "" {
		sendError(c, "Invalid message data")
		return
	}

	msg, err := database.GetMessageByID(context.Background(), payload.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			sendError(c, "Message not found")
		} else {
			log.Printf("查询消息失败 [ID: %d]: %v", payload.ID, err)
			sendError(c, "Not able to edit message")
		}
		return
	}

	if err := requireAuthor(user, msg); err != nil {
		sendError(c, "You are not authorized to edit this message")
		return
	}

	if err := database.UpdateMessageText(context.Background(), payload.ID, payload.Text); err != nil {
		log.Printf("更新消息失败 [ID: %d]: %v", payload.ID, err)
		sendError(c, "Not able to edit message")
		return
	}

	c.hub.BroadcastAll("editChatMessage", editMessagePayload{ID: payload.ID, Text: payload.Text})
}

// handleDeleteChatMessage 所有权检查后删除消息，只广播消息ID
func handleDeleteChatMessage(c *Client, raw json.RawMessage) {
	user, err := sessionUser(c)
	if err != nil {
		sendError(c, "Not authenticated")
		return
	}

	var id uint
	if err := json.Unmarshal(raw, &id); err != nil || id == 0 {
		sendError(c, "Invalid message id")
		return
	}

	msg, err := database.GetMessageByID(context.Background(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			sendError(c, "Message not found")
		} else {
			log.Printf("查询消息失败 [ID: %d]: %v", id, err)
			sendError(c, "Not able to delete message")
		}
		return
	}

	if err := requireAuthor(user, msg); err != nil {
		sendError(c, "You are not authorized to delete this message")
		return
	}

	if err := database.DeleteMessage(context.Background(), id); err != nil {
		log.Printf("删除消息失败 [ID: %d]: %v", id, err)
		sendError(c, "Not able to delete message")
		return
	}

	c.hub.BroadcastAll("deleteChatMessage", id)
}
