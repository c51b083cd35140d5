package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"realtime-pollchat-backend/apperr"
	"realtime-pollchat-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// 写超时
	writeWait = 10 * time.Second

	// 收到pong的最长等待时间
	pongWait = 60 * time.Second

	// ping间隔，必须小于pongWait
	pingPeriod = 50 * time.Second

	// 入站消息大小上限
	maxMessageSize = 4096
)

// 定义WebSocket升级器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 允许所有CORS请求，生产环境应限制
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client 表示一个WebSocket客户端连接
type Client struct {
	// 所属Hub
	hub *Hub

	// WebSocket连接
	conn *websocket.Conn

	// 发送消息的通道，writePump独占消费，保证单连接内的事件顺序
	send chan []byte

	// 连接标识，会话注册表以它为键
	id string
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级WebSocket连接失败: %v", err)
		return
	}

	client := &Client{
		hub:  GetHub(),
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.NewString(),
	}

	client.hub.register <- client

	go client.writePump()

	// 未认证连接也能看到当前投票快照（公开数据）
	sendPollSnapshot(client)

	go client.readPump()
}

// readPump 客户端读取循环，入站事件在这里按到达顺序派发
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket读取错误: %v", err)
			}
			break
		}

		c.dispatch(message)
	}
}

// dispatch 解析事件信封并路由到对应处理函数
func (c *Client) dispatch(raw []byte) {
	var evt inboundEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		sendError(c, "Invalid message format")
		return
	}

	switch evt.Event {
	case "login", "authenticate":
		handleAuthenticate(c, evt.Data)
	case "vote":
		handleVote(c, evt.Data)
	case "chatMessage":
		handleChatMessage(c, evt.Data)
	case "editChatMessage":
		handleEditChatMessage(c, evt.Data)
	case "deleteChatMessage":
		handleDeleteChatMessage(c, evt.Data)
	default:
		log.Printf("未知的客户端事件: %s [连接ID: %s]", evt.Event, c.id)
	}
}

// writePump 客户端写入循环
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭了channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError 向发起连接回送error事件，拒绝绝不广播给其他连接
func sendError(c *Client, message string) {
	c.hub.SendTo(c, "error", gin.H{"message": message})
}

// sessionUser 解析连接绑定的用户，未绑定会话时返回ErrUnauthenticated
func sessionUser(c *Client) (*models.User, error) {
	user, ok := c.hub.Sessions().Lookup(c.id)
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}
	return user, nil
}
