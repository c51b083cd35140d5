package handlers

import (
	"encoding/json"
	"log"
	"sync"

	"realtime-pollchat-backend/models"
)

// Event 是websocket消息信封，事件名是线上契约的一部分
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// inboundEvent 入站消息，Data延迟到具体处理函数再解析
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SessionRegistry 会话注册表：连接ID到已认证用户快照的映射。
// 认证成功时写入，断开连接时移除，除此之外没有任何写入者。
// 注册表存在某连接的条目即意味着该连接此前认证成功。
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*models.User
}

// newSessionRegistry 创建空的会话注册表
func newSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*models.User),
	}
}

// Bind 将连接绑定到已认证用户，只由会话绑定器在认证成功后调用
func (r *SessionRegistry) Bind(connID string, user *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = user
}

// Lookup 查找连接绑定的用户，未绑定时第二个返回值为false
func (r *SessionRegistry) Lookup(connID string) (*models.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.sessions[connID]
	return user, ok
}

// Unbind 移除连接的会话绑定，断开连接时由Hub调用
func (r *SessionRegistry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connID)
}

// Count 当前已认证会话数
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Hub 管理WebSocket连接的中心：注册、注销和向全体客户端的广播。
// 广播按发布顺序派发，每个客户端由独立的writePump顺序写出。
type Hub struct {
	// 所有已连接的客户端
	clients map[*Client]bool

	// 添加新客户端的注册通道
	register chan *Client

	// 删除客户端的注销通道
	unregister chan *Client

	// 向全体客户端广播的消息通道
	broadcast chan []byte

	// 锁，用于保护clients字典
	mu sync.RWMutex

	// 会话注册表，由Hub持有生命周期
	sessions *SessionRegistry
}

// 全局Hub实例，由main通过InitHub显式创建
var hub *Hub

// InitHub 创建并启动Hub，必须在接受连接前调用
func InitHub() *Hub {
	hub = &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		sessions:   newSessionRegistry(),
	}
	go hub.run()
	return hub
}

// GetHub 返回当前Hub实例
func GetHub() *Hub {
	return hub
}

// run 运行Hub处理循环
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()

			log.Printf("新WebSocket客户端已连接 [连接ID: %s, 总连接: %d]", client.id, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()

			// 断开即销毁会话，后续任何特权操作都会被拒绝
			h.sessions.Unbind(client.id)

			log.Printf("WebSocket客户端已断开 [连接ID: %s, 总连接: %d]", client.id, total)

		case message := <-h.broadcast:
			// 先收集发送缓冲已满的客户端，再统一移除
			var slow []*Client

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, client := range slow {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
						h.sessions.Unbind(client.id)
						log.Printf("客户端缓冲区已满，断开连接 [连接ID: %s]", client.id)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// BroadcastAll 向所有已连接客户端广播一个事件。
// 尽力而为：没有投递确认，也不做跨事件名的顺序保证。
func (h *Hub) BroadcastAll(event string, payload interface{}) {
	data, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		log.Printf("序列化广播消息失败 [%s]: %v", event, err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		log.Printf("广播通道已满，丢弃事件 [%s]", event)
	}
}

// SendTo 向单个连接发送定向事件，拒绝和快照只走这条路径
func (h *Hub) SendTo(client *Client, event string, payload interface{}) {
	data, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		log.Printf("序列化定向消息失败 [%s]: %v", event, err)
		return
	}

	select {
	case client.send <- data:
	default:
		log.Printf("客户端发送缓冲已满，丢弃事件 [%s, 连接ID: %s]", event, client.id)
	}
}

// ClientCount 当前连接总数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Sessions 返回Hub持有的会话注册表
func (h *Hub) Sessions() *SessionRegistry {
	return h.sessions
}
