// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/Corphon/PersonaChat/internal/utils"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 64
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketConnection 定义 WebSocket 连接的接口
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// feedClient 订阅某个对话实例的一个连接
type feedClient struct {
	conn      WebSocketConnection
	chatID    string
	send      chan []byte
	closed    int32
	lastPing  atomic.Int64
	createdAt time.Time
}

func newFeedClient(conn WebSocketConnection, chatID string) *feedClient {
	client := &feedClient{
		conn:      conn,
		chatID:    chatID,
		send:      make(chan []byte, sendBufferSize),
		createdAt: time.Now(),
	}
	client.touch()
	return client
}

func (client *feedClient) touch() {
	client.lastPing.Store(time.Now().UnixNano())
}

func (client *feedClient) expired(timeout time.Duration) bool {
	return time.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

func (client *feedClient) isClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// ChatHub 按对话实例分组管理订阅连接，并推送新保存的对话轮次
type ChatHub struct {
	mutex       sync.RWMutex
	clients     map[string]map[*feedClient]struct{}
	pingTimeout time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewChatHub 创建并启动连接清理循环
func NewChatHub() *ChatHub {
	hub := &ChatHub{
		clients:     make(map[string]map[*feedClient]struct{}),
		pingTimeout: pongWait * 2,
		stop:        make(chan struct{}),
	}
	go hub.run()
	return hub
}

func (hub *ChatHub) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hub.cleanupExpired()
		case <-hub.stop:
			return
		}
	}
}

// Close 断开所有连接并停止清理循环
func (hub *ChatHub) Close() {
	hub.stopOnce.Do(func() {
		close(hub.stop)

		hub.mutex.Lock()
		defer hub.mutex.Unlock()
		for _, clients := range hub.clients {
			for client := range clients {
				hub.closeClientLocked(client)
			}
		}
		hub.clients = make(map[string]map[*feedClient]struct{})
	})
}

func (hub *ChatHub) register(client *feedClient) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	if hub.clients[client.chatID] == nil {
		hub.clients[client.chatID] = make(map[*feedClient]struct{})
	}
	hub.clients[client.chatID][client] = struct{}{}

	utils.GetLogger().Debug("对话订阅已连接", map[string]interface{}{"chat_id": client.chatID})
}

func (hub *ChatHub) unregister(client *feedClient) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	if clients, ok := hub.clients[client.chatID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(hub.clients, client.chatID)
		}
	}
	hub.closeClientLocked(client)
}

// closeClientLocked 只在持有写锁时调用，send 通道只在这里关闭
func (hub *ChatHub) closeClientLocked(client *feedClient) {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		close(client.send)
	}
}

func (hub *ChatHub) cleanupExpired() {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	for chatID, clients := range hub.clients {
		for client := range clients {
			if client.isClosed() || client.expired(hub.pingTimeout) {
				delete(clients, client)
				hub.closeClientLocked(client)
			}
		}
		if len(clients) == 0 {
			delete(hub.clients, chatID)
		}
	}
}

// BroadcastTurn 把新保存的对话轮次推送给订阅该对话的连接
func (hub *ChatHub) BroadcastTurn(chatID string, turn models.ConversationTurn) {
	hub.broadcast(chatID, map[string]interface{}{
		"type":    "turn",
		"chat_id": chatID,
		"turn":    turn,
	})
}

func (hub *ChatHub) broadcast(chatID string, message map[string]interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		utils.GetLogger().Error("序列化推送消息失败", map[string]interface{}{"error": err.Error()})
		return
	}

	var slow []*feedClient
	hub.mutex.RLock()
	for client := range hub.clients[chatID] {
		if client.isClosed() {
			continue
		}
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	hub.mutex.RUnlock()

	// 发送队列已满的连接直接断开
	for _, client := range slow {
		utils.GetLogger().Warn("订阅连接发送队列已满，断开连接", map[string]interface{}{"chat_id": chatID})
		hub.unregister(client)
	}
}

// send 向单个连接排队一条消息，连接已关闭时直接丢弃
func (hub *ChatHub) send(client *feedClient, message map[string]interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		return
	}

	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	if client.isClosed() {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// GetStatus 获取连接状态
func (hub *ChatHub) GetStatus() map[string]interface{} {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()

	chats := make(map[string]interface{}, len(hub.clients))
	total := 0
	for chatID, clients := range hub.clients {
		active := 0
		for client := range clients {
			if !client.isClosed() {
				active++
			}
		}
		chats[chatID] = map[string]interface{}{"client_count": active}
		total += active
	}

	return map[string]interface{}{
		"total_chats":       len(hub.clients),
		"total_connections": total,
		"chats":             chats,
	}
}
