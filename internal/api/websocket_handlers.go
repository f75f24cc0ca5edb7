// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"time"

	"github.com/Corphon/PersonaChat/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ChatFeed 订阅某个对话实例的轮次推送
func (h *Handler) ChatFeed(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := h.Chats.Get(chatID); err != nil {
		h.Response.Fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warn("WebSocket 升级失败", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return
	}

	client := newFeedClient(conn, chatID)
	h.Hub.register(client)
	defer h.Hub.unregister(client)

	go h.writePump(client)

	h.Hub.send(client, map[string]interface{}{
		"type":      "connected",
		"chat_id":   chatID,
		"timestamp": time.Now().Format(time.RFC3339),
	})

	h.readPump(client)
}

// readPump 读取客户端消息直到连接断开，只处理 ping
func (h *Handler) readPump(client *feedClient) {
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.touch()
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.GetLogger().Debug("WebSocket 读取错误", map[string]interface{}{"error": err.Error()})
			}
			return
		}
		client.touch()
		client.conn.SetReadDeadline(time.Now().Add(pongWait))

		var message map[string]interface{}
		if err := json.Unmarshal(data, &message); err != nil {
			continue
		}
		if message["type"] == "ping" {
			h.Hub.send(client, map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().Unix(),
			})
		}
	}
}

// writePump 把排队的消息写到连接上，并定期发送 ping
func (h *Handler) writePump(client *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// GetFeedStatus 返回订阅连接统计
func (h *Handler) GetFeedStatus(c *gin.Context) {
	h.Response.Success(c, h.Hub.GetStatus())
}
