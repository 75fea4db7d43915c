package websocket

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client WebSocket客户端
type Client struct {
	ID     string // 连接ID
	UserID *uint  // 登录用户ID，游客为空

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn, userID *uint) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.options.SendBufferSize),
	}
}

// ReadPump 读取消息，同一连接的消息按顺序处理
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	opts := c.hub.options
	c.conn.SetReadLimit(opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			break
		}
		c.hub.dispatch(c, message)
	}
}

// WritePump 写入消息
func (c *Client) WritePump() {
	opts := c.hub.options
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if !ok {
				// Hub关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 每条消息单独一帧，客户端按帧解析 JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send 发送消息给该客户端
func (c *Client) Send(msg *Message) error {
	return c.hub.SendToClient(c.ID, msg)
}

// SendError 发送错误消息
func (c *Client) SendError(msgType, requestID, message string) {
	msg, _ := NewMessage(msgType, "", map[string]string{"error": message})
	msg.RequestID = requestID
	c.Send(msg)
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.hub.Unregister(c)
}
