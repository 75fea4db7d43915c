package websocket

import (
	"encoding/json"
	"errors"
	"time"
)

// 错误定义
var (
	ErrClientNotFound = errors.New("客户端未找到")
	ErrSendBufferFull = errors.New("发送缓冲区已满")
	ErrHubClosed      = errors.New("连接中心已关闭")
)

// Message WebSocket消息信封
type Message struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	RoomCode  string          `json:"room_code,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// 消息类型
const (
	// 系统消息
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"
	MessageTypeAck       = "ack"

	// 客户端请求
	MessageTypeJoinRoom          = "joinRoom"
	MessageTypeLeaveRoom         = "leaveRoom"
	MessageTypeUpdatePlayerReady = "updatePlayerReady"
)

// Ack 请求应答
type Ack struct {
	Success bool        `json:"success"`
	Error   *AckError   `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// AckError 应答中的错误信息
type AckError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewMessage 构建消息，data 序列化为 JSON
func NewMessage(msgType, roomCode string, data interface{}) (*Message, error) {
	msg := &Message{
		Type:      msgType,
		RoomCode:  roomCode,
		Timestamp: time.Now().Unix(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}
