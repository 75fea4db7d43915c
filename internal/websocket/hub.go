package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/guess-game/internal/config"
	"github.com/wfunc/guess-game/internal/logger"
	"go.uber.org/zap"
)

// MessageHandler 处理客户端上行消息
type MessageHandler interface {
	HandleClientMessage(client *Client, data []byte)
}

// Options 连接参数
type Options struct {
	SendBufferSize int
	MaxMessageSize int64
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultOptions 默认连接参数
func DefaultOptions() Options {
	return Options{
		SendBufferSize: 256,
		MaxMessageSize: 8192,
		PingInterval:   54 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// OptionsFromConfig 从配置构建连接参数，未配置的项使用默认值
func OptionsFromConfig(cfg config.WebSocketConfig) Options {
	opts := DefaultOptions()
	if cfg.SendBufferSize > 0 {
		opts.SendBufferSize = cfg.SendBufferSize
	}
	if cfg.MaxMessageSize > 0 {
		opts.MaxMessageSize = cfg.MaxMessageSize
	}
	if cfg.PingInterval > 0 {
		opts.PingInterval = cfg.PingInterval
	}
	if cfg.PongTimeout > 0 {
		opts.PongTimeout = cfg.PongTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	// ping 周期必须小于 pong 超时
	if opts.PingInterval >= opts.PongTimeout {
		opts.PingInterval = opts.PongTimeout * 9 / 10
	}
	return opts
}

// Hub WebSocket连接管理中心
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	registry *ConnectionRegistry
	handler  MessageHandler
	options  Options

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger *zap.Logger
}

// NewHub 创建Hub
func NewHub(opts Options, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		registry:   NewConnectionRegistry(),
		options:    opts,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// SetMessageHandler 设置上行消息处理器
func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.handler = handler
}

// Registry 连接注册表
func (h *Hub) Registry() *ConnectionRegistry {
	return h.registry
}

// Run 运行Hub，ctx 取消后关闭所有连接并退出
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.clientsMu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				h.registry.Remove(id)
				close(client.send)
			}
			h.clientsMu.Unlock()
			h.logger.Info("WebSocket连接中心已停止")
			return
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()
	h.registry.Add(client.ID, client.UserID)

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.Uintp("user_id", client.UserID))

	msg, _ := NewMessage(MessageTypeConnected, "", map[string]string{"client_id": client.ID})
	h.SendToClient(client.ID, msg)
}

// unregisterClient 注销客户端，只退订房间，不影响玩家记录
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.send)
	}
	h.clientsMu.Unlock()

	sub := h.registry.Remove(client.ID)
	fields := []zap.Field{zap.String("client_id", client.ID)}
	if sub != nil && sub.RoomCode != "" {
		fields = append(fields, zap.String("room_code", sub.RoomCode))
	}
	h.logger.Info("WebSocket客户端断开", fields...)
}

// SendToClient 发送消息给指定客户端，缓冲区满时直接丢弃
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return h.sendRaw(clientID, data)
}

func (h *Hub) sendRaw(clientID string, data []byte) error {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	select {
	case client.send <- data:
		return nil
	default:
		h.logger.Warn("客户端发送缓冲区满", zap.String("client_id", clientID))
		return ErrSendBufferFull
	}
}

// GetOnlineCount 获取在线连接数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Attach 为已升级的连接创建客户端，注册后启动读写协程
func (h *Hub) Attach(conn *websocket.Conn, userID *uint) (*Client, error) {
	client := NewClient(h, conn, userID)
	if err := h.Register(client); err != nil {
		conn.Close()
		return nil, err
	}
	go client.WritePump()
	go client.ReadPump()
	return client, nil
}

// Register 注册客户端
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) dispatch(client *Client, data []byte) {
	logger.LogWebSocketMessage("receive", "raw", string(data))
	if h.handler == nil {
		client.SendError(MessageTypeError, "", "服务未就绪")
		return
	}
	h.handler.HandleClientMessage(client, data)
}
