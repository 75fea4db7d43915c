package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/guess-game/internal/config"
	"github.com/wfunc/guess-game/internal/middleware"
	ws "github.com/wfunc/guess-game/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, cfg config.WebSocketConfig, log *zap.Logger) *WebSocketHandler {
	readSize, writeSize := cfg.ReadBufferSize, cfg.WriteBufferSize
	if readSize <= 0 {
		readSize = 1024
	}
	if writeSize <= 0 {
		writeSize = 1024
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    readSize,
			WriteBufferSize:   writeSize,
			EnableCompression: cfg.EnableCompression,
			// 房间码本身就是访问凭证，不限制来源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Connect 升级为WebSocket连接，令牌可选
func (h *WebSocketHandler) Connect(c *gin.Context) {
	userID := middleware.GetUserIDPtr(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket升级失败",
			zap.String("ip", c.ClientIP()),
			zap.Error(err))
		return
	}

	client, err := h.hub.Attach(conn, userID)
	if err != nil {
		h.logger.Warn("WebSocket注册失败", zap.Error(err))
		return
	}
	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.Uintp("user_id", userID),
		zap.String("ip", c.ClientIP()))
}
