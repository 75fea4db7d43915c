package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wfunc/guess-game/internal/logger"
	"go.uber.org/zap"
)

// BroadcastDispatcher 房间事件推送，发送不阻塞调用方
type BroadcastDispatcher struct {
	hub    *Hub
	logger *zap.Logger
}

// NewBroadcastDispatcher 创建推送器
func NewBroadcastDispatcher(hub *Hub, log *zap.Logger) *BroadcastDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &BroadcastDispatcher{hub: hub, logger: log}
}

// BroadcastToRoom 向房间内所有订阅连接推送事件，返回发送失败的汇总错误
func (d *BroadcastDispatcher) BroadcastToRoom(roomCode, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化事件 %s 失败: %w", event, err)
	}
	raw, err := json.Marshal(&Message{
		Type:      event,
		RoomCode:  roomCode,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	members := d.hub.registry.RoomMembers(roomCode)
	logger.LogWebSocketMessage("send", event, map[string]interface{}{
		"room_code": roomCode,
		"receivers": len(members),
	})

	failed := 0
	for _, id := range members {
		if err := d.hub.sendRaw(id, raw); err != nil {
			failed++
			d.logger.Debug("推送失败",
				zap.String("client_id", id),
				zap.String("room_code", roomCode),
				zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("房间 %s 事件 %s 有 %d/%d 个连接推送失败", roomCode, event, failed, len(members))
	}
	return nil
}
