package websocket

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/models"
	"github.com/wfunc/guess-game/internal/utils"
	"go.uber.org/zap"
)

// GameService 房间消息处理依赖的游戏操作，由 game.Coordinator 实现
type GameService interface {
	JoinGame(ctx context.Context, req *game.JoinGameRequest) (*game.JoinResult, error)
	ReconnectPlayer(ctx context.Context, roomCode string, ref game.PlayerRef) (*models.GamePlayer, *game.GameStateView, error)
	LeaveGame(ctx context.Context, roomCode string, playerID uint) (*game.GameStateView, error)
	SetReady(ctx context.Context, roomCode string, playerID uint, ready bool) (*game.LobbyView, error)
}

type joinRoomData struct {
	RoomCode  string `json:"room_code"`
	UserID    *uint  `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

type leaveRoomData struct {
	RoomCode string `json:"room_code"`
	PlayerID uint   `json:"player_id"`
}

type readyData struct {
	RoomCode string `json:"room_code"`
	PlayerID uint   `json:"player_id"`
	IsReady  bool   `json:"is_ready"`
}

// JoinRoomResult joinRoom 成功后的应答数据，开局后重连时 Lobby 为空、State 有值
type JoinRoomResult struct {
	PlayerID uint                `json:"player_id"`
	Lobby    *game.LobbyView     `json:"lobby,omitempty"`
	State    *game.GameStateView `json:"state,omitempty"`
}

// RoomHandler 房间消息处理器
type RoomHandler struct {
	hub     *Hub
	service GameService
	timeout time.Duration
	logger  *zap.Logger
}

// NewRoomHandler 创建房间消息处理器并挂到 hub 上
func NewRoomHandler(hub *Hub, service GameService, log *zap.Logger) *RoomHandler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &RoomHandler{
		hub:     hub,
		service: service,
		timeout: 10 * time.Second,
		logger:  log,
	}
	hub.SetMessageHandler(h)
	return h
}

// HandleClientMessage 处理客户端消息
func (h *RoomHandler) HandleClientMessage(client *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn("解析WebSocket消息失败",
			zap.String("client_id", client.ID),
			zap.Error(err))
		client.SendError(MessageTypeError, "", "消息格式错误")
		return
	}
	if msg.Type == "" {
		client.SendError(MessageTypeError, msg.RequestID, "消息类型不能为空")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	switch msg.Type {
	case MessageTypePing:
		pong, _ := NewMessage(MessageTypePong, "", nil)
		pong.RequestID = msg.RequestID
		client.Send(pong)

	case MessageTypeJoinRoom:
		h.handleJoinRoom(ctx, client, &msg)

	case MessageTypeLeaveRoom:
		h.handleLeaveRoom(ctx, client, &msg)

	case MessageTypeUpdatePlayerReady:
		h.handleUpdateReady(ctx, client, &msg)

	default:
		h.logger.Warn("不支持的消息类型",
			zap.String("client_id", client.ID),
			zap.String("type", msg.Type))
		client.SendError(MessageTypeError, msg.RequestID, "不支持的消息类型: "+msg.Type)
	}
}

func (h *RoomHandler) handleJoinRoom(ctx context.Context, client *Client, msg *Message) {
	var data joinRoomData
	if !h.decode(client, msg, &data) {
		return
	}
	code := utils.NormalizeRoomCode(firstNonEmpty(data.RoomCode, msg.RoomCode))

	ref := game.PlayerRef{UserID: data.UserID, Username: data.Username, AvatarURL: data.AvatarURL}
	// 登录连接以令牌中的身份为准
	if client.UserID != nil {
		ref.UserID = client.UserID
	}

	joined, err := h.service.JoinGame(ctx, &game.JoinGameRequest{
		RoomCode:  code,
		UserID:    ref.UserID,
		Username:  ref.Username,
		AvatarURL: ref.AvatarURL,
	})
	if err == nil {
		h.hub.registry.Subscribe(client.ID, code, joined.PlayerID)
		h.ack(client, msg, code, JoinRoomResult{PlayerID: joined.PlayerID, Lobby: joined.Lobby}, nil)
		return
	}
	if !apperrors.Is(err, apperrors.ErrGameNotJoinable) {
		h.ack(client, msg, code, nil, err)
		return
	}

	// 已开局：在场玩家可以重新订阅
	player, state, rerr := h.service.ReconnectPlayer(ctx, code, ref)
	if rerr != nil {
		if apperrors.IsNotFound(rerr) {
			rerr = err
		}
		h.ack(client, msg, code, nil, rerr)
		return
	}
	h.hub.registry.Subscribe(client.ID, code, player.ID)
	h.ack(client, msg, code, JoinRoomResult{PlayerID: player.ID, State: state}, nil)
}

func (h *RoomHandler) handleLeaveRoom(ctx context.Context, client *Client, msg *Message) {
	var data leaveRoomData
	if !h.decode(client, msg, &data) {
		return
	}
	code, playerID := h.target(client, msg, data.RoomCode, data.PlayerID)

	state, err := h.service.LeaveGame(ctx, code, playerID)
	if err != nil {
		h.ack(client, msg, code, nil, err)
		return
	}
	h.hub.registry.Unsubscribe(client.ID)
	h.ack(client, msg, code, state, nil)
}

func (h *RoomHandler) handleUpdateReady(ctx context.Context, client *Client, msg *Message) {
	var data readyData
	if !h.decode(client, msg, &data) {
		return
	}
	code, playerID := h.target(client, msg, data.RoomCode, data.PlayerID)

	lobby, err := h.service.SetReady(ctx, code, playerID, data.IsReady)
	h.ack(client, msg, code, lobby, err)
}

// target 请求未指定房间或玩家时使用连接当前的订阅
func (h *RoomHandler) target(client *Client, msg *Message, roomCode string, playerID uint) (string, uint) {
	code := utils.NormalizeRoomCode(firstNonEmpty(roomCode, msg.RoomCode))
	sub, ok := h.hub.registry.Get(client.ID)
	if ok && sub.RoomCode != "" {
		if code == "" {
			code = sub.RoomCode
		}
		if playerID == 0 && code == sub.RoomCode {
			playerID = sub.PlayerID
		}
	}
	return code, playerID
}

func (h *RoomHandler) decode(client *Client, msg *Message, dest interface{}) bool {
	if len(msg.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(msg.Data, dest); err != nil {
		h.ack(client, msg, msg.RoomCode, nil, apperrors.Wrap(err, apperrors.ErrMessageFormat, "请求数据格式错误"))
		return false
	}
	return true
}

func (h *RoomHandler) ack(client *Client, msg *Message, roomCode string, data interface{}, err error) {
	ack := Ack{Success: err == nil, Data: data}
	if err != nil {
		ack.Data = nil
		ack.Error = ackError(err)
		h.logger.Info("房间请求失败",
			zap.String("client_id", client.ID),
			zap.String("type", msg.Type),
			zap.String("room_code", roomCode),
			zap.Error(err))
	}

	reply, merr := NewMessage(MessageTypeAck, roomCode, ack)
	if merr != nil {
		h.logger.Error("序列化应答失败", zap.Error(merr))
		return
	}
	reply.RequestID = msg.RequestID
	client.Send(reply)
}

func ackError(err error) *AckError {
	if appErr, ok := apperrors.As(err); ok {
		message := appErr.Message
		if appErr.Details != "" {
			message = appErr.Details
		}
		return &AckError{Code: int(appErr.Code), Message: message}
	}
	return &AckError{Code: int(apperrors.ErrUnknown), Message: err.Error()}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
