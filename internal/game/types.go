package game

import (
	"github.com/wfunc/guess-game/internal/repository"
)

// 推送事件类型
const (
	EventLobbyUpdate     = "lobbyUpdate"
	EventGameStarted     = "gameStarted"
	EventQuestionAsked   = "questionAsked"
	EventAnswerSubmitted = "answerSubmitted"
	EventGuessResult     = "guessResult"
	EventGameOver        = "gameOver"
	EventPlayerLeft      = "playerLeft"
	EventTurnSkipped     = "turnSkipped"
)

// Broadcaster 房间广播接口，由 websocket 层实现
type Broadcaster interface {
	BroadcastToRoom(roomCode, event string, payload interface{}) error
}

// RoomConnections 查询房间当前订阅连接数
type RoomConnections interface {
	RoomConnectionCount(roomCode string) int
}

// Store 仓储访问集合，Manager 与事务内的 Transaction 都满足该接口
type Store interface {
	Game() repository.GameRepository
	GamePlayer() repository.GamePlayerRepository
	PlayerSecret() repository.PlayerSecretRepository
	Round() repository.RoundRepository
	Question() repository.QuestionRepository
	Answer() repository.AnswerRepository
	Guess() repository.GuessRepository
	CharacterSet() repository.CharacterSetRepository
	User() repository.UserRepository
	GameEvent() repository.GameEventRepository
}

// PlayerRef 玩家身份引用：登录用户给出 UserID，游客只给出用户名
type PlayerRef struct {
	UserID    *uint  `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// CreateGameRequest 创建房间请求
type CreateGameRequest struct {
	CharacterSetID   string                 `json:"character_set_id" binding:"required"`
	HostUserID       *uint                  `json:"host_user_id,omitempty"`
	HostUsername     string                 `json:"host_username,omitempty"`
	HostAvatarURL    string                 `json:"host_avatar_url,omitempty"`
	Visibility       string                 `json:"visibility,omitempty"`
	MaxPlayers       *int                   `json:"max_players,omitempty"`
	TurnTimerSeconds *int                   `json:"turn_timer_seconds,omitempty"`
	RuleConfig       map[string]interface{} `json:"rule_config,omitempty"`
}

// Host 房主身份
func (r *CreateGameRequest) Host() PlayerRef {
	return PlayerRef{UserID: r.HostUserID, Username: r.HostUsername, AvatarURL: r.HostAvatarURL}
}

// JoinGameRequest 加入房间请求
type JoinGameRequest struct {
	RoomCode  string `json:"room_code" binding:"required"`
	UserID    *uint  `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Joiner 加入者身份
func (r *JoinGameRequest) Joiner() PlayerRef {
	return PlayerRef{UserID: r.UserID, Username: r.Username, AvatarURL: r.AvatarURL}
}

// AskQuestionRequest 提问请求
type AskQuestionRequest struct {
	PlayerID       uint   `json:"player_id" binding:"required"`
	TargetPlayerID *uint  `json:"target_player_id,omitempty"`
	QuestionText   string `json:"question_text" binding:"required"`
	Category       string `json:"category" binding:"required"`
	AnswerType     string `json:"answer_type" binding:"required"`
}

// SubmitAnswerRequest 回答请求
type SubmitAnswerRequest struct {
	PlayerID    uint   `json:"player_id" binding:"required"`
	QuestionID  uint   `json:"question_id" binding:"required"`
	AnswerValue string `json:"answer_value"`
	AnswerText  string `json:"answer_text,omitempty"`
}

// SubmitGuessRequest 猜测请求
type SubmitGuessRequest struct {
	PlayerID          uint  `json:"player_id" binding:"required"`
	TargetPlayerID    *uint `json:"target_player_id,omitempty"`
	TargetCharacterID uint  `json:"target_character_id" binding:"required"`
}

// ReadyRequest 准备状态请求
type ReadyRequest struct {
	PlayerID uint `json:"player_id" binding:"required"`
	IsReady  bool `json:"is_ready"`
}

// LeaveRequest 离开请求
type LeaveRequest struct {
	PlayerID uint `json:"player_id" binding:"required"`
}

// JoinResult 创建/加入房间的结果，带上调用者自己的玩家ID
type JoinResult struct {
	PlayerID uint       `json:"player_id"`
	Lobby    *LobbyView `json:"lobby"`
}
