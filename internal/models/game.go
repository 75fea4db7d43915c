package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// 游戏状态
const (
	GameStatusLobby      = "lobby"
	GameStatusInProgress = "in_progress"
	GameStatusCompleted  = "completed"
	GameStatusAborted    = "aborted"
)

// 房间可见性
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// 玩家角色
const (
	PlayerRoleHost   = "host"
	PlayerRolePlayer = "player"
)

// Game 游戏房间表
type Game struct {
	BaseModel
	RoomCode         string            `gorm:"uniqueIndex;size:5;not null" json:"room_code"`
	Visibility       string            `gorm:"size:10;default:'private'" json:"visibility"`
	Status           string            `gorm:"size:20;index;not null" json:"status"`
	CharacterSetID   string            `gorm:"size:64;not null" json:"character_set_id"`
	MaxPlayers       *int              `json:"max_players,omitempty"`
	TurnTimerSeconds *int              `json:"turn_timer_seconds,omitempty"`
	RuleConfig       datatypes.JSONMap `json:"rule_config,omitempty"`
	HostPlayerID     *uint             `json:"host_player_id,omitempty"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	EndedAt          *time.Time        `json:"ended_at,omitempty"`
	WinnerPlayerID   *uint             `json:"winner_player_id,omitempty"`
}

// IsFinished 游戏是否已结束
func (g *Game) IsFinished() bool {
	return g.Status == GameStatusCompleted || g.Status == GameStatusAborted
}

// GamePlayer 房间内的玩家
type GamePlayer struct {
	BaseModel
	GameID      uint       `gorm:"not null;uniqueIndex:idx_game_identity,priority:1" json:"game_id"`
	UserID      *uint      `gorm:"index" json:"user_id,omitempty"`
	IdentityKey string     `gorm:"size:120;not null;uniqueIndex:idx_game_identity,priority:2" json:"-"`
	Username    string     `gorm:"size:50;not null" json:"username"`
	AvatarURL   string     `gorm:"size:255" json:"avatar_url,omitempty"`
	Role        string     `gorm:"size:10;not null" json:"role"`
	IsReady     bool       `gorm:"default:false" json:"is_ready"`
	JoinedAt    time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
	Score       int        `gorm:"default:0" json:"score"`
	Placement   *int       `json:"placement,omitempty"`
}

// IsActive 未离开的玩家
func (p *GamePlayer) IsActive() bool {
	return p.LeftAt == nil
}

// IdentityKeyFor 计算玩家身份键：登录用户按用户ID，游客按不区分大小写的用户名
func IdentityKeyFor(userID *uint, username string) string {
	if userID != nil {
		return fmt.Sprintf("user:%d", *userID)
	}
	return "guest:" + strings.ToLower(strings.TrimSpace(username))
}

// 秘密角色状态
const (
	SecretStatusHidden   = "hidden"
	SecretStatusRevealed = "revealed"
)

// PlayerSecret 玩家被分配的秘密角色
type PlayerSecret struct {
	BaseModel
	GameID       uint       `gorm:"not null;index" json:"game_id"`
	GamePlayerID uint       `gorm:"not null;uniqueIndex" json:"game_player_id"`
	CharacterID  uint       `gorm:"not null" json:"character_id"`
	Status       string     `gorm:"size:10;not null" json:"status"`
	RevealedAt   *time.Time `json:"revealed_at,omitempty"`
}
