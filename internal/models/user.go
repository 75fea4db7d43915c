package models

import (
	"time"

	"gorm.io/datatypes"
)

// User 用户基础信息表（身份由外部认证服务维护，此处只保留展示信息）
type User struct {
	BaseModel
	Username  string `gorm:"uniqueIndex;size:50;not null" json:"username"`
	AvatarURL string `gorm:"size:255" json:"avatar_url,omitempty"`
}

// CharacterSet 角色集
type CharacterSet struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"size:500" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Character 角色
type Character struct {
	BaseModel
	CharacterSetID string            `gorm:"size:64;not null;index" json:"character_set_id"`
	Name           string            `gorm:"size:100;not null" json:"name"`
	ImageURL       string            `gorm:"size:255" json:"image_url,omitempty"`
	Attributes     datatypes.JSONMap `json:"attributes,omitempty"`
}

// GameEvent 游戏事件审计表（只追加）
type GameEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	GameID    uint           `gorm:"not null;index" json:"game_id"`
	RoundID   *uint          `json:"round_id,omitempty"`
	PlayerID  *uint          `json:"player_id,omitempty"`
	Type      string         `gorm:"size:32;not null;index" json:"type"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
