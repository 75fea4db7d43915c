package models

import (
	"time"
)

// 回合状态
const (
	RoundStateAwaitingQuestion = "awaiting_question"
	RoundStateAwaitingAnswer   = "awaiting_answer"
	RoundStateClosed           = "closed"
)

// 问题分类
const (
	QuestionCategoryTrait  = "trait"
	QuestionCategoryDirect = "direct"
	QuestionCategoryMeta   = "meta"
)

// 回答类型
const (
	AnswerTypeBoolean = "boolean"
	AnswerTypeText    = "text"
)

// 布尔回答取值
const (
	AnswerYes    = "yes"
	AnswerNo     = "no"
	AnswerUnsure = "unsure"
)

// Round 回合表
type Round struct {
	BaseModel
	GameID         uint       `gorm:"not null;uniqueIndex:idx_game_round,priority:1" json:"game_id"`
	RoundNumber    int        `gorm:"not null;uniqueIndex:idx_game_round,priority:2" json:"round_number"`
	ActivePlayerID uint       `gorm:"not null" json:"active_player_id"`
	State          string     `gorm:"size:20;not null;index" json:"state"`
	StartedAt      time.Time  `gorm:"not null" json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	DurationMs     *int64     `json:"duration_ms,omitempty"`
}

// Close 关闭回合并记录耗时
func (r *Round) Close(now time.Time) {
	r.State = RoundStateClosed
	r.EndedAt = &now
	d := now.Sub(r.StartedAt).Milliseconds()
	r.DurationMs = &d
}

// Question 提问表
type Question struct {
	BaseModel
	RoundID        uint      `gorm:"not null;index" json:"round_id"`
	GameID         uint      `gorm:"not null;index" json:"game_id"`
	AskedByID      uint      `gorm:"not null;index" json:"asked_by_id"`
	TargetPlayerID *uint     `json:"target_player_id,omitempty"`
	QuestionText   string    `gorm:"size:500;not null" json:"question_text"`
	Category       string    `gorm:"size:10;not null" json:"category"`
	AnswerType     string    `gorm:"size:10;not null" json:"answer_type"`
	AskedAt        time.Time `gorm:"not null" json:"asked_at"`
}

// Answer 回答表
type Answer struct {
	BaseModel
	QuestionID   uint      `gorm:"not null;uniqueIndex" json:"question_id"`
	GameID       uint      `gorm:"not null;index" json:"game_id"`
	AnsweredByID uint      `gorm:"not null;index" json:"answered_by_id"`
	AnswerValue  string    `gorm:"size:500;not null" json:"answer_value"`
	AnswerText   string    `gorm:"size:500" json:"answer_text,omitempty"`
	LatencyMs    *int64    `json:"latency_ms,omitempty"`
	AnsweredAt   time.Time `gorm:"not null" json:"answered_at"`
}

// Guess 猜测表
type Guess struct {
	BaseModel
	RoundID           uint      `gorm:"not null;index" json:"round_id"`
	GameID            uint      `gorm:"not null;index" json:"game_id"`
	GuessedByID       uint      `gorm:"not null;index" json:"guessed_by_id"`
	TargetPlayerID    *uint     `json:"target_player_id,omitempty"`
	TargetCharacterID uint      `gorm:"not null" json:"target_character_id"`
	IsCorrect         bool      `gorm:"default:false" json:"is_correct"`
	LatencyMs         *int64    `json:"latency_ms,omitempty"`
	GuessedAt         time.Time `gorm:"not null" json:"guessed_at"`
}
