package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	// 事务管理器
	txManager TransactionManager

	// 仓储实例（使用懒加载）
	gameOnce sync.Once
	game     GameRepository

	gamePlayerOnce sync.Once
	gamePlayer     GamePlayerRepository

	playerSecretOnce sync.Once
	playerSecret     PlayerSecretRepository

	roundOnce sync.Once
	round     RoundRepository

	questionOnce sync.Once
	question     QuestionRepository

	answerOnce sync.Once
	answer     AnswerRepository

	guessOnce sync.Once
	guess     GuessRepository

	characterSetOnce sync.Once
	characterSet     CharacterSetRepository

	userOnce sync.Once
	user     UserRepository

	gameEventOnce sync.Once
	gameEvent     GameEventRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:        db,
		txManager: NewTransactionManager(db),
	}
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// Transaction 获取事务管理器
func (m *Manager) Transaction() TransactionManager {
	return m.txManager
}

// WithTransaction 在事务中执行操作
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	return m.txManager.WithTransaction(ctx, fn)
}

// Game 获取游戏仓储
func (m *Manager) Game() GameRepository {
	m.gameOnce.Do(func() {
		m.game = NewGameRepository(m.db)
	})
	return m.game
}

// GamePlayer 获取玩家仓储
func (m *Manager) GamePlayer() GamePlayerRepository {
	m.gamePlayerOnce.Do(func() {
		m.gamePlayer = NewGamePlayerRepository(m.db)
	})
	return m.gamePlayer
}

// PlayerSecret 获取秘密角色仓储
func (m *Manager) PlayerSecret() PlayerSecretRepository {
	m.playerSecretOnce.Do(func() {
		m.playerSecret = NewPlayerSecretRepository(m.db)
	})
	return m.playerSecret
}

// Round 获取回合仓储
func (m *Manager) Round() RoundRepository {
	m.roundOnce.Do(func() {
		m.round = NewRoundRepository(m.db)
	})
	return m.round
}

// Question 获取提问仓储
func (m *Manager) Question() QuestionRepository {
	m.questionOnce.Do(func() {
		m.question = NewQuestionRepository(m.db)
	})
	return m.question
}

// Answer 获取回答仓储
func (m *Manager) Answer() AnswerRepository {
	m.answerOnce.Do(func() {
		m.answer = NewAnswerRepository(m.db)
	})
	return m.answer
}

// Guess 获取猜测仓储
func (m *Manager) Guess() GuessRepository {
	m.guessOnce.Do(func() {
		m.guess = NewGuessRepository(m.db)
	})
	return m.guess
}

// CharacterSet 获取角色集仓储
func (m *Manager) CharacterSet() CharacterSetRepository {
	m.characterSetOnce.Do(func() {
		m.characterSet = NewCharacterSetRepository(m.db)
	})
	return m.characterSet
}

// User 获取用户仓储
func (m *Manager) User() UserRepository {
	m.userOnce.Do(func() {
		m.user = NewUserRepository(m.db)
	})
	return m.user
}

// GameEvent 获取事件仓储
func (m *Manager) GameEvent() GameEventRepository {
	m.gameEventOnce.Do(func() {
		m.gameEvent = NewGameEventRepository(m.db)
	})
	return m.gameEvent
}
