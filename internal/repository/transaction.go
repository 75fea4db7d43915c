package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// TransactionManager 事务管理器接口
type TransactionManager interface {
	// Begin 开始事务
	Begin(ctx context.Context) (*Transaction, error)
	// WithTransaction 在事务中执行函数
	WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error
}

// Transaction 事务包装器
type Transaction struct {
	tx         *gorm.DB
	ctx        context.Context
	committed  bool
	rolledback bool

	// 事务中的仓储实例
	game         GameRepository
	gamePlayer   GamePlayerRepository
	playerSecret PlayerSecretRepository
	round        RoundRepository
	question     QuestionRepository
	answer       AnswerRepository
	guess        GuessRepository
	characterSet CharacterSetRepository
	user         UserRepository
	gameEvent    GameEventRepository

	afterCommit []func()
}

// txManager 事务管理器实现
type txManager struct {
	db *gorm.DB
}

// NewTransactionManager 创建事务管理器
func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &txManager{db: db}
}

// Begin 开始事务
func (m *txManager) Begin(ctx context.Context) (*Transaction, error) {
	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	return &Transaction{
		tx:  tx,
		ctx: ctx,
	}, nil
}

// WithTransaction 在事务中执行函数
func (m *txManager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	// 确保事务被处理
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		if !tx.committed && !tx.rolledback {
			tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, hook := range tx.afterCommit {
		hook()
	}
	return nil
}

// Commit 提交事务
func (t *Transaction) Commit() error {
	if t.committed {
		return fmt.Errorf("事务已提交")
	}
	if t.rolledback {
		return fmt.Errorf("事务已回滚")
	}

	if err := t.tx.Commit().Error; err != nil {
		return err
	}

	t.committed = true
	return nil
}

// Rollback 回滚事务
func (t *Transaction) Rollback() error {
	if t.committed {
		return fmt.Errorf("事务已提交，无法回滚")
	}
	if t.rolledback {
		return fmt.Errorf("事务已回滚")
	}

	if err := t.tx.Rollback().Error; err != nil {
		return err
	}

	t.rolledback = true
	return nil
}

// AfterCommit 注册提交成功后执行的回调
func (t *Transaction) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

// GetDB 获取事务中的数据库实例
func (t *Transaction) GetDB() *gorm.DB {
	return t.tx
}

// Game 获取事务中的游戏仓储
func (t *Transaction) Game() GameRepository {
	if t.game == nil {
		t.game = &gameRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.game
}

// GamePlayer 获取事务中的玩家仓储
func (t *Transaction) GamePlayer() GamePlayerRepository {
	if t.gamePlayer == nil {
		t.gamePlayer = &gamePlayerRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.gamePlayer
}

// PlayerSecret 获取事务中的秘密角色仓储
func (t *Transaction) PlayerSecret() PlayerSecretRepository {
	if t.playerSecret == nil {
		t.playerSecret = &playerSecretRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.playerSecret
}

// Round 获取事务中的回合仓储
func (t *Transaction) Round() RoundRepository {
	if t.round == nil {
		t.round = &roundRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.round
}

// Question 获取事务中的提问仓储
func (t *Transaction) Question() QuestionRepository {
	if t.question == nil {
		t.question = &questionRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.question
}

// Answer 获取事务中的回答仓储
func (t *Transaction) Answer() AnswerRepository {
	if t.answer == nil {
		t.answer = &answerRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.answer
}

// Guess 获取事务中的猜测仓储
func (t *Transaction) Guess() GuessRepository {
	if t.guess == nil {
		t.guess = &guessRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.guess
}

// CharacterSet 获取事务中的角色集仓储
func (t *Transaction) CharacterSet() CharacterSetRepository {
	if t.characterSet == nil {
		t.characterSet = &characterSetRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.characterSet
}

// User 获取事务中的用户仓储
func (t *Transaction) User() UserRepository {
	if t.user == nil {
		t.user = &userRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.user
}

// GameEvent 获取事务中的事件仓储
func (t *Transaction) GameEvent() GameEventRepository {
	if t.gameEvent == nil {
		t.gameEvent = &gameEventRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.gameEvent
}
