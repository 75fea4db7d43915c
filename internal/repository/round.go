package repository

import (
	"context"

	"github.com/wfunc/guess-game/internal/models"
	"gorm.io/gorm"
)

// RoundRepository 回合仓储接口
type RoundRepository interface {
	BaseRepository
	Create(ctx context.Context, round *models.Round) error
	Update(ctx context.Context, round *models.Round) error
	FindCurrent(ctx context.Context, gameID uint) (*models.Round, error)
	CountByGame(ctx context.Context, gameID uint) (int64, error)
	ListByGame(ctx context.Context, gameID uint) ([]*models.Round, error)
}

type roundRepo struct {
	*BaseRepo
}

// NewRoundRepository 创建回合仓储
func NewRoundRepository(db *gorm.DB) RoundRepository {
	return &roundRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建回合
func (r *roundRepo) Create(ctx context.Context, round *models.Round) error {
	return r.db.WithContext(ctx).Create(round).Error
}

// Update 更新回合
func (r *roundRepo) Update(ctx context.Context, round *models.Round) error {
	return r.db.WithContext(ctx).Save(round).Error
}

// FindCurrent 查找当前未关闭的回合
func (r *roundRepo) FindCurrent(ctx context.Context, gameID uint) (*models.Round, error) {
	return first(r.db.WithContext(ctx).
		Where("game_id = ? AND state <> ?", gameID, models.RoundStateClosed).
		Order("round_number DESC"), &models.Round{})
}

// CountByGame 统计回合数
func (r *roundRepo) CountByGame(ctx context.Context, gameID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Round{}).
		Where("game_id = ?", gameID).
		Count(&count).Error
	return count, err
}

// ListByGame 按回合号列出
func (r *roundRepo) ListByGame(ctx context.Context, gameID uint) ([]*models.Round, error) {
	var rounds []*models.Round
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("round_number ASC").
		Find(&rounds).Error
	return rounds, err
}

// WithTx 使用事务
func (r *roundRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &roundRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// QuestionRepository 提问仓储接口
type QuestionRepository interface {
	BaseRepository
	Create(ctx context.Context, question *models.Question) error
	FindByID(ctx context.Context, id uint) (*models.Question, error)
	FindPendingByRound(ctx context.Context, roundID uint) (*models.Question, error)
	CountByAsker(ctx context.Context, gameID, playerID uint) (int64, error)
}

type questionRepo struct {
	*BaseRepo
}

// NewQuestionRepository 创建提问仓储
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建提问
func (r *questionRepo) Create(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

// FindByID 根据ID查找提问
func (r *questionRepo) FindByID(ctx context.Context, id uint) (*models.Question, error) {
	return first(r.db.WithContext(ctx).Where("id = ?", id), &models.Question{})
}

// FindPendingByRound 查找回合内尚未回答的提问
func (r *questionRepo) FindPendingByRound(ctx context.Context, roundID uint) (*models.Question, error) {
	answered := r.db.Model(&models.Answer{}).Select("question_id")
	return first(r.db.WithContext(ctx).
		Where("round_id = ? AND id NOT IN (?)", roundID, answered).
		Order("id DESC"), &models.Question{})
}

// CountByAsker 统计玩家提问次数
func (r *questionRepo) CountByAsker(ctx context.Context, gameID, playerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("game_id = ? AND asked_by_id = ?", gameID, playerID).
		Count(&count).Error
	return count, err
}

// WithTx 使用事务
func (r *questionRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &questionRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// AnswerRepository 回答仓储接口
type AnswerRepository interface {
	BaseRepository
	Create(ctx context.Context, answer *models.Answer) error
	FindByQuestion(ctx context.Context, questionID uint) (*models.Answer, error)
	CountByAnswerer(ctx context.Context, gameID, playerID uint) (int64, error)
}

type answerRepo struct {
	*BaseRepo
}

// NewAnswerRepository 创建回答仓储
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建回答
func (r *answerRepo) Create(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Create(answer).Error
}

// FindByQuestion 查找提问的回答
func (r *answerRepo) FindByQuestion(ctx context.Context, questionID uint) (*models.Answer, error) {
	return first(r.db.WithContext(ctx).Where("question_id = ?", questionID), &models.Answer{})
}

// CountByAnswerer 统计玩家回答次数
func (r *answerRepo) CountByAnswerer(ctx context.Context, gameID, playerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("game_id = ? AND answered_by_id = ?", gameID, playerID).
		Count(&count).Error
	return count, err
}

// WithTx 使用事务
func (r *answerRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &answerRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// GuessRepository 猜测仓储接口
type GuessRepository interface {
	BaseRepository
	Create(ctx context.Context, guess *models.Guess) error
	ListByGame(ctx context.Context, gameID uint) ([]*models.Guess, error)
	CountByGuesser(ctx context.Context, gameID, playerID uint, correct bool) (int64, error)
}

type guessRepo struct {
	*BaseRepo
}

// NewGuessRepository 创建猜测仓储
func NewGuessRepository(db *gorm.DB) GuessRepository {
	return &guessRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建猜测
func (r *guessRepo) Create(ctx context.Context, guess *models.Guess) error {
	return r.db.WithContext(ctx).Create(guess).Error
}

// ListByGame 列出房间内所有猜测
func (r *guessRepo) ListByGame(ctx context.Context, gameID uint) ([]*models.Guess, error) {
	var guesses []*models.Guess
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("guessed_at ASC, id ASC").
		Find(&guesses).Error
	return guesses, err
}

// CountByGuesser 统计玩家猜对或猜错的次数
func (r *guessRepo) CountByGuesser(ctx context.Context, gameID, playerID uint, correct bool) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Guess{}).
		Where("game_id = ? AND guessed_by_id = ? AND is_correct = ?", gameID, playerID, correct).
		Count(&count).Error
	return count, err
}

// WithTx 使用事务
func (r *guessRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &guessRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
