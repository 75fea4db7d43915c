package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/guess-game/internal/models"
	"gorm.io/gorm"
)

// RoundRepositoryTestSuite 回合、提问、回答、猜测仓储测试套件
type RoundRepositoryTestSuite struct {
	suite.Suite
	db      *gorm.DB
	manager *Manager
	game    *models.Game
}

func (suite *RoundRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.manager = NewManager(suite.db)

	suite.game = &models.Game{RoomCode: "ROUND", Status: models.GameStatusInProgress, CharacterSetID: "cs1"}
	require.NoError(suite.T(), suite.manager.Game().Create(context.Background(), suite.game))
}

func (suite *RoundRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

// TestFindCurrent 测试当前回合为未关闭的最新回合
func (suite *RoundRepositoryTestSuite) TestFindCurrent() {
	ctx := context.Background()
	rounds := suite.manager.Round()

	_, err := rounds.FindCurrent(ctx, suite.game.ID)
	assert.ErrorIs(suite.T(), err, ErrRecordNotFound)

	r1 := &models.Round{GameID: suite.game.ID, RoundNumber: 1, ActivePlayerID: 1, State: models.RoundStateAwaitingQuestion, StartedAt: time.Now()}
	require.NoError(suite.T(), rounds.Create(ctx, r1))

	r1.Close(time.Now())
	require.NoError(suite.T(), rounds.Update(ctx, r1))

	r2 := &models.Round{GameID: suite.game.ID, RoundNumber: 2, ActivePlayerID: 2, State: models.RoundStateAwaitingQuestion, StartedAt: time.Now()}
	require.NoError(suite.T(), rounds.Create(ctx, r2))

	current, err := rounds.FindCurrent(ctx, suite.game.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), r2.ID, current.ID)

	count, err := rounds.CountByGame(ctx, suite.game.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), count)
}

// TestPendingQuestion 测试未回答的提问查询与计数
func (suite *RoundRepositoryTestSuite) TestPendingQuestion() {
	ctx := context.Background()
	round := &models.Round{GameID: suite.game.ID, RoundNumber: 1, ActivePlayerID: 1, State: models.RoundStateAwaitingAnswer, StartedAt: time.Now()}
	require.NoError(suite.T(), suite.manager.Round().Create(ctx, round))

	q := &models.Question{
		RoundID: round.ID, GameID: suite.game.ID, AskedByID: 1,
		QuestionText: "Glasses?", Category: models.QuestionCategoryTrait, AnswerType: models.AnswerTypeBoolean,
		AskedAt: time.Now(),
	}
	require.NoError(suite.T(), suite.manager.Question().Create(ctx, q))

	pending, err := suite.manager.Question().FindPendingByRound(ctx, round.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), q.ID, pending.ID)

	answer := &models.Answer{QuestionID: q.ID, GameID: suite.game.ID, AnsweredByID: 2, AnswerValue: models.AnswerYes, AnsweredAt: time.Now()}
	require.NoError(suite.T(), suite.manager.Answer().Create(ctx, answer))

	_, err = suite.manager.Question().FindPendingByRound(ctx, round.ID)
	assert.ErrorIs(suite.T(), err, ErrRecordNotFound)

	// 每个问题最多一个回答
	dup := &models.Answer{QuestionID: q.ID, GameID: suite.game.ID, AnsweredByID: 3, AnswerValue: models.AnswerNo, AnsweredAt: time.Now()}
	assert.Error(suite.T(), suite.manager.Answer().Create(ctx, dup))

	asked, _ := suite.manager.Question().CountByAsker(ctx, suite.game.ID, 1)
	answered, _ := suite.manager.Answer().CountByAnswerer(ctx, suite.game.ID, 2)
	assert.Equal(suite.T(), int64(1), asked)
	assert.Equal(suite.T(), int64(1), answered)
}

// TestGuessCounts 测试猜对猜错计数
func (suite *RoundRepositoryTestSuite) TestGuessCounts() {
	ctx := context.Background()
	guesses := suite.manager.Guess()
	for _, correct := range []bool{false, false, true} {
		g := &models.Guess{RoundID: 1, GameID: suite.game.ID, GuessedByID: 1, TargetCharacterID: 7, IsCorrect: correct, GuessedAt: time.Now()}
		require.NoError(suite.T(), guesses.Create(ctx, g))
	}

	wrong, err := guesses.CountByGuesser(ctx, suite.game.ID, 1, false)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), wrong)

	right, err := guesses.CountByGuesser(ctx, suite.game.ID, 1, true)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), right)

	list, err := guesses.ListByGame(ctx, suite.game.ID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), list, 3)
}

// TestWithTransaction_Rollback 测试事务失败时全部回滚
func (suite *RoundRepositoryTestSuite) TestWithTransaction_Rollback() {
	ctx := context.Background()
	committed := false

	err := suite.manager.WithTransaction(ctx, func(tx *Transaction) error {
		tx.AfterCommit(func() { committed = true })
		round := &models.Round{GameID: suite.game.ID, RoundNumber: 1, ActivePlayerID: 1, State: models.RoundStateAwaitingQuestion, StartedAt: time.Now()}
		if err := tx.Round().Create(ctx, round); err != nil {
			return err
		}
		return errors.New("中途失败")
	})
	assert.Error(suite.T(), err)
	assert.False(suite.T(), committed)

	count, err := suite.manager.Round().CountByGame(ctx, suite.game.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(0), count)
}

// TestWithTransaction_Commit 测试事务提交与提交回调
func (suite *RoundRepositoryTestSuite) TestWithTransaction_Commit() {
	ctx := context.Background()
	committed := false

	err := suite.manager.WithTransaction(ctx, func(tx *Transaction) error {
		tx.AfterCommit(func() { committed = true })
		event := &models.GameEvent{GameID: suite.game.ID, Type: "gameStarted", Payload: []byte(`{"round":1}`)}
		return tx.GameEvent().Create(ctx, event)
	})
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), committed)

	events, err := suite.manager.GameEvent().ListByGame(ctx, suite.game.ID)
	assert.NoError(suite.T(), err)
	require.Len(suite.T(), events, 1)
	assert.Equal(suite.T(), "gameStarted", events[0].Type)
}

func TestRoundRepositorySuite(t *testing.T) {
	suite.Run(t, new(RoundRepositoryTestSuite))
}
