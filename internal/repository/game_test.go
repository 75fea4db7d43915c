package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/guess-game/internal/models"
	"gorm.io/gorm"
)

// GameRepositoryTestSuite 游戏仓储测试套件
type GameRepositoryTestSuite struct {
	suite.Suite
	db       *gorm.DB
	gameRepo GameRepository
}

func (suite *GameRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.gameRepo = NewGameRepository(suite.db)
}

func (suite *GameRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

func (suite *GameRepositoryTestSuite) newGame(code, status, visibility string) *models.Game {
	game := &models.Game{
		RoomCode:       code,
		Status:         status,
		Visibility:     visibility,
		CharacterSetID: "cs1",
		RuleConfig:     map[string]interface{}{"allow_text": true},
	}
	require.NoError(suite.T(), suite.gameRepo.Create(context.Background(), game))
	return game
}

// TestGameRepository_Create 测试创建并按房间码查找
func (suite *GameRepositoryTestSuite) TestGameRepository_Create() {
	ctx := context.Background()
	game := suite.newGame("ABCDE", models.GameStatusLobby, models.VisibilityPrivate)
	assert.NotZero(suite.T(), game.ID)

	found, err := suite.gameRepo.FindByRoomCode(ctx, "ABCDE")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), game.ID, found.ID)
	assert.Equal(suite.T(), true, found.RuleConfig["allow_text"])

	exists, err := suite.gameRepo.ExistsByRoomCode(ctx, "ABCDE")
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), exists)

	exists, err = suite.gameRepo.ExistsByRoomCode(ctx, "ZZZZZ")
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), exists)
}

// TestGameRepository_DuplicateRoomCode 测试房间码唯一约束
func (suite *GameRepositoryTestSuite) TestGameRepository_DuplicateRoomCode() {
	ctx := context.Background()
	suite.newGame("ABCDE", models.GameStatusLobby, models.VisibilityPrivate)

	err := suite.gameRepo.Create(ctx, &models.Game{
		RoomCode:       "ABCDE",
		Status:         models.GameStatusLobby,
		Visibility:     models.VisibilityPrivate,
		CharacterSetID: "cs1",
	})
	require.Error(suite.T(), err)
	assert.True(suite.T(), IsDuplicateKey(err))
	assert.True(suite.T(), IsDuplicateKey(fmt.Errorf("创建房间失败: %w", err)))

	assert.False(suite.T(), IsDuplicateKey(nil))
	assert.False(suite.T(), IsDuplicateKey(ErrRecordNotFound))
	assert.True(suite.T(), IsDuplicateKey(gorm.ErrDuplicatedKey))
}

// TestGameRepository_NotFound 测试不存在的记录
func (suite *GameRepositoryTestSuite) TestGameRepository_NotFound() {
	_, err := suite.gameRepo.FindByRoomCode(context.Background(), "NOPE2")
	assert.ErrorIs(suite.T(), err, ErrRecordNotFound)

	_, err = suite.gameRepo.FindByID(context.Background(), 999)
	assert.ErrorIs(suite.T(), err, ErrRecordNotFound)
}

// TestGameRepository_ListPublicLobbies 测试公开房间分页
func (suite *GameRepositoryTestSuite) TestGameRepository_ListPublicLobbies() {
	suite.newGame("AAAAA", models.GameStatusLobby, models.VisibilityPublic)
	suite.newGame("BBBBB", models.GameStatusLobby, models.VisibilityPublic)
	suite.newGame("CCCCC", models.GameStatusLobby, models.VisibilityPrivate)
	suite.newGame("DDDDD", models.GameStatusInProgress, models.VisibilityPublic)

	p := NewPagination(1, 1)
	games, err := suite.gameRepo.ListPublicLobbies(context.Background(), p)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), games, 1)
	assert.Equal(suite.T(), int64(2), p.Total)
}

// TestGameRepository_ListStaleLobbies 测试过期房间查询
func (suite *GameRepositoryTestSuite) TestGameRepository_ListStaleLobbies() {
	ctx := context.Background()
	old := &models.Game{RoomCode: "OLDAA", Status: models.GameStatusLobby, CharacterSetID: "cs1"}
	old.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(suite.T(), suite.gameRepo.Create(ctx, old))
	suite.newGame("NEWAA", models.GameStatusLobby, models.VisibilityPrivate)

	games, err := suite.gameRepo.ListStaleLobbies(ctx, time.Now().Add(-30*time.Minute))
	assert.NoError(suite.T(), err)
	require.Len(suite.T(), games, 1)
	assert.Equal(suite.T(), "OLDAA", games[0].RoomCode)
}

// TestGameRepository_ListInProgress 只返回进行中的游戏
func (suite *GameRepositoryTestSuite) TestGameRepository_ListInProgress() {
	ctx := context.Background()
	suite.newGame("ABCDE", models.GameStatusInProgress, models.VisibilityPrivate)
	suite.newGame("FGHJK", models.GameStatusLobby, models.VisibilityPrivate)

	games, err := suite.gameRepo.ListInProgress(ctx)
	assert.NoError(suite.T(), err)
	require.Len(suite.T(), games, 1)
	assert.Equal(suite.T(), "ABCDE", games[0].RoomCode)
}

func TestGameRepositorySuite(t *testing.T) {
	suite.Run(t, new(GameRepositoryTestSuite))
}
