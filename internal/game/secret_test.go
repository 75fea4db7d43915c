package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/models"
)

func testPlayers(n int) []*models.GamePlayer {
	players := make([]*models.GamePlayer, n)
	for i := range players {
		players[i] = &models.GamePlayer{BaseModel: models.BaseModel{ID: uint(i + 1)}}
	}
	return players
}

func testCharacters(n int) []*models.Character {
	chars := make([]*models.Character, n)
	for i := range chars {
		chars[i] = &models.Character{BaseModel: models.BaseModel{ID: uint(100 + i)}}
	}
	return chars
}

func TestAssign_Insufficient(t *testing.T) {
	engine := NewSecretAssignmentEngine(rand.New(rand.NewSource(1)))
	_, err := engine.Assign(1, testPlayers(3), testCharacters(2))
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientCharacters))
}

func TestAssign_DistinctHidden(t *testing.T) {
	engine := NewSecretAssignmentEngine(rand.New(rand.NewSource(1)))
	players := testPlayers(4)
	chars := testCharacters(10)

	secrets, err := engine.Assign(9, players, chars)
	require.NoError(t, err)
	require.Len(t, secrets, len(players))

	used := make(map[uint]bool)
	for i, s := range secrets {
		assert.Equal(t, uint(9), s.GameID)
		assert.Equal(t, players[i].ID, s.GamePlayerID, "按加入顺序分配")
		assert.Equal(t, models.SecretStatusHidden, s.Status)
		assert.False(t, used[s.CharacterID], "角色重复使用")
		used[s.CharacterID] = true
	}

	// 输入切片不会被打乱
	for i, c := range chars {
		assert.Equal(t, uint(100+i), c.ID)
	}
}

func TestAssign_DeterministicWithSeed(t *testing.T) {
	a, err := NewSecretAssignmentEngine(rand.New(rand.NewSource(99))).Assign(1, testPlayers(3), testCharacters(8))
	require.NoError(t, err)
	b, err := NewSecretAssignmentEngine(rand.New(rand.NewSource(99))).Assign(1, testPlayers(3), testCharacters(8))
	require.NoError(t, err)

	for i := range a {
		assert.Equal(t, a[i].CharacterID, b[i].CharacterID)
	}
}

func TestAssign_ExactCount(t *testing.T) {
	secrets, err := NewSecretAssignmentEngine(rand.New(rand.NewSource(3))).Assign(1, testPlayers(2), testCharacters(2))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{100, 101}, []uint{secrets[0].CharacterID, secrets[1].CharacterID})
}
