package game

import (
	"math/rand"

	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/models"
)

// SecretAssignmentEngine 秘密角色分配
type SecretAssignmentEngine struct {
	rng *lockedRand
}

// NewSecretAssignmentEngine 创建分配器，传入固定种子的随机源即可复现分配结果
func NewSecretAssignmentEngine(rng *rand.Rand) *SecretAssignmentEngine {
	return &SecretAssignmentEngine{rng: newLockedRand(rng)}
}

// Assign 洗牌后按玩家加入顺序一一分配角色，players 需已按加入顺序排列
func (e *SecretAssignmentEngine) Assign(gameID uint, players []*models.GamePlayer, characters []*models.Character) ([]*models.PlayerSecret, error) {
	if len(characters) < len(players) {
		return nil, apperrors.Newf(apperrors.ErrInsufficientCharacters, "需要 %d 个角色，只有 %d 个", len(players), len(characters))
	}

	shuffled := make([]*models.Character, len(characters))
	copy(shuffled, characters)
	e.shuffle(shuffled)

	secrets := make([]*models.PlayerSecret, 0, len(players))
	for i, p := range players {
		secrets = append(secrets, &models.PlayerSecret{
			GameID:       gameID,
			GamePlayerID: p.ID,
			CharacterID:  shuffled[i].ID,
			Status:       models.SecretStatusHidden,
		})
	}
	return secrets, nil
}

// Fisher–Yates
func (e *SecretAssignmentEngine) shuffle(cs []*models.Character) {
	for i := len(cs) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		cs[i], cs[j] = cs[j], cs[i]
	}
}
