package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/guess-game/internal/models"
)

func TestScoring_Awards(t *testing.T) {
	s := NewScoringEngine()
	p := &models.GamePlayer{}

	s.AwardQuestion(p)
	s.AwardAnswer(p)
	s.AwardGuess(p, false)
	assert.Equal(t, 15, p.Score)

	s.AwardGuess(p, true)
	assert.Equal(t, 1015, p.Score)
}

func TestScoring_AssignPlacements(t *testing.T) {
	base := time.Now()
	alice := &models.GamePlayer{BaseModel: models.BaseModel{ID: 1}, Score: 15, JoinedAt: base}
	bob := &models.GamePlayer{BaseModel: models.BaseModel{ID: 2}, Score: 1010, JoinedAt: base.Add(time.Second)}
	carol := &models.GamePlayer{BaseModel: models.BaseModel{ID: 3}, Score: 15, JoinedAt: base.Add(2 * time.Second)}

	ranked := NewScoringEngine().AssignPlacements([]*models.GamePlayer{carol, alice, bob})
	require.Len(t, ranked, 3)
	assert.Equal(t, []uint{2, 1, 3}, []uint{ranked[0].ID, ranked[1].ID, ranked[2].ID})
	assert.Equal(t, 1, *bob.Placement)
	assert.Equal(t, 2, *alice.Placement, "同分先加入者在前")
	assert.Equal(t, 3, *carol.Placement)
}
