package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/models"
)

func TestRoundStateMachine_Transitions(t *testing.T) {
	sm := NewRoundStateMachine(NewScoringEngine(), nil, nil)

	tests := []struct {
		name  string
		state string
		event string
		want  string
		ok    bool
	}{
		{"提问", models.RoundStateAwaitingQuestion, RoundEventAsk, models.RoundStateAwaitingAnswer, true},
		{"回答", models.RoundStateAwaitingAnswer, RoundEventAnswer, models.RoundStateClosed, true},
		{"猜测", models.RoundStateAwaitingQuestion, RoundEventGuess, models.RoundStateClosed, true},
		{"等待回答时猜测", models.RoundStateAwaitingAnswer, RoundEventGuess, models.RoundStateClosed, true},
		{"超时", models.RoundStateAwaitingAnswer, RoundEventTimeout, models.RoundStateClosed, true},
		{"重复提问", models.RoundStateAwaitingAnswer, RoundEventAsk, "", false},
		{"未提问先回答", models.RoundStateAwaitingQuestion, RoundEventAnswer, "", false},
		{"已关闭", models.RoundStateClosed, RoundEventEnd, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			round := &models.Round{State: tt.state, StartedAt: time.Now().Add(-time.Second)}
			assert.Equal(t, tt.ok, sm.CanTransition(tt.state, tt.event))

			err := sm.Trigger(round, tt.event)
			if !tt.ok {
				assert.True(t, apperrors.Is(err, apperrors.ErrGameStateError))
				assert.Equal(t, tt.state, round.State)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, round.State)
			if tt.want == models.RoundStateClosed {
				require.NotNil(t, round.EndedAt)
				require.NotNil(t, round.DurationMs)
				assert.GreaterOrEqual(t, *round.DurationMs, int64(1000))
			}
		})
	}
}

func TestTransitionGame(t *testing.T) {
	game := &models.Game{Status: models.GameStatusLobby}
	assert.NoError(t, TransitionGame(game, models.GameStatusInProgress))
	assert.NoError(t, TransitionGame(game, models.GameStatusCompleted))

	err := TransitionGame(game, models.GameStatusInProgress)
	assert.True(t, apperrors.Is(err, apperrors.ErrGameStateError))
	assert.Equal(t, models.GameStatusCompleted, game.Status)
}

func TestNextActivePlayer(t *testing.T) {
	left := time.Now()
	players := []*models.GamePlayer{
		{BaseModel: models.BaseModel{ID: 1}},
		{BaseModel: models.BaseModel{ID: 2}, LeftAt: &left},
		{BaseModel: models.BaseModel{ID: 3}},
		{BaseModel: models.BaseModel{ID: 4}},
	}

	assert.Equal(t, uint(3), NextActivePlayer(players, 1).ID, "跳过已离开的玩家")
	assert.Equal(t, uint(4), NextActivePlayer(players, 3).ID)
	assert.Equal(t, uint(1), NextActivePlayer(players, 4).ID, "末尾回绕")
	assert.Equal(t, uint(3), NextActivePlayer(players, 2).ID, "当前玩家已离开时从他的位置继续")
	assert.Equal(t, uint(1), NextActivePlayer(players, 99).ID)

	for _, p := range players {
		p.LeftAt = &left
	}
	assert.Nil(t, NextActivePlayer(players, 1))
}

func TestTurnDeadline(t *testing.T) {
	start := time.Now()
	round := &models.Round{State: models.RoundStateAwaitingQuestion, StartedAt: start}

	assert.Nil(t, TurnDeadline(&models.Game{}, round))

	secs := 30
	deadline := TurnDeadline(&models.Game{TurnTimerSeconds: &secs}, round)
	require.NotNil(t, deadline)
	assert.Equal(t, start.Add(30*time.Second), *deadline)

	round.State = models.RoundStateClosed
	assert.Nil(t, TurnDeadline(&models.Game{TurnTimerSeconds: &secs}, round))
}

func TestNormalizeAnswer(t *testing.T) {
	v, _, err := normalizeAnswer(models.AnswerTypeBoolean, " YES ", "")
	assert.NoError(t, err)
	assert.Equal(t, models.AnswerYes, v)

	_, _, err = normalizeAnswer(models.AnswerTypeBoolean, "maybe", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))

	v, text, err := normalizeAnswer(models.AnswerTypeText, "", "red hair")
	assert.NoError(t, err)
	assert.Equal(t, "red hair", v)
	assert.Equal(t, "red hair", text)

	_, _, err = normalizeAnswer(models.AnswerTypeText, "  ", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}
