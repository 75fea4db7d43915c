package game

import (
	"sort"

	"github.com/wfunc/guess-game/internal/models"
)

// 得分规则
const (
	PointsAskQuestion  = 10
	PointsSubmitAnswer = 5
	PointsCorrectGuess = 1000
)

// ScoringEngine 计分与名次
type ScoringEngine struct{}

// NewScoringEngine 创建计分引擎
func NewScoringEngine() *ScoringEngine {
	return &ScoringEngine{}
}

// AwardQuestion 提问得分
func (s *ScoringEngine) AwardQuestion(p *models.GamePlayer) {
	p.Score += PointsAskQuestion
}

// AwardAnswer 回答得分
func (s *ScoringEngine) AwardAnswer(p *models.GamePlayer) {
	p.Score += PointsSubmitAnswer
}

// AwardGuess 猜测得分，猜错不加不减
func (s *ScoringEngine) AwardGuess(p *models.GamePlayer, correct bool) {
	if correct {
		p.Score += PointsCorrectGuess
	}
}

// AssignPlacements 按分数降序排名，同分时先加入者在前，返回排序后的新切片
func (s *ScoringEngine) AssignPlacements(players []*models.GamePlayer) []*models.GamePlayer {
	ranked := make([]*models.GamePlayer, len(players))
	copy(ranked, players)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})
	for i, p := range ranked {
		placement := i + 1
		p.Placement = &placement
	}
	return ranked
}
