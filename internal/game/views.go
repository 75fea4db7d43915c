package game

import (
	"context"
	stderrors "errors"
	"math"
	"sort"
	"time"

	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/models"
	"github.com/wfunc/guess-game/internal/repository"
)

// PlayerView 玩家视图
type PlayerView struct {
	ID        uint       `json:"id"`
	UserID    *uint      `json:"user_id,omitempty"`
	Username  string     `json:"username"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	Role      string     `json:"role"`
	IsReady   bool       `json:"is_ready"`
	IsActive  bool       `json:"is_active"`
	Score     int        `json:"score"`
	Placement *int       `json:"placement,omitempty"`
	JoinedAt  time.Time  `json:"joined_at"`
	LeftAt    *time.Time `json:"left_at,omitempty"`
}

func newPlayerView(p *models.GamePlayer) PlayerView {
	return PlayerView{
		ID:        p.ID,
		UserID:    p.UserID,
		Username:  p.Username,
		AvatarURL: p.AvatarURL,
		Role:      p.Role,
		IsReady:   p.IsReady,
		IsActive:  p.IsActive(),
		Score:     p.Score,
		Placement: p.Placement,
		JoinedAt:  p.JoinedAt,
		LeftAt:    p.LeftAt,
	}
}

// LobbyView 大厅视图，只列出在场玩家
type LobbyView struct {
	GameID           uint                   `json:"game_id"`
	RoomCode         string                 `json:"room_code"`
	Visibility       string                 `json:"visibility"`
	Status           string                 `json:"status"`
	CharacterSetID   string                 `json:"character_set_id"`
	MaxPlayers       *int                   `json:"max_players,omitempty"`
	TurnTimerSeconds *int                   `json:"turn_timer_seconds,omitempty"`
	RuleConfig       map[string]interface{} `json:"rule_config,omitempty"`
	HostPlayerID     *uint                  `json:"host_player_id,omitempty"`
	Players          []PlayerView           `json:"players"`
	CanStart         bool                   `json:"can_start"`
	CreatedAt        time.Time              `json:"created_at"`
}

// RoundView 回合视图
type RoundView struct {
	ID                uint       `json:"id"`
	RoundNumber       int        `json:"round_number"`
	State             string     `json:"state"`
	ActivePlayerID    uint       `json:"active_player_id"`
	StartedAt         time.Time  `json:"started_at"`
	TurnDeadline      *time.Time `json:"turn_deadline,omitempty"`
	PendingQuestionID *uint      `json:"pending_question_id,omitempty"`
}

// GameStateView 对局状态视图
type GameStateView struct {
	GameID         uint         `json:"game_id"`
	RoomCode       string       `json:"room_code"`
	Status         string       `json:"status"`
	CharacterSetID string       `json:"character_set_id"`
	HostPlayerID   *uint        `json:"host_player_id,omitempty"`
	StartedAt      *time.Time   `json:"started_at,omitempty"`
	EndedAt        *time.Time   `json:"ended_at,omitempty"`
	WinnerPlayerID *uint        `json:"winner_player_id,omitempty"`
	Round          *RoundView   `json:"round,omitempty"`
	Players        []PlayerView `json:"players"`
}

// QuestionView 提问结果
type QuestionView struct {
	Question *models.Question `json:"question"`
	State    *GameStateView   `json:"state"`
}

// AnswerView 回答结果
type AnswerView struct {
	Question *models.Question `json:"question"`
	Answer   *models.Answer   `json:"answer"`
	State    *GameStateView   `json:"state"`
}

// GuessView 猜测结果
type GuessView struct {
	Guess    *models.Guess  `json:"guess"`
	GameOver bool           `json:"game_over"`
	State    *GameStateView `json:"state"`
}

// TurnSkippedView 回合超时被跳过
type TurnSkippedView struct {
	SkippedPlayerID uint           `json:"skipped_player_id"`
	RoundNumber     int            `json:"round_number"`
	State           *GameStateView `json:"state"`
}

// PlayerLeftView 玩家离开
type PlayerLeftView struct {
	PlayerID uint           `json:"player_id"`
	Username string         `json:"username"`
	State    *GameStateView `json:"state"`
}

// PlayerResult 结算时的玩家统计
type PlayerResult struct {
	PlayerView
	QuestionsAsked    int64  `json:"questions_asked"`
	QuestionsAnswered int64  `json:"questions_answered"`
	CorrectGuesses    int64  `json:"correct_guesses"`
	IncorrectGuesses  int64  `json:"incorrect_guesses"`
	TimePlayedMs      int64  `json:"time_played_ms"`
	CharacterID       uint   `json:"character_id,omitempty"`
	CharacterName     string `json:"character_name,omitempty"`
}

// GameOverView 结算视图
type GameOverView struct {
	GameID         uint           `json:"game_id"`
	RoomCode       string         `json:"room_code"`
	Status         string         `json:"status"`
	WinnerID       *uint          `json:"winner_id,omitempty"`
	WinnerUsername string         `json:"winner_username,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	TotalRounds    int64          `json:"total_rounds"`
	Players        []PlayerResult `json:"players"`
}

// SecretView 玩家自己的秘密角色
type SecretView struct {
	PlayerID      uint                   `json:"player_id"`
	CharacterID   uint                   `json:"character_id"`
	CharacterName string                 `json:"character_name"`
	ImageURL      string                 `json:"image_url,omitempty"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
	Status        string                 `json:"status"`
}

// viewBuilder 从仓储读取构建视图，调用方需持有房间锁
type viewBuilder struct {
	lobby *LobbyManager
}

func (b *viewBuilder) Lobby(ctx context.Context, s Store, game *models.Game) (*LobbyView, error) {
	players, err := s.GamePlayer().ListByGame(ctx, game.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询玩家失败")
	}

	view := &LobbyView{
		GameID:           game.ID,
		RoomCode:         game.RoomCode,
		Visibility:       game.Visibility,
		Status:           game.Status,
		CharacterSetID:   game.CharacterSetID,
		MaxPlayers:       game.MaxPlayers,
		TurnTimerSeconds: game.TurnTimerSeconds,
		RuleConfig:       game.RuleConfig,
		HostPlayerID:     game.HostPlayerID,
		Players:          make([]PlayerView, 0, len(players)),
		CreatedAt:        game.CreatedAt,
	}
	for _, p := range players {
		if p.IsActive() {
			view.Players = append(view.Players, newPlayerView(p))
		}
	}
	view.CanStart = game.Status == models.GameStatusLobby && b.lobby.CanStart(players)
	return view, nil
}

func (b *viewBuilder) State(ctx context.Context, s Store, game *models.Game) (*GameStateView, error) {
	players, err := s.GamePlayer().ListByGame(ctx, game.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询玩家失败")
	}

	view := &GameStateView{
		GameID:         game.ID,
		RoomCode:       game.RoomCode,
		Status:         game.Status,
		CharacterSetID: game.CharacterSetID,
		HostPlayerID:   game.HostPlayerID,
		StartedAt:      game.StartedAt,
		EndedAt:        game.EndedAt,
		WinnerPlayerID: game.WinnerPlayerID,
		Players:        make([]PlayerView, 0, len(players)),
	}
	for _, p := range players {
		view.Players = append(view.Players, newPlayerView(p))
	}

	if game.Status != models.GameStatusInProgress {
		return view, nil
	}
	round, err := s.Round().FindCurrent(ctx, game.ID)
	if err != nil {
		return nil, integrityError(err, "对局中没有进行中的回合")
	}
	view.Round = &RoundView{
		ID:             round.ID,
		RoundNumber:    round.RoundNumber,
		State:          round.State,
		ActivePlayerID: round.ActivePlayerID,
		StartedAt:      round.StartedAt,
		TurnDeadline:   TurnDeadline(game, round),
	}
	if round.State == models.RoundStateAwaitingAnswer {
		pending, err := s.Question().FindPendingByRound(ctx, round.ID)
		if err != nil && !stderrors.Is(err, repository.ErrRecordNotFound) {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}
		if pending != nil {
			view.Round.PendingQuestionID = &pending.ID
		}
	}
	return view, nil
}

func (b *viewBuilder) GameOver(ctx context.Context, s Store, game *models.Game) (*GameOverView, error) {
	if !game.IsFinished() {
		return nil, apperrors.Newf(apperrors.ErrGameStateError, "游戏尚未结束，当前状态 %s", game.Status)
	}

	players, err := s.GamePlayer().ListByGame(ctx, game.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询玩家失败")
	}
	totalRounds, err := s.Round().CountByGame(ctx, game.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "统计回合失败")
	}
	secrets, err := s.PlayerSecret().ListByGame(ctx, game.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询秘密角色失败")
	}
	characters, err := s.CharacterSet().ListCharacters(ctx, game.CharacterSetID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询角色失败")
	}
	names := make(map[uint]string, len(characters))
	for _, c := range characters {
		names[c.ID] = c.Name
	}
	secretOf := make(map[uint]uint, len(secrets))
	for _, sec := range secrets {
		secretOf[sec.GamePlayerID] = sec.CharacterID
	}

	view := &GameOverView{
		GameID:      game.ID,
		RoomCode:    game.RoomCode,
		Status:      game.Status,
		WinnerID:    game.WinnerPlayerID,
		StartedAt:   game.StartedAt,
		EndedAt:     game.EndedAt,
		TotalRounds: totalRounds,
		Players:     make([]PlayerResult, 0, len(players)),
	}
	if game.StartedAt != nil && game.EndedAt != nil {
		view.DurationMs = game.EndedAt.Sub(*game.StartedAt).Milliseconds()
	}

	for _, p := range players {
		if game.WinnerPlayerID != nil && *game.WinnerPlayerID == p.ID {
			view.WinnerUsername = p.Username
		}
		result := PlayerResult{PlayerView: newPlayerView(p), TimePlayedMs: timePlayed(game, p)}
		if result.QuestionsAsked, err = s.Question().CountByAsker(ctx, game.ID, p.ID); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}
		if result.QuestionsAnswered, err = s.Answer().CountByAnswerer(ctx, game.ID, p.ID); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}
		if result.CorrectGuesses, err = s.Guess().CountByGuesser(ctx, game.ID, p.ID, true); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}
		if result.IncorrectGuesses, err = s.Guess().CountByGuesser(ctx, game.ID, p.ID, false); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}
		if id, ok := secretOf[p.ID]; ok {
			result.CharacterID = id
			result.CharacterName = names[id]
		}
		view.Players = append(view.Players, result)
	}

	sort.SliceStable(view.Players, func(i, j int) bool {
		return placementOf(view.Players[i]) < placementOf(view.Players[j])
	})
	return view, nil
}

func placementOf(r PlayerResult) int {
	if r.Placement == nil {
		return math.MaxInt32
	}
	return *r.Placement
}

// timePlayed 从开局（或更晚的加入时间）到离开（或结束）的时长
func timePlayed(game *models.Game, p *models.GamePlayer) int64 {
	if game.StartedAt == nil {
		return 0
	}
	from := *game.StartedAt
	if p.JoinedAt.After(from) {
		from = p.JoinedAt
	}
	var to time.Time
	switch {
	case p.LeftAt != nil:
		to = *p.LeftAt
	case game.EndedAt != nil:
		to = *game.EndedAt
	default:
		return 0
	}
	if to.Before(from) {
		return 0
	}
	return to.Sub(from).Milliseconds()
}

func (b *viewBuilder) Secret(ctx context.Context, s Store, game *models.Game, playerID uint) (*SecretView, error) {
	if _, err := findMember(ctx, s, game.ID, playerID); err != nil {
		return nil, err
	}
	if game.Status == models.GameStatusLobby {
		return nil, apperrors.New(apperrors.ErrNotFound, "游戏尚未开始，还没有分配角色")
	}
	secret, err := s.PlayerSecret().FindByPlayer(ctx, playerID)
	if err != nil {
		return nil, lookupError(err, "玩家没有秘密角色")
	}
	character, err := s.CharacterSet().FindCharacter(ctx, secret.CharacterID)
	if err != nil {
		return nil, integrityError(err, "秘密角色对应的角色不存在")
	}
	return &SecretView{
		PlayerID:      playerID,
		CharacterID:   character.ID,
		CharacterName: character.Name,
		ImageURL:      character.ImageURL,
		Attributes:    character.Attributes,
		Status:        secret.Status,
	}, nil
}
