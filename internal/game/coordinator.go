package game

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math/rand"
	"time"

	"github.com/wfunc/guess-game/internal/config"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/logger"
	"github.com/wfunc/guess-game/internal/models"
	"github.com/wfunc/guess-game/internal/repository"
	"github.com/wfunc/guess-game/internal/utils"
	"go.uber.org/zap"
)

// Coordinator 游戏会话协调器，对外暴露全部对局操作
//
// 同一房间的修改通过房间写锁串行执行，且每次修改都在一个数据库事务中完成；
// 推送在事务提交后、释放房间锁之前发出，保证客户端按修改顺序收到事件。
type Coordinator struct {
	repos       *repository.Manager
	locks       *RoomLocks
	lobby       *LobbyManager
	secrets     *SecretAssignmentEngine
	rounds      *RoundStateMachine
	views       *viewBuilder
	broadcaster Broadcaster
	logger      *zap.Logger
	now         func() time.Time
}

// CoordinatorConfig 协调器配置
type CoordinatorConfig struct {
	Repos       *repository.Manager
	Broadcaster Broadcaster
	Logger      *zap.Logger
	Game        config.GameConfig
	Rand        *rand.Rand
	Now         func() time.Time
}

// NewCoordinator 创建协调器
func NewCoordinator(cfg *CoordinatorConfig) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	// 房间码与洗牌各用一个随机源，避免互相影响序列
	codeRand := rand.New(rand.NewSource(rng.Int63()))
	shuffleRand := rand.New(rand.NewSource(rng.Int63()))

	lobby := NewLobbyManager(
		NewRoomCodeAllocator(codeRand, cfg.Game.RoomCodeAttempts),
		cfg.Game.DefaultMaxPlayers,
		cfg.Game.MinPlayersToStart,
		now,
	)
	return &Coordinator{
		repos:       cfg.Repos,
		locks:       NewRoomLocks(),
		lobby:       lobby,
		secrets:     NewSecretAssignmentEngine(shuffleRand),
		rounds:      NewRoundStateMachine(NewScoringEngine(), log, now),
		views:       &viewBuilder{lobby: lobby},
		broadcaster: cfg.Broadcaster,
		logger:      log,
		now:         now,
	}
}

// SetBroadcaster 设置广播器，websocket 层初始化完成后注入
func (c *Coordinator) SetBroadcaster(b Broadcaster) {
	c.broadcaster = b
}

// CreateGame 创建房间，创建者成为房主。并发创建撞上同一房间码时重试一次
func (c *Coordinator) CreateGame(ctx context.Context, req *CreateGameRequest) (*JoinResult, error) {
	result, err := c.createGame(ctx, req)
	if err != nil && repository.IsDuplicateKey(err) {
		c.logger.Warn("房间码冲突，重新分配", zap.Error(err))
		result, err = c.createGame(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	c.logger.Info("创建房间",
		zap.String("room_code", result.Lobby.RoomCode),
		zap.Uint("host_player_id", result.PlayerID))
	return result, nil
}

func (c *Coordinator) createGame(ctx context.Context, req *CreateGameRequest) (*JoinResult, error) {
	var result *JoinResult
	err := c.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		game, host, err := c.lobby.CreateLobby(ctx, tx, req)
		if err != nil {
			return err
		}
		view, err := c.views.Lobby(ctx, tx, game)
		if err != nil {
			return err
		}
		result = &JoinResult{PlayerID: host.ID, Lobby: view}
		return c.emit(ctx, tx, game, nil, &host.ID, EventLobbyUpdate, view)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// JoinGame 加入房间
func (c *Coordinator) JoinGame(ctx context.Context, req *JoinGameRequest) (*JoinResult, error) {
	code := utils.NormalizeRoomCode(req.RoomCode)
	unlock := c.locks.Lock(code)
	defer unlock()

	var result *JoinResult
	err := c.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		game, player, err := c.lobby.JoinLobby(ctx, tx, code, req.Joiner())
		if err != nil {
			return err
		}
		view, err := c.views.Lobby(ctx, tx, game)
		if err != nil {
			return err
		}
		result = &JoinResult{PlayerID: player.ID, Lobby: view}
		return c.emit(ctx, tx, game, nil, &player.ID, EventLobbyUpdate, view)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReconnectPlayer 已开局后按身份找回自己的玩家记录，只读
func (c *Coordinator) ReconnectPlayer(ctx context.Context, roomCode string, ref PlayerRef) (*models.GamePlayer, *GameStateView, error) {
	code := utils.NormalizeRoomCode(roomCode)
	unlock := c.locks.RLock(code)
	defer unlock()

	game, err := c.findGame(ctx, c.repos, code)
	if err != nil {
		return nil, nil, err
	}
	id, err := resolveIdentity(ctx, c.repos, ref)
	if err != nil {
		return nil, nil, err
	}
	player, err := c.repos.GamePlayer().FindByGameAndIdentity(ctx, game.ID, id.key())
	if err != nil {
		return nil, nil, lookupError(err, "玩家不在该房间")
	}
	if !player.IsActive() {
		return nil, nil, apperrors.New(apperrors.ErrGameNotJoinable, "玩家已离开，对局进行中无法重新加入")
	}
	view, err := c.views.State(ctx, c.repos, game)
	if err != nil {
		return nil, nil, err
	}
	return player, view, nil
}

// SetReady 设置准备状态
func (c *Coordinator) SetReady(ctx context.Context, roomCode string, playerID uint, ready bool) (*LobbyView, error) {
	code := utils.NormalizeRoomCode(roomCode)
	unlock := c.locks.Lock(code)
	defer unlock()

	var view *LobbyView
	err := c.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		game, err := c.findGame(ctx, tx, code)
		if err != nil {
			return err
		}
		if _, err := c.lobby.SetReady(ctx, tx, game, playerID, ready); err != nil {
			return err
		}
		if view, err = c.views.Lobby(ctx, tx, game); err != nil {
			return err
		}
		return c.emit(ctx, tx, game, nil, &playerID, EventLobbyUpdate, view)
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// StartGame 开局：分配秘密角色并开启第一回合
func (c *Coordinator) StartGame(ctx context.Context, roomCode string) (*LobbyView, error) {
	code := utils.NormalizeRoomCode(roomCode)
	unlock := c.locks.Lock(code)
	defer unlock()

	var view *LobbyView
	err := c.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		game, err := c.findGame(ctx, tx, code)
		if err != nil {
			return err
		}
		if game.Status != models.GameStatusLobby {
			return apperrors.Newf(apperrors.ErrGameStateError, "房间状态为 %s，无法开局", game.Status)
		}

		players, err := tx.GamePlayer().ListByGame(ctx, game.ID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询玩家失败")
		}
		if !c.lobby.CanStart(players) {
			return apperrors.New(apperrors.ErrCannotStart, "至少需要两名在场玩家且全部准备")
		}
		active := make([]*models.GamePlayer, 0, len(players))
		for _, p := range players {
			if p.IsActive() {
				active = append(active, p)
			}
		}

		characters, err := tx.CharacterSet().ListCharacters(ctx, game.CharacterSetID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询角色失败")
		}
		secrets, err := c.secrets.Assign(game.ID, active, characters)
		if err != nil {
			return err
		}
		if err := tx.PlayerSecret().BatchCreate(ctx, secrets); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "分配秘密角色失败")
		}

		if err := TransitionGame(game, models.GameStatusInProgress); err != nil {
			return err
		}
		now := c.now()
		game.StartedAt = &now
		if err := tx.Game().Update(ctx, game); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新游戏状态失败")
		}

		round, err := c.rounds.InitializeFirstRound(ctx, tx, game, active)
		if err != nil {
			return err
		}

		if view, err = c.views.Lobby(ctx, tx, game); err != nil {
			return err
		}
		state, err := c.views.State(ctx, tx, game)
		if err != nil {
			return err
		}
		return c.emit(ctx, tx, game, &round.ID, nil, EventGameStarted, state)
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// LeaveGame 玩家离开房间
func (c *Coordinator) LeaveGame(ctx context.Context, roomCode string, playerID uint) (*GameStateView, error) {
	code := utils.NormalizeRoomCode(roomCode)
	unlock := c.locks.Lock(code)
	defer unlock()

	var state *GameStateView
	err := c.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		game, err := c.findGame(ctx, tx, code)
		if err != nil {
			return err
		}
		player, changed, err := c.lobby.MarkLeft(ctx, tx, game, playerID)
		if err != nil {
			return err
		}

		var outcome *RoundOutcome
		if changed && game.Status == models.GameStatusInProgress {
			if outcome, err = c.rounds.HandleLeave(ctx, tx, game, player); err != nil {
				return err
			}
		}

		if state, err = c.views.State(ctx, tx, game); err != nil {
			return err
		}
		if !changed {
			return nil
		}

		left := &PlayerLeftView{PlayerID: player.ID, Username: player.Username, State: state}
		if err := c.emit(ctx, tx, game, nil, &player.ID, EventPlayerLeft, left); err != nil {
			return err
		}
		if game.Status == models.GameStatusLobby {
			lobby, err := c.views.Lobby(ctx, tx, game)
			if err != nil {
				return err
			}
			return c.emit(ctx, tx, game, nil, &player.ID, EventLobbyUpdate, lobby)
		}
		if outcome != nil && outcome.Ended {
			return c.emitGameOver(ctx, tx, game)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// GetLobby 获取大厅视图
func (c *Coordinator) GetLobby(ctx context.Context, roomCode string) (*LobbyView, error) {
	code := utils.NormalizeRoomCode(roomCode)
	unlock := c.locks.RLock(code)
	defer unlock()

	game, err := c.findGame(ctx, c.repos, code)
	if err != nil {
		return nil, err
	}
	return c.views.Lobby(ctx, c.repos, game)
}

// GetGameState 获取对局状态
func (c *Coordinator) GetGameState(ctx context.Context, roomCode string) (*GameStateView, error) {
	code := utils.NormalizeRoomCode(roomCode)
	unlock := c.locks.RLock(code)
	defer unlock()

	game, err := c.findGame(ctx, c.repos, code)
	if err != nil {
		return nil, err
	}
	return c.views.State(ctx, c.repos, game)
}

// GetGameOverResult 获取结算结果
func (c *Coordinator) GetGameOverResult(ctx context.Context, roomCode string) (*GameOverView, error) {
	code := utils.NormalizeRoomCode(roomCode)
	unlock := c.locks.RLock(code)
	defer unlock()

	game, err := c.findGame(ctx, c.repos, code)
	if err != nil {
		return nil, err
	}
	return c.views.GameOver(ctx, c.repos, game)
}

// GetMySecret 查看自己的秘密角色
func (c *Coordinator) GetMySecret(ctx context.Context, roomCode string, playerID uint) (*SecretView, error) {
	code := utils.NormalizeRoomCode(roomCode)
	unlock := c.locks.RLock(code)
	defer unlock()

	game, err := c.findGame(ctx, c.repos, code)
	if err != nil {
		return nil, err
	}
	return c.views.Secret(ctx, c.repos, game, playerID)
}

// ListPublicLobbies 公开房间列表
func (c *Coordinator) ListPublicLobbies(ctx context.Context, page, pageSize int) ([]*LobbyView, *repository.Pagination, error) {
	p := repository.NewPagination(page, pageSize)
	games, err := c.repos.Game().ListPublicLobbies(ctx, p)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询公开房间失败")
	}
	views := make([]*LobbyView, 0, len(games))
	for _, g := range games {
		v, err := c.views.Lobby(ctx, c.repos, g)
		if err != nil {
			return nil, nil, err
		}
		views = append(views, v)
	}
	return views, p, nil
}

// AskQuestion 提问
func (c *Coordinator) AskQuestion(ctx context.Context, roomCode string, req *AskQuestionRequest) (*QuestionView, error) {
	code := utils.NormalizeRoomCode(roomCode)
	unlock := c.locks.Lock(code)
	defer unlock()

	var view *QuestionView
	err := c.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		game, err := c.findGame(ctx, tx, code)
		if err != nil {
			return err
		}
		outcome, err := c.rounds.AskQuestion(ctx, tx, game, req)
		if err != nil {
			return err
		}
		state, err := c.views.State(ctx, tx, game)
		if err != nil {
			return err
		}
		view = &QuestionView{Question: outcome.Question, State: state}
		return c.emit(ctx, tx, game, &outcome.Question.RoundID, &req.PlayerID, EventQuestionAsked, view)
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SubmitAnswer 回答
func (c *Coordinator) SubmitAnswer(ctx context.Context, roomCode string, req *SubmitAnswerRequest) (*AnswerView, error) {
	code := utils.NormalizeRoomCode(roomCode)
	unlock := c.locks.Lock(code)
	defer unlock()

	var view *AnswerView
	err := c.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		game, err := c.findGame(ctx, tx, code)
		if err != nil {
			return err
		}
		outcome, err := c.rounds.SubmitAnswer(ctx, tx, game, req)
		if err != nil {
			return err
		}
		state, err := c.views.State(ctx, tx, game)
		if err != nil {
			return err
		}
		view = &AnswerView{Question: outcome.Question, Answer: outcome.Answer, State: state}
		if err := c.emit(ctx, tx, game, &outcome.Closed.ID, &req.PlayerID, EventAnswerSubmitted, view); err != nil {
			return err
		}
		if outcome.Ended {
			return c.emitGameOver(ctx, tx, game)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SubmitGuess 猜测
func (c *Coordinator) SubmitGuess(ctx context.Context, roomCode string, req *SubmitGuessRequest) (*GuessView, error) {
	code := utils.NormalizeRoomCode(roomCode)
	unlock := c.locks.Lock(code)
	defer unlock()

	var view *GuessView
	err := c.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		game, err := c.findGame(ctx, tx, code)
		if err != nil {
			return err
		}
		outcome, err := c.rounds.SubmitGuess(ctx, tx, game, req)
		if err != nil {
			return err
		}
		state, err := c.views.State(ctx, tx, game)
		if err != nil {
			return err
		}
		view = &GuessView{Guess: outcome.Guess, GameOver: outcome.Ended, State: state}
		if err := c.emit(ctx, tx, game, &outcome.Guess.RoundID, &req.PlayerID, EventGuessResult, view); err != nil {
			return err
		}
		if outcome.Ended {
			return c.emitGameOver(ctx, tx, game)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SkipExpiredTurns 跳过所有超时的回合，返回跳过的数量
func (c *Coordinator) SkipExpiredTurns(ctx context.Context) (int, error) {
	games, err := c.repos.Game().ListInProgress(ctx)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询对局失败")
	}

	skipped := 0
	for _, g := range games {
		if g.TurnTimerSeconds == nil {
			continue
		}
		ok, err := c.skipIfExpired(ctx, g.RoomCode)
		if err != nil {
			c.logger.Warn("跳过超时回合失败", zap.String("room_code", g.RoomCode), zap.Error(err))
			continue
		}
		if ok {
			skipped++
		}
	}
	return skipped, nil
}

func (c *Coordinator) skipIfExpired(ctx context.Context, code string) (bool, error) {
	unlock := c.locks.Lock(code)
	defer unlock()

	skipped := false
	err := c.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		// 拿到锁之后重新读取，期间状态可能已经变化
		game, err := c.findGame(ctx, tx, code)
		if err != nil {
			return err
		}
		if game.Status != models.GameStatusInProgress {
			return nil
		}
		round, err := tx.Round().FindCurrent(ctx, game.ID)
		if err != nil {
			return integrityError(err, "对局中没有进行中的回合")
		}
		deadline := TurnDeadline(game, round)
		if deadline == nil || c.now().Before(*deadline) {
			return nil
		}

		outcome, err := c.rounds.SkipTurn(ctx, tx, game)
		if err != nil {
			return err
		}
		skipped = true

		state, err := c.views.State(ctx, tx, game)
		if err != nil {
			return err
		}
		view := &TurnSkippedView{SkippedPlayerID: round.ActivePlayerID, RoundNumber: round.RoundNumber, State: state}
		if err := c.emit(ctx, tx, game, &round.ID, &round.ActivePlayerID, EventTurnSkipped, view); err != nil {
			return err
		}
		if outcome.Ended {
			return c.emitGameOver(ctx, tx, game)
		}
		return nil
	})
	return skipped, err
}

// FindAbandonedLobbies 找出超时且没有任何连接订阅的大厅
func (c *Coordinator) FindAbandonedLobbies(ctx context.Context, olderThan time.Time, conns RoomConnections) ([]*models.Game, error) {
	games, err := c.repos.Game().ListStaleLobbies(ctx, olderThan)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询过期大厅失败")
	}
	abandoned := make([]*models.Game, 0, len(games))
	for _, g := range games {
		if conns != nil && conns.RoomConnectionCount(g.RoomCode) > 0 {
			continue
		}
		abandoned = append(abandoned, g)
	}
	return abandoned, nil
}

func (c *Coordinator) emitGameOver(ctx context.Context, tx *repository.Transaction, game *models.Game) error {
	over, err := c.views.GameOver(ctx, tx, game)
	if err != nil {
		return err
	}
	return c.emit(ctx, tx, game, nil, game.WinnerPlayerID, EventGameOver, over)
}

// emit 在事务内写入事件审计，提交后再广播；广播失败只记录日志
func (c *Coordinator) emit(ctx context.Context, tx *repository.Transaction, game *models.Game, roundID, playerID *uint, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrMessageFormat, "序列化事件失败")
	}
	record := &models.GameEvent{
		GameID:   game.ID,
		RoundID:  roundID,
		PlayerID: playerID,
		Type:     event,
		Payload:  data,
	}
	if err := tx.GameEvent().Create(ctx, record); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "写入事件失败")
	}

	roomCode := game.RoomCode
	tx.AfterCommit(func() {
		logger.LogGameEvent(event, roomCode, map[string]interface{}{"game_id": game.ID})
		if c.broadcaster == nil {
			return
		}
		if err := c.broadcaster.BroadcastToRoom(roomCode, event, payload); err != nil {
			c.logger.Warn("广播失败",
				zap.String("room_code", roomCode),
				zap.String("event", event),
				zap.Error(err))
		}
	})
	return nil
}

func (c *Coordinator) findGame(ctx context.Context, s Store, code string) (*models.Game, error) {
	game, err := s.Game().FindByRoomCode(ctx, code)
	if err != nil {
		if stderrors.Is(err, repository.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrNotFound, "房间 %s 不存在", code)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return game, nil
}
