package game

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/models"
	"github.com/wfunc/guess-game/internal/repository"
	"go.uber.org/zap"
)

// 回合事件
const (
	RoundEventAsk     = "ask"
	RoundEventAnswer  = "answer"
	RoundEventGuess   = "guess"
	RoundEventTimeout = "timeout"
	RoundEventLeave   = "leave"
	RoundEventEnd     = "end"
)

// MaxQuestionLength 问题最大长度（字符）
const MaxQuestionLength = 500

// RoundTransition 回合状态转换定义
type RoundTransition struct {
	From  string
	Event string
	To    string
}

var roundTransitions = []RoundTransition{
	{models.RoundStateAwaitingQuestion, RoundEventAsk, models.RoundStateAwaitingAnswer},
	{models.RoundStateAwaitingAnswer, RoundEventAnswer, models.RoundStateClosed},
	{models.RoundStateAwaitingQuestion, RoundEventGuess, models.RoundStateClosed},
	{models.RoundStateAwaitingAnswer, RoundEventGuess, models.RoundStateClosed},
	{models.RoundStateAwaitingQuestion, RoundEventTimeout, models.RoundStateClosed},
	{models.RoundStateAwaitingAnswer, RoundEventTimeout, models.RoundStateClosed},
	{models.RoundStateAwaitingQuestion, RoundEventLeave, models.RoundStateClosed},
	{models.RoundStateAwaitingAnswer, RoundEventLeave, models.RoundStateClosed},
	{models.RoundStateAwaitingQuestion, RoundEventEnd, models.RoundStateClosed},
	{models.RoundStateAwaitingAnswer, RoundEventEnd, models.RoundStateClosed},
}

// 游戏状态只能单向推进
var gameTransitions = map[string][]string{
	models.GameStatusLobby:      {models.GameStatusInProgress, models.GameStatusAborted},
	models.GameStatusInProgress: {models.GameStatusCompleted, models.GameStatusAborted},
}

// RoundOutcome 一次回合推进的结果
type RoundOutcome struct {
	Question *models.Question
	Answer   *models.Answer
	Guess    *models.Guess
	Closed   *models.Round
	Next     *models.Round
	Ended    bool
}

// RoundStateMachine 回合状态机：提问、回答、猜测、轮转
type RoundStateMachine struct {
	transitions map[string]RoundTransition
	scoring     *ScoringEngine
	logger      *zap.Logger
	now         func() time.Time
}

// NewRoundStateMachine 创建回合状态机
func NewRoundStateMachine(scoring *ScoringEngine, logger *zap.Logger, now func() time.Time) *RoundStateMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	sm := &RoundStateMachine{
		transitions: make(map[string]RoundTransition),
		scoring:     scoring,
		logger:      logger,
		now:         now,
	}
	for _, t := range roundTransitions {
		sm.transitions[sm.transitionKey(t.From, t.Event)] = t
	}
	return sm
}

func (sm *RoundStateMachine) transitionKey(state, event string) string {
	return fmt.Sprintf("%s:%s", state, event)
}

// CanTransition 检查回合在当前状态下能否响应事件
func (sm *RoundStateMachine) CanTransition(state, event string) bool {
	_, ok := sm.transitions[sm.transitionKey(state, event)]
	return ok
}

// Trigger 推进回合状态，进入 closed 时记录结束时间与耗时
func (sm *RoundStateMachine) Trigger(round *models.Round, event string) error {
	t, ok := sm.transitions[sm.transitionKey(round.State, event)]
	if !ok {
		return apperrors.Newf(apperrors.ErrGameStateError, "无效的回合状态转换: 状态=%s, 事件=%s", round.State, event)
	}

	from := round.State
	if t.To == models.RoundStateClosed {
		round.Close(sm.now())
	} else {
		round.State = t.To
	}

	sm.logger.Debug("回合状态转换",
		zap.Uint("game_id", round.GameID),
		zap.Int("round", round.RoundNumber),
		zap.String("from", from),
		zap.String("to", round.State),
		zap.String("event", event))
	return nil
}

// TransitionGame 推进游戏状态
func TransitionGame(game *models.Game, to string) error {
	for _, allowed := range gameTransitions[game.Status] {
		if allowed == to {
			game.Status = to
			return nil
		}
	}
	return apperrors.Newf(apperrors.ErrGameStateError, "游戏状态不能从 %s 变为 %s", game.Status, to)
}

// InitializeFirstRound 开启第一回合，由最早加入的在场玩家先手
func (sm *RoundStateMachine) InitializeFirstRound(ctx context.Context, s Store, game *models.Game, players []*models.GamePlayer) (*models.Round, error) {
	var first *models.GamePlayer
	for _, p := range players {
		if p.IsActive() {
			first = p
			break
		}
	}
	if first == nil {
		return nil, apperrors.New(apperrors.ErrCannotStart, "没有在场玩家")
	}
	return sm.openRound(ctx, s, game, 1, first.ID)
}

func (sm *RoundStateMachine) openRound(ctx context.Context, s Store, game *models.Game, number int, activePlayerID uint) (*models.Round, error) {
	round := &models.Round{
		GameID:         game.ID,
		RoundNumber:    number,
		ActivePlayerID: activePlayerID,
		State:          models.RoundStateAwaitingQuestion,
		StartedAt:      sm.now(),
	}
	if err := s.Round().Create(ctx, round); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建回合失败")
	}
	return round, nil
}

// AskQuestion 当前行动玩家提问
func (sm *RoundStateMachine) AskQuestion(ctx context.Context, s Store, game *models.Game, req *AskQuestionRequest) (*RoundOutcome, error) {
	round, err := sm.currentRound(ctx, s, game)
	if err != nil {
		return nil, err
	}
	if round.ActivePlayerID != req.PlayerID {
		return nil, apperrors.New(apperrors.ErrNotYourTurn, "not your turn")
	}
	if round.State != models.RoundStateAwaitingQuestion {
		return nil, apperrors.Newf(apperrors.ErrGameStateError, "回合状态为 %s，不能提问", round.State)
	}

	// 游戏状态优先于输入校验
	text := strings.TrimSpace(req.QuestionText)
	if text == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "问题不能为空")
	}
	if utf8.RuneCountInString(text) > MaxQuestionLength {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "问题不能超过 %d 个字符", MaxQuestionLength)
	}
	switch req.Category {
	case models.QuestionCategoryTrait, models.QuestionCategoryDirect, models.QuestionCategoryMeta:
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "无效的问题分类: %s", req.Category)
	}
	switch req.AnswerType {
	case models.AnswerTypeBoolean, models.AnswerTypeText:
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "无效的回答类型: %s", req.AnswerType)
	}

	asker, err := activeMember(ctx, s, game.ID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	if req.TargetPlayerID != nil {
		if *req.TargetPlayerID == asker.ID {
			return nil, apperrors.New(apperrors.ErrInvalidParam, "不能向自己提问")
		}
		if _, err := activeMember(ctx, s, game.ID, *req.TargetPlayerID); err != nil {
			return nil, err
		}
	}

	question := &models.Question{
		RoundID:        round.ID,
		GameID:         game.ID,
		AskedByID:      asker.ID,
		TargetPlayerID: req.TargetPlayerID,
		QuestionText:   text,
		Category:       req.Category,
		AnswerType:     req.AnswerType,
		AskedAt:        sm.now(),
	}
	if err := s.Question().Create(ctx, question); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "保存问题失败")
	}

	sm.scoring.AwardQuestion(asker)
	if err := s.GamePlayer().Update(ctx, asker); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新得分失败")
	}

	if err := sm.Trigger(round, RoundEventAsk); err != nil {
		return nil, err
	}
	if err := s.Round().Update(ctx, round); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新回合失败")
	}

	return &RoundOutcome{Question: question, Next: round}, nil
}

// SubmitAnswer 回答当前回合的问题，随后轮到下一位玩家
func (sm *RoundStateMachine) SubmitAnswer(ctx context.Context, s Store, game *models.Game, req *SubmitAnswerRequest) (*RoundOutcome, error) {
	if req.QuestionID == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "question_id 不能为空")
	}

	round, err := sm.currentRound(ctx, s, game)
	if err != nil {
		return nil, err
	}

	question, err := s.Question().FindByID(ctx, req.QuestionID)
	if err != nil {
		return nil, lookupError(err, "问题不存在")
	}
	if question.GameID != game.ID || question.RoundID != round.ID {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "问题不属于当前回合")
	}
	if _, err := s.Answer().FindByQuestion(ctx, question.ID); err == nil {
		return nil, apperrors.New(apperrors.ErrAlreadyAnswered, "already answered")
	} else if !stderrors.Is(err, repository.ErrRecordNotFound) {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if round.State != models.RoundStateAwaitingAnswer {
		return nil, apperrors.Newf(apperrors.ErrGameStateError, "回合状态为 %s，不能回答", round.State)
	}

	answerer, err := activeMember(ctx, s, game.ID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	if answerer.ID == question.AskedByID {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "不能回答自己的问题")
	}
	if question.TargetPlayerID != nil && *question.TargetPlayerID != answerer.ID {
		return nil, apperrors.New(apperrors.ErrNotYourTurn, "只有被提问的玩家可以回答")
	}

	value, text, err := normalizeAnswer(question.AnswerType, req.AnswerValue, req.AnswerText)
	if err != nil {
		return nil, err
	}

	now := sm.now()
	latency := now.Sub(question.AskedAt).Milliseconds()
	answer := &models.Answer{
		QuestionID:   question.ID,
		GameID:       game.ID,
		AnsweredByID: answerer.ID,
		AnswerValue:  value,
		AnswerText:   text,
		LatencyMs:    &latency,
		AnsweredAt:   now,
	}
	if err := s.Answer().Create(ctx, answer); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "保存回答失败")
	}

	sm.scoring.AwardAnswer(answerer)
	if err := s.GamePlayer().Update(ctx, answerer); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新得分失败")
	}

	outcome, err := sm.advance(ctx, s, game, round, RoundEventAnswer)
	if err != nil {
		return nil, err
	}
	outcome.Question = question
	outcome.Answer = answer
	return outcome, nil
}

func normalizeAnswer(answerType, value, text string) (string, string, error) {
	value = strings.TrimSpace(value)
	text = strings.TrimSpace(text)
	if answerType == models.AnswerTypeBoolean {
		v := strings.ToLower(value)
		switch v {
		case models.AnswerYes, models.AnswerNo, models.AnswerUnsure:
			return v, text, nil
		}
		return "", "", apperrors.Newf(apperrors.ErrInvalidParam, "无效的回答: %q", value)
	}
	if value == "" {
		value = text
	}
	if value == "" {
		return "", "", apperrors.New(apperrors.ErrInvalidParam, "回答不能为空")
	}
	if utf8.RuneCountInString(value) > MaxQuestionLength || utf8.RuneCountInString(text) > MaxQuestionLength {
		return "", "", apperrors.Newf(apperrors.ErrInvalidParam, "回答不能超过 %d 个字符", MaxQuestionLength)
	}
	return value, text, nil
}

// SubmitGuess 猜测对手的秘密角色，猜中立即获胜
func (sm *RoundStateMachine) SubmitGuess(ctx context.Context, s Store, game *models.Game, req *SubmitGuessRequest) (*RoundOutcome, error) {
	if req.TargetCharacterID == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "target_character_id 不能为空")
	}

	round, err := sm.currentRound(ctx, s, game)
	if err != nil {
		return nil, err
	}

	guesser, err := activeMember(ctx, s, game.ID, req.PlayerID)
	if err != nil {
		return nil, err
	}

	character, err := s.CharacterSet().FindCharacter(ctx, req.TargetCharacterID)
	if err != nil {
		return nil, lookupError(err, "角色不存在")
	}
	if character.CharacterSetID != game.CharacterSetID {
		return nil, apperrors.New(apperrors.ErrNotFound, "角色不在本局角色集中")
	}

	var secret *models.PlayerSecret
	if req.TargetPlayerID != nil {
		if *req.TargetPlayerID == guesser.ID {
			return nil, apperrors.New(apperrors.ErrInvalidParam, "不能猜自己")
		}
		if _, err := activeMember(ctx, s, game.ID, *req.TargetPlayerID); err != nil {
			return nil, err
		}
		secret, err = s.PlayerSecret().FindByPlayer(ctx, *req.TargetPlayerID)
		if err != nil {
			return nil, integrityError(err, "玩家缺少秘密角色")
		}
	}

	now := sm.now()
	correct := secret != nil && secret.CharacterID == character.ID
	latency := now.Sub(round.StartedAt).Milliseconds()
	guess := &models.Guess{
		RoundID:           round.ID,
		GameID:            game.ID,
		GuessedByID:       guesser.ID,
		TargetPlayerID:    req.TargetPlayerID,
		TargetCharacterID: character.ID,
		IsCorrect:         correct,
		LatencyMs:         &latency,
		GuessedAt:         now,
	}
	if err := s.Guess().Create(ctx, guess); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "保存猜测失败")
	}

	if !correct {
		outcome, err := sm.advance(ctx, s, game, round, RoundEventGuess)
		if err != nil {
			return nil, err
		}
		outcome.Guess = guess
		return outcome, nil
	}

	if secret.Status == models.SecretStatusHidden {
		secret.Status = models.SecretStatusRevealed
		secret.RevealedAt = &now
		if err := s.PlayerSecret().Update(ctx, secret); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "揭示秘密角色失败")
		}
	}

	sm.scoring.AwardGuess(guesser, true)
	if err := s.GamePlayer().Update(ctx, guesser); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新得分失败")
	}

	if err := sm.Finish(ctx, s, game, round, models.GameStatusCompleted, &guesser.ID); err != nil {
		return nil, err
	}
	return &RoundOutcome{Guess: guess, Closed: round, Ended: true}, nil
}

// SkipTurn 回合超时，跳过当前玩家
func (sm *RoundStateMachine) SkipTurn(ctx context.Context, s Store, game *models.Game) (*RoundOutcome, error) {
	round, err := sm.currentRound(ctx, s, game)
	if err != nil {
		return nil, err
	}
	return sm.advance(ctx, s, game, round, RoundEventTimeout)
}

// HandleLeave 对局中玩家离开：轮到他或者他是待回答问题的对象时直接进入下一回合
func (sm *RoundStateMachine) HandleLeave(ctx context.Context, s Store, game *models.Game, leaver *models.GamePlayer) (*RoundOutcome, error) {
	round, err := sm.currentRound(ctx, s, game)
	if err != nil {
		return nil, err
	}

	holdsTurn := round.ActivePlayerID == leaver.ID
	if !holdsTurn && round.State == models.RoundStateAwaitingAnswer {
		pending, err := s.Question().FindPendingByRound(ctx, round.ID)
		if err != nil && !stderrors.Is(err, repository.ErrRecordNotFound) {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}
		if pending != nil && pending.TargetPlayerID != nil && *pending.TargetPlayerID == leaver.ID {
			holdsTurn = true
		}
	}
	if holdsTurn {
		return sm.advance(ctx, s, game, round, RoundEventLeave)
	}

	players, err := s.GamePlayer().ListByGame(ctx, game.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询玩家失败")
	}
	status, winner, err := sm.detectEnd(ctx, s, game, players)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return &RoundOutcome{Next: round}, nil
	}
	if err := sm.Finish(ctx, s, game, round, status, winner); err != nil {
		return nil, err
	}
	return &RoundOutcome{Closed: round, Ended: true}, nil
}

// advance 关闭当前回合，判定胜负，未结束则由下一位在场玩家开启新回合
func (sm *RoundStateMachine) advance(ctx context.Context, s Store, game *models.Game, round *models.Round, event string) (*RoundOutcome, error) {
	if err := sm.Trigger(round, event); err != nil {
		return nil, err
	}
	if err := s.Round().Update(ctx, round); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "关闭回合失败")
	}

	players, err := s.GamePlayer().ListByGame(ctx, game.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询玩家失败")
	}

	status, winner, err := sm.detectEnd(ctx, s, game, players)
	if err != nil {
		return nil, err
	}
	if status != "" {
		if err := sm.finishWith(ctx, s, game, players, status, winner); err != nil {
			return nil, err
		}
		return &RoundOutcome{Closed: round, Ended: true}, nil
	}

	next := NextActivePlayer(players, round.ActivePlayerID)
	if next == nil {
		return nil, apperrors.New(apperrors.ErrDataIntegrity, "找不到下一位玩家")
	}
	nextRound, err := sm.openRound(ctx, s, game, round.RoundNumber+1, next.ID)
	if err != nil {
		return nil, err
	}
	return &RoundOutcome{Closed: round, Next: nextRound}, nil
}

// detectEnd 返回结束状态与获胜者，游戏继续时状态为空
func (sm *RoundStateMachine) detectEnd(ctx context.Context, s Store, game *models.Game, players []*models.GamePlayer) (string, *uint, error) {
	var active []*models.GamePlayer
	for _, p := range players {
		if p.IsActive() {
			active = append(active, p)
		}
	}
	switch len(active) {
	case 0:
		return models.GameStatusAborted, nil, nil
	case 1:
		return models.GameStatusCompleted, &active[0].ID, nil
	}

	secrets, err := s.PlayerSecret().ListByGame(ctx, game.ID)
	if err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询秘密角色失败")
	}
	hidden := make(map[uint]bool, len(secrets))
	for _, sec := range secrets {
		hidden[sec.GamePlayerID] = sec.Status == models.SecretStatusHidden
	}
	var last *models.GamePlayer
	count := 0
	for _, p := range active {
		if hidden[p.ID] {
			last = p
			count++
		}
	}
	if count == 1 {
		return models.GameStatusCompleted, &last.ID, nil
	}
	return "", nil, nil
}

// Finish 结束游戏：关闭未结束的回合，写入获胜者与名次
func (sm *RoundStateMachine) Finish(ctx context.Context, s Store, game *models.Game, round *models.Round, status string, winner *uint) error {
	if round != nil && round.State != models.RoundStateClosed {
		event := RoundEventEnd
		if status == models.GameStatusCompleted && winner != nil && sm.CanTransition(round.State, RoundEventGuess) {
			event = RoundEventGuess
		}
		if err := sm.Trigger(round, event); err != nil {
			return err
		}
		if err := s.Round().Update(ctx, round); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "关闭回合失败")
		}
	}

	players, err := s.GamePlayer().ListByGame(ctx, game.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询玩家失败")
	}
	return sm.finishWith(ctx, s, game, players, status, winner)
}

func (sm *RoundStateMachine) finishWith(ctx context.Context, s Store, game *models.Game, players []*models.GamePlayer, status string, winner *uint) error {
	if err := TransitionGame(game, status); err != nil {
		return err
	}
	now := sm.now()
	game.EndedAt = &now
	game.WinnerPlayerID = winner
	if err := s.Game().Update(ctx, game); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "结束游戏失败")
	}

	sm.scoring.AssignPlacements(players)
	if err := s.GamePlayer().BatchUpdateScores(ctx, players); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "写入名次失败")
	}

	sm.logger.Info("游戏结束",
		zap.String("room_code", game.RoomCode),
		zap.String("status", status),
		zap.Any("winner", winner))
	return nil
}

// NextActivePlayer 按加入顺序从当前玩家之后找下一位在场玩家，到末尾后回绕
func NextActivePlayer(players []*models.GamePlayer, currentID uint) *models.GamePlayer {
	idx := -1
	for i, p := range players {
		if p.ID == currentID {
			idx = i
			break
		}
	}
	n := len(players)
	for step := 1; step <= n; step++ {
		p := players[(idx+step+n)%n]
		if p.IsActive() {
			return p
		}
	}
	return nil
}

// TurnDeadline 回合截止时间，未设置回合计时返回 nil
func TurnDeadline(game *models.Game, round *models.Round) *time.Time {
	if game.TurnTimerSeconds == nil || round == nil || round.State == models.RoundStateClosed {
		return nil
	}
	deadline := round.StartedAt.Add(time.Duration(*game.TurnTimerSeconds) * time.Second)
	return &deadline
}

func (sm *RoundStateMachine) currentRound(ctx context.Context, s Store, game *models.Game) (*models.Round, error) {
	if game.Status != models.GameStatusInProgress {
		return nil, apperrors.Newf(apperrors.ErrGameStateError, "游戏状态为 %s", game.Status)
	}
	round, err := s.Round().FindCurrent(ctx, game.ID)
	if err != nil {
		return nil, integrityError(err, "对局中没有进行中的回合")
	}
	return round, nil
}

// activeMember 查找本局在场玩家，已离开的玩家视为参数错误
func activeMember(ctx context.Context, s Store, gameID, playerID uint) (*models.GamePlayer, error) {
	player, err := findMember(ctx, s, gameID, playerID)
	if err != nil {
		return nil, err
	}
	if !player.IsActive() {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "玩家 %d 已离开", playerID)
	}
	return player, nil
}

func integrityError(err error, details string) error {
	if stderrors.Is(err, repository.ErrRecordNotFound) {
		return apperrors.New(apperrors.ErrDataIntegrity, details)
	}
	return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
}
