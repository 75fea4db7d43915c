package game

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/models"
	"github.com/wfunc/guess-game/internal/repository"
	"github.com/wfunc/guess-game/internal/utils"
)

// MinPlayersToStart 开局最少人数
const MinPlayersToStart = 2

// LobbyManager 房间大厅：建房、加入、准备、离开
type LobbyManager struct {
	allocator         *RoomCodeAllocator
	defaultMaxPlayers int
	minPlayers        int
	now               func() time.Time
}

// NewLobbyManager 创建大厅管理器
func NewLobbyManager(allocator *RoomCodeAllocator, defaultMaxPlayers, minPlayers int, now func() time.Time) *LobbyManager {
	if minPlayers < MinPlayersToStart {
		minPlayers = MinPlayersToStart
	}
	if now == nil {
		now = time.Now
	}
	return &LobbyManager{
		allocator:         allocator,
		defaultMaxPlayers: defaultMaxPlayers,
		minPlayers:        minPlayers,
		now:               now,
	}
}

// CreateLobby 创建房间及房主
func (m *LobbyManager) CreateLobby(ctx context.Context, s Store, req *CreateGameRequest) (*models.Game, *models.GamePlayer, error) {
	if err := m.validateCreate(req); err != nil {
		return nil, nil, err
	}

	if _, err := s.CharacterSet().FindByID(ctx, req.CharacterSetID); err != nil {
		return nil, nil, lookupError(err, "角色集不存在: "+req.CharacterSetID)
	}

	identity, err := resolveIdentity(ctx, s, req.Host())
	if err != nil {
		return nil, nil, err
	}
	if identity.username == "" {
		return nil, nil, apperrors.New(apperrors.ErrMissingDisplayName, "房主缺少昵称")
	}

	code, err := m.allocator.Allocate(ctx, s.Game())
	if err != nil {
		return nil, nil, err
	}

	game := &models.Game{
		RoomCode:         code,
		Visibility:       req.Visibility,
		Status:           models.GameStatusLobby,
		CharacterSetID:   req.CharacterSetID,
		MaxPlayers:       req.MaxPlayers,
		TurnTimerSeconds: req.TurnTimerSeconds,
		RuleConfig:       req.RuleConfig,
	}
	if err := s.Game().Create(ctx, game); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建房间失败")
	}

	host := identity.newPlayer(game.ID, models.PlayerRoleHost, m.now())
	host.IsReady = true
	if err := s.GamePlayer().Create(ctx, host); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建房主失败")
	}

	game.HostPlayerID = &host.ID
	if err := s.Game().Update(ctx, game); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新房主失败")
	}
	return game, host, nil
}

func (m *LobbyManager) validateCreate(req *CreateGameRequest) error {
	if strings.TrimSpace(req.CharacterSetID) == "" {
		return apperrors.New(apperrors.ErrInvalidParam, "character_set_id 不能为空")
	}
	switch req.Visibility {
	case "":
		req.Visibility = models.VisibilityPrivate
	case models.VisibilityPublic, models.VisibilityPrivate:
	default:
		return apperrors.Newf(apperrors.ErrInvalidParam, "无效的可见性: %s", req.Visibility)
	}
	if req.MaxPlayers != nil && *req.MaxPlayers < m.minPlayers {
		return apperrors.Newf(apperrors.ErrInvalidParam, "max_players 不能小于 %d", m.minPlayers)
	}
	if req.MaxPlayers == nil && m.defaultMaxPlayers > 0 {
		max := m.defaultMaxPlayers
		req.MaxPlayers = &max
	}
	if req.TurnTimerSeconds != nil && *req.TurnTimerSeconds <= 0 {
		return apperrors.New(apperrors.ErrInvalidParam, "turn_timer_seconds 必须大于0")
	}
	return nil
}

// JoinLobby 加入房间；同一身份重复加入是幂等的，离开过的玩家会被重新激活
func (m *LobbyManager) JoinLobby(ctx context.Context, s Store, roomCode string, ref PlayerRef) (*models.Game, *models.GamePlayer, error) {
	game, err := s.Game().FindByRoomCode(ctx, utils.NormalizeRoomCode(roomCode))
	if err != nil {
		return nil, nil, lookupError(err, "房间不存在")
	}
	if game.Status != models.GameStatusLobby {
		return nil, nil, apperrors.Newf(apperrors.ErrGameNotJoinable, "房间状态为 %s", game.Status)
	}

	identity, err := resolveIdentity(ctx, s, ref)
	if err != nil {
		return nil, nil, err
	}

	var existing *models.GamePlayer
	if identity.userID != nil || identity.username != "" {
		existing, err = s.GamePlayer().FindByGameAndIdentity(ctx, game.ID, identity.key())
		if err != nil && !stderrors.Is(err, repository.ErrRecordNotFound) {
			return nil, nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询玩家失败")
		}
	}
	if existing != nil && existing.IsActive() {
		return game, existing, nil
	}

	if game.MaxPlayers != nil {
		active, err := s.GamePlayer().CountActive(ctx, game.ID)
		if err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "统计玩家失败")
		}
		if active >= int64(*game.MaxPlayers) {
			return nil, nil, apperrors.New(apperrors.ErrGameFull, "Game is full")
		}
	}

	if identity.username == "" {
		return nil, nil, apperrors.New(apperrors.ErrMissingDisplayName, "加入者缺少昵称")
	}

	if existing != nil {
		existing.LeftAt = nil
		existing.IsReady = false
		existing.Username = identity.username
		existing.AvatarURL = identity.avatarURL
		if err := s.GamePlayer().Update(ctx, existing); err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "重新激活玩家失败")
		}
		if err := m.claimVacantHost(ctx, s, game, existing); err != nil {
			return nil, nil, err
		}
		return game, existing, nil
	}

	player := identity.newPlayer(game.ID, models.PlayerRolePlayer, m.now())
	if err := s.GamePlayer().Create(ctx, player); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建玩家失败")
	}
	if err := m.claimVacantHost(ctx, s, game, player); err != nil {
		return nil, nil, err
	}
	return game, player, nil
}

// claimVacantHost 房主已不在场时由加入者接任
func (m *LobbyManager) claimVacantHost(ctx context.Context, s Store, game *models.Game, joiner *models.GamePlayer) error {
	if game.HostPlayerID != nil && *game.HostPlayerID != joiner.ID {
		host, err := s.GamePlayer().FindByID(ctx, *game.HostPlayerID)
		switch {
		case err == nil && host.IsActive():
			return nil
		case err == nil:
			host.Role = models.PlayerRolePlayer
			if err := s.GamePlayer().Update(ctx, host); err != nil {
				return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "转移房主失败")
			}
		case !stderrors.Is(err, repository.ErrRecordNotFound):
			return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询房主失败")
		}
	}

	joiner.Role = models.PlayerRoleHost
	joiner.IsReady = true
	if err := s.GamePlayer().Update(ctx, joiner); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "转移房主失败")
	}
	game.HostPlayerID = &joiner.ID
	if err := s.Game().Update(ctx, game); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "转移房主失败")
	}
	return nil
}

// SetReady 设置准备状态，只允许在大厅阶段
func (m *LobbyManager) SetReady(ctx context.Context, s Store, game *models.Game, playerID uint, ready bool) (*models.GamePlayer, error) {
	player, err := findMember(ctx, s, game.ID, playerID)
	if err != nil {
		return nil, err
	}
	if game.Status != models.GameStatusLobby {
		return nil, apperrors.Newf(apperrors.ErrGameStateError, "房间状态为 %s，无法修改准备状态", game.Status)
	}
	if !player.IsActive() {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "玩家已离开")
	}

	player.IsReady = ready
	if err := s.GamePlayer().Update(ctx, player); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新准备状态失败")
	}
	return player, nil
}

// MarkLeft 标记玩家离开，重复调用保留第一次的离开时间；大厅阶段房主离开时房主身份交给最早加入的在场玩家
func (m *LobbyManager) MarkLeft(ctx context.Context, s Store, game *models.Game, playerID uint) (*models.GamePlayer, bool, error) {
	player, err := findMember(ctx, s, game.ID, playerID)
	if err != nil {
		return nil, false, err
	}
	if !player.IsActive() {
		return player, false, nil
	}

	now := m.now()
	player.LeftAt = &now
	player.IsReady = false

	if game.Status == models.GameStatusLobby && player.Role == models.PlayerRoleHost {
		if err := m.transferHost(ctx, s, game, player); err != nil {
			return nil, false, err
		}
	}

	if err := s.GamePlayer().Update(ctx, player); err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "标记离开失败")
	}
	return player, true, nil
}

func (m *LobbyManager) transferHost(ctx context.Context, s Store, game *models.Game, leaver *models.GamePlayer) error {
	players, err := s.GamePlayer().ListByGame(ctx, game.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询玩家失败")
	}

	var next *models.GamePlayer
	for _, p := range players {
		if p.ID != leaver.ID && p.IsActive() {
			next = p
			break
		}
	}
	if next == nil {
		// 最后一个人离开，下一个加入者接任
		return nil
	}

	leaver.Role = models.PlayerRolePlayer
	next.Role = models.PlayerRoleHost
	next.IsReady = true
	if err := s.GamePlayer().Update(ctx, next); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "转移房主失败")
	}
	game.HostPlayerID = &next.ID
	if err := s.Game().Update(ctx, game); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "转移房主失败")
	}
	return nil
}

// CanStart 至少 minPlayers 名在场玩家且全部已准备
func (m *LobbyManager) CanStart(players []*models.GamePlayer) bool {
	active := 0
	for _, p := range players {
		if !p.IsActive() {
			continue
		}
		if !p.IsReady {
			return false
		}
		active++
	}
	return active >= m.minPlayers
}

// identity 解析后的玩家身份
type identity struct {
	userID    *uint
	username  string
	avatarURL string
}

func (i identity) key() string {
	return models.IdentityKeyFor(i.userID, i.username)
}

func (i identity) newPlayer(gameID uint, role string, joinedAt time.Time) *models.GamePlayer {
	return &models.GamePlayer{
		GameID:      gameID,
		UserID:      i.userID,
		IdentityKey: i.key(),
		Username:    i.username,
		AvatarURL:   i.avatarURL,
		Role:        role,
		JoinedAt:    joinedAt,
	}
}

// resolveIdentity 登录用户从用户表补全昵称和头像，请求中给出的值优先
func resolveIdentity(ctx context.Context, s Store, ref PlayerRef) (identity, error) {
	id := identity{
		userID:    ref.UserID,
		username:  strings.TrimSpace(ref.Username),
		avatarURL: strings.TrimSpace(ref.AvatarURL),
	}
	if ref.UserID == nil {
		return id, nil
	}

	user, err := s.User().FindByID(ctx, *ref.UserID)
	if err != nil {
		return id, lookupError(err, "用户不存在")
	}
	if id.username == "" {
		id.username = user.Username
	}
	if id.avatarURL == "" {
		id.avatarURL = user.AvatarURL
	}
	return id, nil
}

// findMember 查找属于指定房间的玩家
func findMember(ctx context.Context, s Store, gameID, playerID uint) (*models.GamePlayer, error) {
	player, err := s.GamePlayer().FindByID(ctx, playerID)
	if err != nil {
		return nil, lookupError(err, "玩家不存在")
	}
	if player.GameID != gameID {
		return nil, apperrors.New(apperrors.ErrNotFound, "玩家不在该房间")
	}
	return player, nil
}

// lookupError 仓储查询错误转换为应用错误
func lookupError(err error, notFound string) error {
	if stderrors.Is(err, repository.ErrRecordNotFound) {
		return apperrors.New(apperrors.ErrNotFound, notFound)
	}
	return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
}
