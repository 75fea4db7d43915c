package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/middleware"
	"github.com/wfunc/guess-game/internal/utils"
	"go.uber.org/zap"
)

// QR 码尺寸范围（像素）
const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

// GameHandler 游戏接口处理器
type GameHandler struct {
	coordinator   *game.Coordinator
	publicBaseURL string
	logger        *zap.Logger
}

// NewGameHandler 创建游戏接口处理器
func NewGameHandler(coordinator *game.Coordinator, publicBaseURL string, log *zap.Logger) *GameHandler {
	return &GameHandler{
		coordinator:   coordinator,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        log,
	}
}

// CreateGame 创建房间
// @Router /api/v1/games [post]
func (h *GameHandler) CreateGame(c *gin.Context) {
	var req game.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	// 登录用户以令牌身份为准
	if uid := middleware.GetUserIDPtr(c); uid != nil {
		req.HostUserID = uid
	}

	result, err := h.coordinator.CreateGame(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

// ListGames 公开房间列表
// @Router /api/v1/games [get]
func (h *GameHandler) ListGames(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	lobbies, p, err := h.coordinator.ListPublicLobbies(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, &ListResponse{
		Items:    lobbies,
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
	})
}

// JoinGame 加入房间
// @Router /api/v1/games/join [post]
func (h *GameHandler) JoinGame(c *gin.Context) {
	var req game.JoinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	if uid := middleware.GetUserIDPtr(c); uid != nil {
		req.UserID = uid
	}

	result, err := h.coordinator.JoinGame(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// GetLobby 大厅信息
// @Router /api/v1/games/{code}/lobby [get]
func (h *GameHandler) GetLobby(c *gin.Context) {
	lobby, err := h.coordinator.GetLobby(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, lobby)
}

// StartGame 开局
// @Router /api/v1/games/{code}/start [post]
func (h *GameHandler) StartGame(c *gin.Context) {
	lobby, err := h.coordinator.StartGame(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, lobby)
}

// SetReady 设置准备状态
// @Router /api/v1/games/{code}/ready [post]
func (h *GameHandler) SetReady(c *gin.Context) {
	var req game.ReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	lobby, err := h.coordinator.SetReady(c.Request.Context(), c.Param("code"), req.PlayerID, req.IsReady)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, lobby)
}

// LeaveGame 离开房间
// @Router /api/v1/games/{code}/leave [post]
func (h *GameHandler) LeaveGame(c *gin.Context) {
	var req game.LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	state, err := h.coordinator.LeaveGame(c.Request.Context(), c.Param("code"), req.PlayerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, state)
}

// AskQuestion 提问
// @Router /api/v1/games/{code}/questions [post]
func (h *GameHandler) AskQuestion(c *gin.Context) {
	var req game.AskQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	view, err := h.coordinator.AskQuestion(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, view)
}

// SubmitAnswer 回答
// @Router /api/v1/games/{code}/answers [post]
func (h *GameHandler) SubmitAnswer(c *gin.Context) {
	var req game.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	view, err := h.coordinator.SubmitAnswer(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, view)
}

// SubmitGuess 猜测
// @Router /api/v1/games/{code}/guesses [post]
func (h *GameHandler) SubmitGuess(c *gin.Context) {
	var req game.SubmitGuessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	view, err := h.coordinator.SubmitGuess(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, view)
}

// GetState 对局状态
// @Router /api/v1/games/{code}/state [get]
func (h *GameHandler) GetState(c *gin.Context) {
	state, err := h.coordinator.GetGameState(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, state)
}

// GetResults 结算结果
// @Router /api/v1/games/{code}/results [get]
func (h *GameHandler) GetResults(c *gin.Context) {
	result, err := h.coordinator.GetGameOverResult(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// GetSecret 查看自己的秘密角色
// @Router /api/v1/games/{code}/players/{playerId}/secret [get]
func (h *GameHandler) GetSecret(c *gin.Context) {
	playerID, err := strconv.ParseUint(c.Param("playerId"), 10, 64)
	if err != nil || playerID == 0 {
		respondError(c, h.logger, apperrors.New(apperrors.ErrInvalidParam, "无效的玩家ID"))
		return
	}
	secret, err := h.coordinator.GetMySecret(c.Request.Context(), c.Param("code"), uint(playerID))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, secret)
}

// GetQRCode 房间加入二维码（PNG）
// @Router /api/v1/games/{code}/qr [get]
func (h *GameHandler) GetQRCode(c *gin.Context) {
	lobby, err := h.coordinator.GetLobby(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	size := defaultQRSize
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < minQRSize || n > maxQRSize {
			respondError(c, h.logger, apperrors.Newf(apperrors.ErrInvalidParam, "size 必须在 %d 到 %d 之间", minQRSize, maxQRSize))
			return
		}
		size = n
	}

	png, err := qrcode.Encode(h.JoinURL(lobby.RoomCode), qrcode.Medium, size)
	if err != nil {
		respondError(c, h.logger, apperrors.Wrap(err, apperrors.ErrUnknown, "生成二维码失败"))
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

// JoinURL 房间加入链接
func (h *GameHandler) JoinURL(roomCode string) string {
	return fmt.Sprintf("%s/join/%s", h.publicBaseURL, utils.NormalizeRoomCode(roomCode))
}
