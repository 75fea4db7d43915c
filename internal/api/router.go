package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/guess-game/internal/config"
	"github.com/wfunc/guess-game/internal/database"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/middleware"
	"github.com/wfunc/guess-game/internal/service"
	"github.com/wfunc/guess-game/internal/utils"
	ws "github.com/wfunc/guess-game/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies 路由依赖
type Dependencies struct {
	DB          *gorm.DB
	Coordinator *game.Coordinator
	Hub         *ws.Hub
	JWT         *utils.JWTManager
	Users       service.UserService
	Config      *config.Config
	Logger      *zap.Logger
}

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	hub            *ws.Hub
	gameHandler    *GameHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	wsPath         string
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(deps *Dependencies) *Router {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.CORS())

	wsPath := deps.Config.WebSocket.Path
	if wsPath == "" {
		wsPath = "/ws"
	}

	auth := middleware.NewAuthMiddleware(deps.JWT)
	if deps.Users != nil {
		auth.WithIdentitySync(deps.Users)
	}

	router := &Router{
		engine:         engine,
		db:             deps.DB,
		hub:            deps.Hub,
		gameHandler:    NewGameHandler(deps.Coordinator, deps.Config.Server.PublicBaseURL, log),
		wsHandler:      NewWebSocketHandler(deps.Hub, deps.Config.WebSocket, log),
		authMiddleware: auth,
		wsPath:         wsPath,
		log:            log,
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	// 推送通道，令牌可选
	r.engine.GET(r.wsPath, r.authMiddleware.OptionalAuth(), r.wsHandler.Connect)

	v1 := r.engine.Group("/api/v1")
	v1.Use(r.authMiddleware.OptionalAuth())
	{
		games := v1.Group("/games")
		{
			games.POST("", r.gameHandler.CreateGame)
			games.GET("", r.gameHandler.ListGames)
			games.POST("/join", r.gameHandler.JoinGame)

			room := games.Group("/:code")
			{
				room.GET("/lobby", r.gameHandler.GetLobby)
				room.POST("/start", r.gameHandler.StartGame)
				room.POST("/ready", r.gameHandler.SetReady)
				room.POST("/leave", r.gameHandler.LeaveGame)
				room.POST("/questions", r.gameHandler.AskQuestion)
				room.POST("/answers", r.gameHandler.SubmitAnswer)
				room.POST("/guesses", r.gameHandler.SubmitGuess)
				room.GET("/state", r.gameHandler.GetState)
				room.GET("/results", r.gameHandler.GetResults)
				room.GET("/players/:playerId/secret", r.gameHandler.GetSecret)
				room.GET("/qr", r.gameHandler.GetQRCode)
			}
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		respondError(c, r.log, apperrors.New(apperrors.ErrNotFound, "接口不存在"))
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := database.Ping(ctx, r.db); err != nil {
		r.log.Warn("健康检查失败", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	online := 0
	if r.hub != nil {
		online = r.hub.GetOnlineCount()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"message":     "服务运行正常",
		"connections": online,
		"timestamp":   time.Now().Unix(),
	})
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
