package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/guess-game/internal/api"
	"github.com/wfunc/guess-game/internal/config"
	"github.com/wfunc/guess-game/internal/database"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/logger"
	"github.com/wfunc/guess-game/internal/repository"
	"github.com/wfunc/guess-game/internal/service"
	"github.com/wfunc/guess-game/internal/utils"
	ws "github.com/wfunc/guess-game/internal/websocket"
	"go.uber.org/zap"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	hub         *ws.Hub
	coordinator *game.Coordinator
	httpServer  *http.Server

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
	}
}

// Start 初始化组件并启动后台任务
func (s *Server) Start(parent context.Context) error {
	s.logger.Info("正在启动猜角色游戏服务器...",
		zap.String("mode", s.cfg.Server.Mode))

	if err := s.initDatabase(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	s.ctx = ctx
	s.cancel = cancel

	gameLog := logger.WithModule("game")
	wsLog := logger.WithModule("websocket")

	// 推送中心
	s.hub = ws.NewHub(ws.OptionsFromConfig(s.cfg.WebSocket), wsLog)
	s.goRun(func() { s.hub.Run(ctx) })

	repos := repository.NewManager(database.GetDB())
	services := service.NewServices(repos, logger.WithModule("service"))
	s.coordinator = game.NewCoordinator(&game.CoordinatorConfig{
		Repos:       repos,
		Broadcaster: ws.NewBroadcastDispatcher(s.hub, wsLog),
		Logger:      gameLog,
		Game:        s.cfg.Game,
	})
	ws.NewRoomHandler(s.hub, s.coordinator, wsLog)

	// 后台维护任务
	if interval := s.cfg.Game.ReaperInterval; interval > 0 {
		reaper := game.NewAbandonedLobbyReaper(s.coordinator, s.hub.Registry(), s.cfg.Game.LobbyTimeout, gameLog)
		s.goRun(func() { reaper.Run(ctx, interval) })
	}
	if interval := s.cfg.Game.TurnSweepInterval; interval > 0 {
		sweeper := game.NewTurnTimeoutSweeper(s.coordinator, gameLog)
		s.goRun(func() { sweeper.Run(ctx, interval) })
	}

	if s.cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	jwt := utils.NewJWTManager(s.cfg.Security.JWT.Secret, time.Duration(s.cfg.Security.JWT.ExpireHours)*time.Hour)
	router := api.NewRouter(&api.Dependencies{
		DB:          database.GetDB(),
		Coordinator: s.coordinator,
		Hub:         s.hub,
		JWT:         jwt,
		Users:       services.User,
		Config:      s.cfg,
		Logger:      logger.WithModule("api"),
	})

	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	s.goRun(func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
			cancel()
		}
	})

	// 配置热更新只影响日志级别
	config.Watch(func(newCfg *config.Config) {
		logger.SetLevel(newCfg.Log.Level)
		s.logger.Info("配置已更新", zap.String("log_level", newCfg.Log.Level))
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", s.cfg.Server.Addr()),
		zap.String("websocket", s.cfg.WebSocket.Path))
	return nil
}

// Done 在收到退出信号或 HTTP 服务异常退出后关闭
func (s *Server) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Server) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	if err := database.Init(&s.cfg.Database); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrDatabaseConnect, "初始化数据库连接失败 (%s)", s.cfg.Database.Driver)
	}
	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(database.GetDB(), &s.cfg.Database); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}
	if !database.IsConnected() {
		return apperrors.New(apperrors.ErrDatabaseConnect, "数据库连接检查失败")
	}
	return nil
}

// Shutdown 优雅关闭：先停 HTTP，再停后台任务，最后关数据库
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP服务关闭失败", zap.Error(err))
			shutdownErr = err
		}
	}
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("关闭超时，强制退出")
		shutdownErr = apperrors.New(apperrors.ErrTimeout, "关闭超时")
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
	return shutdownErr
}
