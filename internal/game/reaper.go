package game

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AbandonedLobbyReaper 定期检查长时间无人连接的大厅，目前只记录日志不删除
type AbandonedLobbyReaper struct {
	coordinator *Coordinator
	conns       RoomConnections
	timeout     time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewAbandonedLobbyReaper 创建大厅清理任务
func NewAbandonedLobbyReaper(coordinator *Coordinator, conns RoomConnections, timeout time.Duration, logger *zap.Logger) *AbandonedLobbyReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AbandonedLobbyReaper{
		coordinator: coordinator,
		conns:       conns,
		timeout:     timeout,
		logger:      logger,
		now:         coordinator.now,
	}
}

// Sweep 执行一次检查，返回被标记的房间码
func (r *AbandonedLobbyReaper) Sweep(ctx context.Context) []string {
	games, err := r.coordinator.FindAbandonedLobbies(ctx, r.now().Add(-r.timeout), r.conns)
	if err != nil {
		r.logger.Error("检查废弃大厅失败", zap.Error(err))
		return nil
	}

	codes := make([]string, 0, len(games))
	for _, g := range games {
		codes = append(codes, g.RoomCode)
		r.logger.Warn("发现废弃大厅",
			zap.String("room_code", g.RoomCode),
			zap.Uint("game_id", g.ID),
			zap.Time("created_at", g.CreatedAt))
	}
	return codes
}

// Run 定时检查，阻塞直到 ctx 取消
func (r *AbandonedLobbyReaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("停止废弃大厅检查任务")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// TurnTimeoutSweeper 定期跳过超时的回合
type TurnTimeoutSweeper struct {
	coordinator *Coordinator
	logger      *zap.Logger
}

// NewTurnTimeoutSweeper 创建回合超时检查任务
func NewTurnTimeoutSweeper(coordinator *Coordinator, logger *zap.Logger) *TurnTimeoutSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TurnTimeoutSweeper{coordinator: coordinator, logger: logger}
}

// Sweep 执行一次检查
func (s *TurnTimeoutSweeper) Sweep(ctx context.Context) int {
	skipped, err := s.coordinator.SkipExpiredTurns(ctx)
	if err != nil {
		s.logger.Error("检查回合超时失败", zap.Error(err))
		return 0
	}
	if skipped > 0 {
		s.logger.Info("跳过超时回合", zap.Int("count", skipped))
	}
	return skipped
}

// Run 定时检查，阻塞直到 ctx 取消
func (s *TurnTimeoutSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("停止回合超时检查任务")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
