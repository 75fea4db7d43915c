package service

import (
	"github.com/wfunc/guess-game/internal/repository"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	User UserService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Manager, log *zap.Logger) *Services {
	if log == nil {
		log = zap.NewNop()
	}
	return &Services{
		User: NewUserService(repos.User(), log),
	}
}
