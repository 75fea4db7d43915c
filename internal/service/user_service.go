package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/models"
	"github.com/wfunc/guess-game/internal/repository"
	"github.com/wfunc/guess-game/internal/utils"
	"go.uber.org/zap"
)

// UserService 用户服务接口
//
// 账号由外部认证服务维护，这里只把令牌里的展示信息同步到本地用户表，
// 供房间内展示和身份解析使用。
type UserService interface {
	GetUserByID(ctx context.Context, userID uint) (*models.User, error)
	EnsureUser(ctx context.Context, userID uint, username, avatarURL string) (*models.User, error)
	SyncIdentity(ctx context.Context, claims *utils.IdentityClaims) error
}

// userService 用户服务实现
type userService struct {
	userRepo repository.UserRepository
	log      *zap.Logger
}

// NewUserService 创建用户服务
func NewUserService(userRepo repository.UserRepository, log *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		log:      log,
	}
}

// GetUserByID 根据ID获取用户
func (s *userService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "用户不存在")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "获取用户失败")
	}
	return user, nil
}

// EnsureUser 按令牌身份创建或更新本地用户
func (s *userService) EnsureUser(ctx context.Context, userID uint, username, avatarURL string) (*models.User, error) {
	if userID == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "用户ID不能为空")
	}
	username = strings.TrimSpace(username)
	avatarURL = strings.TrimSpace(avatarURL)

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询用户失败")
	}

	if user == nil {
		if username == "" {
			username = fmt.Sprintf("player-%d", userID)
		}
		name, err := s.availableName(ctx, userID, username)
		if err != nil {
			return nil, err
		}
		user = &models.User{
			BaseModel: models.BaseModel{ID: userID},
			Username:  name,
			AvatarURL: avatarURL,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建用户失败")
		}
		s.log.Info("同步新用户", zap.Uint("user_id", userID), zap.String("username", name))
		return user, nil
	}

	changed := false
	if username != "" && username != user.Username {
		name, err := s.availableName(ctx, userID, username)
		if err != nil {
			return nil, err
		}
		if name != user.Username {
			user.Username = name
			changed = true
		}
	}
	if avatarURL != "" && avatarURL != user.AvatarURL {
		user.AvatarURL = avatarURL
		changed = true
	}
	if changed {
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新用户失败")
		}
		s.log.Debug("更新用户展示信息", zap.Uint("user_id", userID))
	}
	return user, nil
}

// SyncIdentity 令牌校验通过后同步用户
func (s *userService) SyncIdentity(ctx context.Context, claims *utils.IdentityClaims) error {
	_, err := s.EnsureUser(ctx, claims.UserID, claims.Username, claims.AvatarURL)
	return err
}

// availableName 用户名唯一，被其他用户占用时追加ID
func (s *userService) availableName(ctx context.Context, userID uint, username string) (string, error) {
	other, err := s.userRepo.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return username, nil
	}
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询用户名失败")
	}
	if other.ID == userID {
		return username, nil
	}
	return fmt.Sprintf("%s#%d", username, userID), nil
}
