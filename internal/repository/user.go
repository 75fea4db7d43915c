package repository

import (
	"context"

	"github.com/wfunc/guess-game/internal/models"
	"gorm.io/gorm"
)

// UserRepository 用户仓储接口
type UserRepository interface {
	BaseRepository
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// userRepo 用户仓储实现
type userRepo struct {
	*BaseRepo
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建用户
func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID 根据ID查找用户
func (r *userRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return first(r.db.WithContext(ctx).Where("id = ?", id), &models.User{})
}

// FindByUsername 根据用户名查找用户
func (r *userRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return first(r.db.WithContext(ctx).Where("username = ?", username), &models.User{})
}

// Update 更新展示信息
func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Model(user).
		Select("username", "avatar_url").
		Updates(user).Error
}

// WithTx 使用事务
func (r *userRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &userRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// GameEventRepository 游戏事件仓储接口
type GameEventRepository interface {
	BaseRepository
	Create(ctx context.Context, event *models.GameEvent) error
	ListByGame(ctx context.Context, gameID uint) ([]*models.GameEvent, error)
}

type gameEventRepo struct {
	*BaseRepo
}

// NewGameEventRepository 创建游戏事件仓储
func NewGameEventRepository(db *gorm.DB) GameEventRepository {
	return &gameEventRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 追加事件
func (r *gameEventRepo) Create(ctx context.Context, event *models.GameEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByGame 按发生顺序列出事件
func (r *gameEventRepo) ListByGame(ctx context.Context, gameID uint) ([]*models.GameEvent, error) {
	var events []*models.GameEvent
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("id ASC").
		Find(&events).Error
	return events, err
}

// WithTx 使用事务
func (r *gameEventRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &gameEventRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
