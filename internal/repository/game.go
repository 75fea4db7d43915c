package repository

import (
	"context"
	"time"

	"github.com/wfunc/guess-game/internal/models"
	"gorm.io/gorm"
)

// GameRepository 游戏房间仓储接口
type GameRepository interface {
	BaseRepository
	Create(ctx context.Context, game *models.Game) error
	Update(ctx context.Context, game *models.Game) error
	FindByID(ctx context.Context, id uint) (*models.Game, error)
	FindByRoomCode(ctx context.Context, roomCode string) (*models.Game, error)
	ExistsByRoomCode(ctx context.Context, roomCode string) (bool, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Game, error)
	ListPublicLobbies(ctx context.Context, pagination *Pagination) ([]*models.Game, error)
	ListStaleLobbies(ctx context.Context, olderThan time.Time) ([]*models.Game, error)
	ListInProgress(ctx context.Context) ([]*models.Game, error)
}

// gameRepo 游戏仓储实现
type gameRepo struct {
	*BaseRepo
}

// NewGameRepository 创建游戏仓储
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建游戏
func (r *gameRepo) Create(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Create(game).Error
}

// Update 更新游戏
func (r *gameRepo) Update(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Save(game).Error
}

// FindByID 根据ID查找游戏
func (r *gameRepo) FindByID(ctx context.Context, id uint) (*models.Game, error) {
	return first(r.db.WithContext(ctx).Where("id = ?", id), &models.Game{})
}

// FindByRoomCode 根据房间码查找游戏
func (r *gameRepo) FindByRoomCode(ctx context.Context, roomCode string) (*models.Game, error) {
	return first(r.db.WithContext(ctx).Where("room_code = ?", roomCode), &models.Game{})
}

// ExistsByRoomCode 房间码是否已被占用
func (r *gameRepo) ExistsByRoomCode(ctx context.Context, roomCode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("room_code = ?", roomCode).
		Count(&count).Error
	return count > 0, err
}

// ListByStatus 按状态列出游戏
func (r *gameRepo) ListByStatus(ctx context.Context, status string) ([]*models.Game, error) {
	var games []*models.Game
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&games).Error
	return games, err
}

// ListPublicLobbies 分页列出公开的等待中房间
func (r *gameRepo) ListPublicLobbies(ctx context.Context, pagination *Pagination) ([]*models.Game, error) {
	var games []*models.Game
	query := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.Game{}).
			Where("status = ? AND visibility = ?", models.GameStatusLobby, models.VisibilityPublic)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, err
	}
	pagination.Total = total

	err := query().
		Scopes(Paginate(pagination)).
		Order("created_at DESC").
		Find(&games).Error
	return games, err
}

// ListStaleLobbies 列出创建时间早于 olderThan 的等待中房间
func (r *gameRepo) ListStaleLobbies(ctx context.Context, olderThan time.Time) ([]*models.Game, error) {
	var games []*models.Game
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.GameStatusLobby, olderThan).
		Order("created_at ASC").
		Find(&games).Error
	return games, err
}

// ListInProgress 列出进行中的游戏
func (r *gameRepo) ListInProgress(ctx context.Context) ([]*models.Game, error) {
	return r.ListByStatus(ctx, models.GameStatusInProgress)
}

// WithTx 使用事务
func (r *gameRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &gameRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
