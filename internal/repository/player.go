package repository

import (
	"context"

	"github.com/wfunc/guess-game/internal/models"
	"gorm.io/gorm"
)

// GamePlayerRepository 房间玩家仓储接口
type GamePlayerRepository interface {
	BaseRepository
	Create(ctx context.Context, player *models.GamePlayer) error
	Update(ctx context.Context, player *models.GamePlayer) error
	FindByID(ctx context.Context, id uint) (*models.GamePlayer, error)
	FindByGameAndIdentity(ctx context.Context, gameID uint, identityKey string) (*models.GamePlayer, error)
	ListByGame(ctx context.Context, gameID uint) ([]*models.GamePlayer, error)
	CountActive(ctx context.Context, gameID uint) (int64, error)
	BatchUpdateScores(ctx context.Context, players []*models.GamePlayer) error
}

type gamePlayerRepo struct {
	*BaseRepo
}

// NewGamePlayerRepository 创建房间玩家仓储
func NewGamePlayerRepository(db *gorm.DB) GamePlayerRepository {
	return &gamePlayerRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建玩家
func (r *gamePlayerRepo) Create(ctx context.Context, player *models.GamePlayer) error {
	return r.db.WithContext(ctx).Create(player).Error
}

// Update 更新玩家
func (r *gamePlayerRepo) Update(ctx context.Context, player *models.GamePlayer) error {
	return r.db.WithContext(ctx).Save(player).Error
}

// FindByID 根据ID查找玩家
func (r *gamePlayerRepo) FindByID(ctx context.Context, id uint) (*models.GamePlayer, error) {
	return first(r.db.WithContext(ctx).Where("id = ?", id), &models.GamePlayer{})
}

// FindByGameAndIdentity 按身份键查找玩家（包括已离开的）
func (r *gamePlayerRepo) FindByGameAndIdentity(ctx context.Context, gameID uint, identityKey string) (*models.GamePlayer, error) {
	return first(r.db.WithContext(ctx).
		Where("game_id = ? AND identity_key = ?", gameID, identityKey), &models.GamePlayer{})
}

// ListByGame 按加入顺序列出房间内所有玩家
func (r *gamePlayerRepo) ListByGame(ctx context.Context, gameID uint) ([]*models.GamePlayer, error) {
	var players []*models.GamePlayer
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("joined_at ASC, id ASC").
		Find(&players).Error
	return players, err
}

// CountActive 统计未离开的玩家
func (r *gamePlayerRepo) CountActive(ctx context.Context, gameID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GamePlayer{}).
		Where("game_id = ? AND left_at IS NULL", gameID).
		Count(&count).Error
	return count, err
}

// BatchUpdateScores 批量写入分数与名次
func (r *gamePlayerRepo) BatchUpdateScores(ctx context.Context, players []*models.GamePlayer) error {
	db := r.db.WithContext(ctx)
	for _, p := range players {
		err := db.Model(&models.GamePlayer{}).
			Where("id = ?", p.ID).
			Updates(map[string]interface{}{
				"score":     p.Score,
				"placement": p.Placement,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// WithTx 使用事务
func (r *gamePlayerRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &gamePlayerRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// PlayerSecretRepository 秘密角色仓储接口
type PlayerSecretRepository interface {
	BaseRepository
	BatchCreate(ctx context.Context, secrets []*models.PlayerSecret) error
	FindByPlayer(ctx context.Context, playerID uint) (*models.PlayerSecret, error)
	ListByGame(ctx context.Context, gameID uint) ([]*models.PlayerSecret, error)
	Update(ctx context.Context, secret *models.PlayerSecret) error
}

type playerSecretRepo struct {
	*BaseRepo
}

// NewPlayerSecretRepository 创建秘密角色仓储
func NewPlayerSecretRepository(db *gorm.DB) PlayerSecretRepository {
	return &playerSecretRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// BatchCreate 单条语句批量创建
func (r *playerSecretRepo) BatchCreate(ctx context.Context, secrets []*models.PlayerSecret) error {
	if len(secrets) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&secrets).Error
}

// FindByPlayer 查找玩家的秘密角色
func (r *playerSecretRepo) FindByPlayer(ctx context.Context, playerID uint) (*models.PlayerSecret, error) {
	return first(r.db.WithContext(ctx).Where("game_player_id = ?", playerID), &models.PlayerSecret{})
}

// ListByGame 列出房间内所有秘密角色
func (r *playerSecretRepo) ListByGame(ctx context.Context, gameID uint) ([]*models.PlayerSecret, error) {
	var secrets []*models.PlayerSecret
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("id ASC").
		Find(&secrets).Error
	return secrets, err
}

// Update 更新秘密角色
func (r *playerSecretRepo) Update(ctx context.Context, secret *models.PlayerSecret) error {
	return r.db.WithContext(ctx).Save(secret).Error
}

// WithTx 使用事务
func (r *playerSecretRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &playerSecretRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
