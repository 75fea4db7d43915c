package repository

import (
	"context"

	"github.com/wfunc/guess-game/internal/models"
	"gorm.io/gorm"
)

// CharacterSetRepository 角色集仓储接口
type CharacterSetRepository interface {
	BaseRepository
	FindByID(ctx context.Context, id string) (*models.CharacterSet, error)
	ListCharacters(ctx context.Context, setID string) ([]*models.Character, error)
	FindCharacter(ctx context.Context, id uint) (*models.Character, error)
	Create(ctx context.Context, set *models.CharacterSet, characters []*models.Character) error
}

type characterSetRepo struct {
	*BaseRepo
}

// NewCharacterSetRepository 创建角色集仓储
func NewCharacterSetRepository(db *gorm.DB) CharacterSetRepository {
	return &characterSetRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// FindByID 根据ID查找角色集
func (r *characterSetRepo) FindByID(ctx context.Context, id string) (*models.CharacterSet, error) {
	return first(r.db.WithContext(ctx).Where("id = ?", id), &models.CharacterSet{})
}

// ListCharacters 列出角色集中的角色
func (r *characterSetRepo) ListCharacters(ctx context.Context, setID string) ([]*models.Character, error) {
	var characters []*models.Character
	err := r.db.WithContext(ctx).
		Where("character_set_id = ?", setID).
		Order("id ASC").
		Find(&characters).Error
	return characters, err
}

// FindCharacter 根据ID查找角色
func (r *characterSetRepo) FindCharacter(ctx context.Context, id uint) (*models.Character, error) {
	return first(r.db.WithContext(ctx).Where("id = ?", id), &models.Character{})
}

// Create 创建角色集及其角色
func (r *characterSetRepo) Create(ctx context.Context, set *models.CharacterSet, characters []*models.Character) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(set).Error; err != nil {
			return err
		}
		if len(characters) == 0 {
			return nil
		}
		for _, c := range characters {
			c.CharacterSetID = set.ID
		}
		return tx.Create(&characters).Error
	})
}

// WithTx 使用事务
func (r *characterSetRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &characterSetRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
