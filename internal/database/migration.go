package database

import (
	"fmt"
	"time"

	"github.com/wfunc/guess-game/internal/config"
	"github.com/wfunc/guess-game/internal/logger"
	"github.com/wfunc/guess-game/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultCharacterSetID 内置角色集ID
const DefaultCharacterSetID = "classic"

// AutoMigrate 迁移表结构并写入内置数据，sqlite 文件库迁移期间持有锁文件
func AutoMigrate(db *gorm.DB, cfg *config.DatabaseConfig) error {
	if db == nil {
		return fmt.Errorf("数据库未初始化")
	}

	if path := migrationLockPath(cfg); path != "" {
		lock := newMigrationLock(path)
		if err := lock.Acquire(); err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer lock.Release()
	}

	logger.Info("开始数据库迁移...")
	if err := Migrate(db); err != nil {
		return err
	}

	if err := SeedDefaultData(db); err != nil {
		return err
	}

	logger.Info("数据库迁移完成")
	return nil
}

// Migrate 迁移全部模型
func Migrate(db *gorm.DB) error {
	for _, model := range models.AllModels() {
		start := time.Now()
		err := db.AutoMigrate(model)
		logger.LogDatabaseOperation("migrate", tableName(db, model), time.Since(start), err)
		if err != nil {
			return err
		}
	}
	return nil
}

func tableName(db *gorm.DB, model interface{}) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return fmt.Sprintf("%T", model)
	}
	return stmt.Schema.Table
}

// 内置角色
var defaultCharacters = []struct {
	name  string
	attrs map[string]interface{}
}{
	{"Alex", map[string]interface{}{"hair": "brown", "glasses": true, "hat": false}},
	{"Bella", map[string]interface{}{"hair": "blonde", "glasses": false, "hat": true}},
	{"Chen", map[string]interface{}{"hair": "black", "glasses": true, "hat": true}},
	{"Dara", map[string]interface{}{"hair": "red", "glasses": false, "hat": false}},
	{"Emil", map[string]interface{}{"hair": "white", "glasses": true, "hat": false}},
	{"Farah", map[string]interface{}{"hair": "black", "glasses": false, "hat": true}},
	{"Gus", map[string]interface{}{"hair": "brown", "glasses": false, "hat": false}},
	{"Hana", map[string]interface{}{"hair": "blonde", "glasses": true, "hat": false}},
	{"Ivo", map[string]interface{}{"hair": "red", "glasses": true, "hat": true}},
	{"Jun", map[string]interface{}{"hair": "black", "glasses": false, "hat": false}},
	{"Kira", map[string]interface{}{"hair": "white", "glasses": false, "hat": true}},
	{"Luis", map[string]interface{}{"hair": "brown", "glasses": true, "hat": true}},
}

// SeedDefaultData 初始化内置角色集
func SeedDefaultData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.CharacterSet{}).Where("id = ?", DefaultCharacterSetID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		set := &models.CharacterSet{
			ID:          DefaultCharacterSetID,
			Name:        "Classic",
			Description: "内置经典角色集",
		}
		if err := tx.Create(set).Error; err != nil {
			return err
		}

		characters := make([]models.Character, 0, len(defaultCharacters))
		for _, c := range defaultCharacters {
			characters = append(characters, models.Character{
				CharacterSetID: DefaultCharacterSetID,
				Name:           c.name,
				Attributes:     datatypes.JSONMap(c.attrs),
			})
		}
		if err := tx.Create(&characters).Error; err != nil {
			return err
		}

		logger.Info("默认角色集初始化完成", zap.Int("characters", len(characters)))
		return nil
	})
}

// DropAllTables 删除所有表（仅用于测试环境）
func DropAllTables(db *gorm.DB) error {
	all := models.AllModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return err
		}
	}
	return nil
}
