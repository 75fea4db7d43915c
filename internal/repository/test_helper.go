package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/guess-game/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 为测试套件设置内存数据库
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// 内存库每个连接都是独立的数据库，限制为单连接
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SeedCharacterSet 创建包含 n 个角色的测试角色集
func SeedCharacterSet(t *testing.T, db *gorm.DB, setID string, n int) []*models.Character {
	set := &models.CharacterSet{ID: setID, Name: "Test " + setID}
	characters := make([]*models.Character, 0, n)
	for i := 0; i < n; i++ {
		characters = append(characters, &models.Character{
			Name: fmt.Sprintf("%s-character-%d", setID, i+1),
		})
	}
	require.NoError(t, NewCharacterSetRepository(db).Create(context.Background(), set, characters))
	return characters
}

// SeedUser 创建测试用户
func SeedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	user := &models.User{Username: username, AvatarURL: "https://example.com/" + username + ".png"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user
}
