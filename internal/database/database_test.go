package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/guess-game/internal/config"
	"github.com/wfunc/guess-game/internal/models"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpen_MigrateAndSeed(t *testing.T) {
	db, err := Open(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, Ping(context.Background(), db))

	require.NoError(t, Migrate(db))
	require.NoError(t, SeedDefaultData(db))
	// 重复初始化不会重复写入
	require.NoError(t, SeedDefaultData(db))

	var count int64
	require.NoError(t, db.Model(&models.Character{}).Where("character_set_id = ?", DefaultCharacterSetID).Count(&count).Error)
	assert.Equal(t, int64(len(defaultCharacters)), count)

	require.NoError(t, DropAllTables(db))
	assert.False(t, db.Migrator().HasTable(&models.Game{}))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, ParseLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, ParseLogLevel("ERROR"))
	assert.Equal(t, gormlogger.Info, ParseLogLevel("info"))
	assert.Equal(t, gormlogger.Warn, ParseLogLevel(""))
}
