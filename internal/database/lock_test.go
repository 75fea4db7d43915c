package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/guess-game/internal/config"
	"go.uber.org/zap"
)

func TestMigrationLockPath(t *testing.T) {
	cases := []struct {
		driver, dsn, want string
	}{
		{"sqlite", "./data/guess-game.db", "./data/guess-game.db.migration.lock"},
		{"sqlite3", "file:/tmp/g.db?_busy_timeout=5000", "/tmp/g.db.migration.lock"},
		{"sqlite", ":memory:", ""},
		{"sqlite", "file::memory:?cache=shared", ""},
		{"sqlite", "file:g?mode=memory&cache=shared", ""},
		{"mysql", "user:pass@tcp(127.0.0.1:3306)/game", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, migrationLockPath(&config.DatabaseConfig{Driver: c.driver, DSN: c.dsn}), c.dsn)
	}
	assert.Empty(t, migrationLockPath(nil))
}

func TestMigrationLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.db.migration.lock")

	first := newMigrationLock(path)
	require.NoError(t, first.Acquire())
	assert.FileExists(t, path)

	second := newMigrationLock(path)
	second.attempts = 2
	second.wait = time.Millisecond
	assert.Error(t, second.Acquire())

	first.Release()
	assert.NoFileExists(t, path)
	require.NoError(t, second.Acquire())
	second.Release()
	// 重复释放无副作用
	second.Release()
}

func TestMigrationLock_StaleReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.db.migration.lock")
	require.NoError(t, os.WriteFile(path, []byte("123\n"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	lock := newMigrationLock(path)
	lock.attempts = 2
	lock.wait = time.Millisecond
	require.NoError(t, lock.Acquire())
	lock.Release()
}

func TestAutoMigrate_SQLiteFile(t *testing.T) {
	cfg := &config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "g.db"), LogLevel: "silent"}
	db, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	require.NoError(t, AutoMigrate(db, cfg))
	// 迁移结束后锁文件被移除
	assert.NoFileExists(t, migrationLockPath(cfg))
	// 无关的锁文件不受影响
	unrelated := filepath.Join(filepath.Dir(cfg.DSN), "other.lock")
	require.NoError(t, os.WriteFile(unrelated, nil, 0644))
	require.NoError(t, AutoMigrate(db, cfg))
	assert.FileExists(t, unrelated)
}
