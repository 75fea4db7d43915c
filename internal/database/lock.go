package database

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wfunc/guess-game/internal/config"
	"github.com/wfunc/guess-game/internal/logger"
	"go.uber.org/zap"
)

// migrationLock 基于锁文件的跨进程迁移互斥，只用于 sqlite 文件库
type migrationLock struct {
	path       string
	attempts   int
	wait       time.Duration
	staleAfter time.Duration

	file *os.File
}

func newMigrationLock(path string) *migrationLock {
	return &migrationLock{
		path:       path,
		attempts:   30,
		wait:       time.Second,
		staleAfter: 5 * time.Minute,
	}
}

// migrationLockPath 由 DSN 推出锁文件路径，内存库和非 sqlite 驱动返回空
func migrationLockPath(cfg *config.DatabaseConfig) string {
	if cfg == nil || !isSQLite(cfg.Driver) {
		return ""
	}
	if strings.Contains(cfg.DSN, "mode=memory") {
		return ""
	}

	path := strings.TrimPrefix(cfg.DSN, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path + ".migration.lock"
}

// Acquire 独占创建锁文件，超过 staleAfter 的旧锁视为上次崩溃遗留
func (l *migrationLock) Acquire() error {
	for i := 0; i < l.attempts; i++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			l.file = f
			logger.Debug("获取迁移锁成功", zap.String("lock", l.path))
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("创建迁移锁失败: %w", err)
		}

		if info, statErr := os.Stat(l.path); statErr == nil && time.Since(info.ModTime()) > l.staleAfter {
			logger.Warn("迁移锁已过期，删除后重试", zap.String("lock", l.path))
			os.Remove(l.path)
			continue
		}

		logger.Debug("等待迁移锁", zap.String("lock", l.path), zap.Int("attempt", i+1))
		time.Sleep(l.wait)
	}
	return fmt.Errorf("无法获取迁移锁 %s，可能有其他进程正在迁移", l.path)
}

// Release 释放锁，未持有时什么也不做
func (l *migrationLock) Release() {
	if l.file == nil {
		return
	}
	l.file.Close()
	os.Remove(l.path)
	l.file = nil
	logger.Debug("释放迁移锁", zap.String("lock", l.path))
}
