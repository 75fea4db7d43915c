package game

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/repository"
)

const (
	// RoomCodeChars 房间码字符集，去掉了容易混淆的 0/O/1/I/L
	RoomCodeChars = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	// RoomCodeLength 房间码长度
	RoomCodeLength = 5
	// DefaultRoomCodeAttempts 默认最大尝试次数
	DefaultRoomCodeAttempts = 10
)

// lockedRand 并发安全的随机源
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(r *rand.Rand) *lockedRand {
	return &lockedRand{r: r}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// RoomCodeAllocator 房间码分配器
type RoomCodeAllocator struct {
	rng      *lockedRand
	attempts int
}

// NewRoomCodeAllocator 创建房间码分配器
func NewRoomCodeAllocator(rng *rand.Rand, attempts int) *RoomCodeAllocator {
	if attempts <= 0 {
		attempts = DefaultRoomCodeAttempts
	}
	return &RoomCodeAllocator{rng: newLockedRand(rng), attempts: attempts}
}

// GenerateRoomCode 随机生成一个房间码
func (a *RoomCodeAllocator) GenerateRoomCode() string {
	var sb strings.Builder
	sb.Grow(RoomCodeLength)
	for i := 0; i < RoomCodeLength; i++ {
		sb.WriteByte(RoomCodeChars[a.rng.Intn(len(RoomCodeChars))])
	}
	return sb.String()
}

// Allocate 生成一个未被占用的房间码
func (a *RoomCodeAllocator) Allocate(ctx context.Context, games repository.GameRepository) (string, error) {
	for i := 0; i < a.attempts; i++ {
		code := a.GenerateRoomCode()
		exists, err := games.ExistsByRoomCode(ctx, code)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "检查房间码失败")
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperrors.Newf(apperrors.ErrAllocationExhausted, "%d 次尝试后仍无可用房间码", a.attempts)
}

// IsValidRoomCode 检查房间码格式
func IsValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(RoomCodeChars, code[i]) < 0 {
			return false
		}
	}
	return true
}
