package game

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/repository"
)

// stubGameRepo 只实现房间码存在性检查
type stubGameRepo struct {
	repository.GameRepository
	taken    map[string]bool
	allTaken bool
	calls    int
}

func (r *stubGameRepo) ExistsByRoomCode(ctx context.Context, code string) (bool, error) {
	r.calls++
	return r.allTaken || r.taken[code], nil
}

func TestGenerateRoomCode_Alphabet(t *testing.T) {
	allocator := NewRoomCodeAllocator(rand.New(rand.NewSource(42)), 0)
	for i := 0; i < 500; i++ {
		code := allocator.GenerateRoomCode()
		require.Len(t, code, RoomCodeLength)
		assert.True(t, IsValidRoomCode(code), code)
		assert.False(t, strings.ContainsAny(code, "0O1IL"), code)
	}
}

func TestRoomCodeChars_NoAmbiguousGlyphs(t *testing.T) {
	assert.False(t, strings.ContainsAny(RoomCodeChars, "0O1IL"))
	assert.Equal(t, strings.ToUpper(RoomCodeChars), RoomCodeChars)
}

func TestAllocate_SkipsTakenCodes(t *testing.T) {
	// 相同种子生成相同序列，先取出第一个码并标记为已占用
	first := NewRoomCodeAllocator(rand.New(rand.NewSource(7)), 10).GenerateRoomCode()

	repo := &stubGameRepo{taken: map[string]bool{first: true}}
	allocator := NewRoomCodeAllocator(rand.New(rand.NewSource(7)), 10)
	code, err := allocator.Allocate(context.Background(), repo)
	assert.NoError(t, err)
	assert.NotEqual(t, first, code)
	assert.Equal(t, 2, repo.calls)
}

func TestAllocate_Exhausted(t *testing.T) {
	repo := &stubGameRepo{allTaken: true}
	allocator := NewRoomCodeAllocator(rand.New(rand.NewSource(1)), 10)

	_, err := allocator.Allocate(context.Background(), repo)
	assert.True(t, apperrors.Is(err, apperrors.ErrAllocationExhausted))
	assert.Equal(t, 10, repo.calls)
}

func TestIsValidRoomCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABCDE", true},
		{"23456", true},
		{"ABCD", false},
		{"ABCDEF", false},
		{"ABCD0", false},
		{"abcde", false},
		{"ABCDL", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidRoomCode(tt.code), tt.code)
	}
}
